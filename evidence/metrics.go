package evidence

import (
	"github.com/go-kit/kit/metrics"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "evidence"
)

//go:generate go run ../scripts/metricsgen -struct=Metrics

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of pending contradiction evidence entries.
	PendingEvidence metrics.Gauge `metrics_name:"pending"`

	// Number of detected contradictions.
	DetectedEvidence metrics.Counter `metrics_name:"detected"`
}
