package chain

import (
	"github.com/go-kit/kit/metrics"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "chain"
)

//go:generate go run ../scripts/metricsgen -struct=Metrics

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of chain switches, by mode (truncate or resync).
	ChainSwitches metrics.Counter `metrics_name:"switches" metrics_labels:"mode"`

	// Number of headers pruned from the header store.
	PrunedHeaders metrics.Counter
}
