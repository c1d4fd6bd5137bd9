package bft

import (
	"github.com/go-kit/kit/metrics"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "bft"
)

//go:generate go run ../scripts/metricsgen -struct=Metrics

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Highest height with enough prevotes.
	HeightPrevoted metrics.Gauge

	// Highest finalized height.
	HeightFinalized metrics.Gauge

	// Number of headers held in the window.
	WindowSize metrics.Gauge

	// Number of admitted headers.
	AdmittedHeaders metrics.Counter

	// Number of rejected headers, by reason.
	RejectedHeaders metrics.Counter `metrics_labels:"reason"`

	// Number of headers evicted from the bottom of the window.
	EvictedHeaders metrics.Counter

	// Number of full vote recomputations after a truncation.
	Recomputations metrics.Counter
}
