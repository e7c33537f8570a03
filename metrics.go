package topictrends

import "github.com/santhoshtr/topictrends/monitoring"

// MetricsCollector is the interface operational metrics are reported
// into: corpus loads and their anomalies, stale day files, pageview and
// result cache traffic, query timings, and external client round trips.
//
// It aliases monitoring.Collector so subpackages can share one
// collector without importing this package. A Prometheus-backed
// implementation ships in the monitoring package.
type MetricsCollector = monitoring.Collector

// NoopMetricsCollector discards all metrics. It is the default.
type NoopMetricsCollector = monitoring.NoopCollector

// BasicMetricsCollector counts operations in memory with atomics.
// Useful for debugging and tests; production monitoring should prefer
// monitoring.NewPrometheusCollector.
type BasicMetricsCollector = monitoring.BasicCollector
