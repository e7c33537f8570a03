// Package monitoring defines the metrics surface shared by all
// topictrends packages.
//
// Collector is the event interface the library reports into. Three
// implementations ship with the module: NoopCollector (the default),
// BasicCollector (in-memory atomic counters, handy in tests and small
// deployments) and PrometheusCollector.
package monitoring
