// Package metrics turns the result of an update cycle into Prometheus gauges
// and writes them in the node_exporter textfile format.
package metrics
