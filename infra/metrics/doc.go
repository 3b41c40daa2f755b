// Package metrics exposes the reporter self-metrics to Prometheus and serves
// a registry over HTTP.
package metrics
