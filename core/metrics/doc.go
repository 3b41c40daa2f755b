// Package metrics defines the point model shared by the reporter and the
// InfluxDB senders, and gatherer wrappers that split a metric registry by
// name prefix.
package metrics
