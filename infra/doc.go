// Package infra holds the adapters of the extension: InfluxDB senders, the
// MQTT $SYS bridge, Prometheus self-metrics, Sentry and logging. These
// packages depend only on the interfaces defined in the core packages.
package infra
