// Package influx implements metrics.Sender for the InfluxDB transports: the
// 1.x HTTP API, raw line protocol over TCP and UDP, the 2.x/Cloud API
// through the official client and the 3.x write_lp endpoint. NewSender picks
// the implementation matching an extension configuration.
package influx
