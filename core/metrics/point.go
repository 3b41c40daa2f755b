package metrics

import (
	"context"
	"time"
)

// Point is a single InfluxDB sample.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Sender transmits batches of points to a time-series database. Close must
// be safe to call more than once since reporters may share a sender.
type Sender interface {
	Send(ctx context.Context, points []Point) error
	Close() error
}

// NopSender drops every point.
type NopSender struct{}

func (NopSender) Send(context.Context, []Point) error { return nil }
func (NopSender) Close() error                        { return nil }
