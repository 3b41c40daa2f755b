package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/brokerflux/core/reporter"
	"github.com/kilianp07/brokerflux/internal/eventbus"
)

// ReportMetrics records reporting cycles in Prometheus metrics.
type ReportMetrics struct {
	reports    *prometheus.CounterVec
	points     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lastReport *prometheus.GaugeVec
}

// NewReportMetrics registers the reporter metrics on reg. A nil registerer
// defaults to the global Prometheus registerer.
func NewReportMetrics(reg prometheus.Registerer) (*ReportMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &ReportMetrics{
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerflux_reports_total",
			Help: "Number of reporting cycles",
		}, []string{"reporter", "result"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerflux_points_sent_total",
			Help: "Number of points written to InfluxDB",
		}, []string{"reporter"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brokerflux_report_duration_seconds",
			Help:    "Time spent gathering and sending one report",
			Buckets: prometheus.DefBuckets,
		}, []string{"reporter"}),
		lastReport: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "brokerflux_last_report_timestamp_seconds",
			Help: "Unix timestamp of the last successful report",
		}, []string{"reporter"}),
	}
	var err error
	if m.reports, err = register(reg, m.reports); err != nil {
		return nil, err
	}
	if m.points, err = register(reg, m.points); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.lastReport, err = register(reg, m.lastReport); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe records one reporting cycle.
func (m *ReportMetrics) Observe(ev reporter.ReportEvent) {
	m.duration.WithLabelValues(ev.Reporter).Observe(ev.Duration.Seconds())
	if ev.Err != nil {
		m.reports.WithLabelValues(ev.Reporter, "error").Inc()
		return
	}
	m.reports.WithLabelValues(ev.Reporter, "success").Inc()
	m.points.WithLabelValues(ev.Reporter).Add(float64(ev.Points))
	m.lastReport.WithLabelValues(ev.Reporter).Set(float64(ev.Time.Unix()))
}

// Collect subscribes to bus and records every event until ctx is canceled
// or the bus is closed. It returns immediately.
func (m *ReportMetrics) Collect(ctx context.Context, bus *eventbus.TypedBus[reporter.ReportEvent]) {
	if bus == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				m.Observe(ev)
			}
		}
	}()
}

// RegisterDropped exposes the number of report events bus could not
// deliver because a subscriber lagged behind.
func RegisterDropped(reg prometheus.Registerer, bus *eventbus.TypedBus[reporter.ReportEvent]) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	_, err := register(reg, prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "brokerflux_report_events_dropped_total",
		Help: "Number of report events dropped by the event bus",
	}, func() float64 { return float64(bus.Dropped()) }))
	return err
}
