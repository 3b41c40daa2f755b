// Package app hosts the extension as a standalone service: it mirrors the
// broker $SYS topics into a Prometheus registry, serves that registry and
// lets the extension forward it to InfluxDB.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kilianp07/brokerflux/config"
	coremon "github.com/kilianp07/brokerflux/core/monitoring"
	"github.com/kilianp07/brokerflux/core/reporter"
	"github.com/kilianp07/brokerflux/extension"
	"github.com/kilianp07/brokerflux/infra/logger"
	"github.com/kilianp07/brokerflux/infra/metrics"
	"github.com/kilianp07/brokerflux/infra/monitoring"
	"github.com/kilianp07/brokerflux/infra/mqtt"
	"github.com/kilianp07/brokerflux/internal/eventbus"
)

// Service orchestrates the $SYS bridge, the metrics endpoint and the
// extension.
type Service struct {
	cfg    *config.Runtime
	reg    *prometheus.Registry
	bridge *mqtt.SysBridge
	ext    *extension.Main
	bus    *eventbus.TypedBus[reporter.ReportEvent]
	stats  *metrics.ReportMetrics
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Runtime) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stats, err := metrics.NewReportMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("report metrics: %w", err)
	}

	bus := eventbus.NewTyped[reporter.ReportEvent](eventbus.WithBuffer(64))
	if err := metrics.RegisterDropped(reg, bus); err != nil {
		return nil, fmt.Errorf("report metrics: %w", err)
	}

	svc := &Service{
		cfg:   cfg,
		reg:   reg,
		ext:   extension.New(),
		bus:   bus,
		stats: stats,
		log:   logg,
	}
	if cfg.MQTT.Broker != "" {
		bridge, err := mqtt.NewSysBridge(cfg.MQTT, reg)
		if err != nil {
			return nil, fmt.Errorf("mqtt $SYS bridge: %w", err)
		}
		svc.bridge = bridge
	} else {
		logg.Warnf("no mqtt broker configured, only process metrics are reported")
	}
	return svc, nil
}

// Registry is the registry reported by the extension.
func (s *Service) Registry() *prometheus.Registry { return s.reg }

// Run starts the extension and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.stats.Collect(ctx, s.bus)
	if s.cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.Addr, s.reg); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	err := s.ext.Start(ctx, extension.StartInput{
		HomeFolder: s.cfg.Home,
		Gatherer:   s.reg,
		Logger:     logger.New("influxdb_extension"),
		Bus:        s.bus,
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	s.ext.Stop(context.Background())
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.ext.Stop(context.Background())
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.bus.Close()
	coremon.Flush(2 * time.Second)
	return nil
}
