// Package extension wires configuration, sender and reporters into the
// Start/Stop lifecycle a broker host calls.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/brokerflux/config"
	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
	"github.com/kilianp07/brokerflux/core/monitoring"
	"github.com/kilianp07/brokerflux/core/reporter"
	"github.com/kilianp07/brokerflux/infra/influx"
	infralogger "github.com/kilianp07/brokerflux/infra/logger"
	"github.com/kilianp07/brokerflux/internal/eventbus"
)

// ErrStartupPrevented is wrapped by every error that aborts Start.
var ErrStartupPrevented = errors.New("extension startup prevented")

// Reasons reported when the startup is prevented.
const (
	ReasonRead      = "could not read influxdb properties"
	ReasonMandatory = "at least one mandatory property not set"
	ReasonSender    = "couldn't create an influxdb sender, please check that the configuration is correct"
	ReasonPanic     = "start failed because of an exception"
)

// Reporter names.
const (
	ReporterAll       = "all"
	ReporterFiltered  = "filtered"
	ReporterRemaining = "remaining"
)

const pingTimeout = 5 * time.Second

// StartupError explains why Start refused to run.
type StartupError struct {
	Reason string
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *StartupError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStartupPrevented}
	}
	return []error{ErrStartupPrevented, e.Err}
}

// StartInput carries what the host hands to the extension on start.
type StartInput struct {
	// HomeFolder is the extension directory holding conf/config.properties.
	HomeFolder string
	// Gatherer is the broker metric registry; the default Prometheus
	// gatherer when nil.
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
	Bus      *eventbus.TypedBus[reporter.ReportEvent]
}

// SenderFactory builds the sender for a validated configuration.
type SenderFactory func(*config.Config, logger.Logger) (metrics.Sender, error)

// Main is the extension entry point.
type Main struct {
	newSender SenderFactory

	mu        sync.Mutex
	reporters []*reporter.Reporter
	sender    metrics.Sender
	log       logger.Logger
}

// New returns an extension sending through the InfluxDB senders.
func New() *Main {
	return &Main{newSender: influx.NewSender}
}

// NewWithSender returns an extension using f to build its sender.
func NewWithSender(f SenderFactory) *Main {
	return &Main{newSender: f}
}

// Start reads and validates the configuration of in.HomeFolder, creates the
// sender and starts the reporters. An error wrapping ErrStartupPrevented is
// returned when the extension must not run.
func (m *Main) Start(ctx context.Context, in StartInput) (err error) {
	log := in.Logger
	if log == nil {
		log = infralogger.New("influxdb_extension")
	}
	defer func() {
		if p := recover(); p != nil {
			perr := monitoring.CapturePanic(p, map[string]string{"phase": "start"})
			log.Warnf("start failed because of %v", perr)
			err = &StartupError{Reason: ReasonPanic, Err: perr}
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reporters) > 0 {
		return errors.New("extension already started")
	}

	cfg := config.NewConfig(in.HomeFolder, log)
	if err := cfg.Load(); err != nil {
		return &StartupError{Reason: ReasonRead, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &StartupError{Reason: ReasonMandatory, Err: err}
	}
	sender, err := m.newSender(cfg, log)
	if err != nil {
		log.Errorf("not able to start InfluxDB sender, please check your configuration: %v", err)
		return &StartupError{Reason: ReasonSender, Err: err}
	}
	if sender == nil {
		return &StartupError{Reason: ReasonSender}
	}

	gatherer := in.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	reporters, err := buildReporters(cfg, gatherer, sender, log, in.Bus)
	if err != nil {
		_ = sender.Close()
		return &StartupError{Reason: ReasonSender, Err: err}
	}
	for _, r := range reporters {
		if err := r.Start(ctx); err != nil {
			for _, started := range reporters {
				started.Stop()
			}
			_ = sender.Close()
			return fmt.Errorf("start reporter %s: %w", r.Name(), err)
		}
	}
	m.reporters = reporters
	m.sender = sender
	m.log = log
	go probe(ctx, sender, log)
	return nil
}

func buildReporters(cfg *config.Config, g prometheus.Gatherer, s metrics.Sender, log logger.Logger, bus *eventbus.TypedBus[reporter.ReportEvent]) ([]*reporter.Reporter, error) {
	base := reporter.Config{
		Sender: s,
		Prefix: cfg.Prefix(),
		Tags:   cfg.Tags(),
		Log:    log,
		Bus:    bus,
	}
	filtered, remaining, ok := metrics.SplitRegistry(g, cfg.MetricFilter())
	if !ok {
		c := base
		c.Name, c.Gatherer, c.Interval = ReporterAll, g, cfg.ReportingInterval()
		r, err := reporter.New(c)
		if err != nil {
			return nil, err
		}
		return []*reporter.Reporter{r}, nil
	}
	fc := base
	fc.Name, fc.Gatherer, fc.Interval = ReporterFiltered, filtered, cfg.FilteredReportingInterval()
	rc := base
	rc.Name, rc.Gatherer, rc.Interval = ReporterRemaining, remaining, cfg.ReportingInterval()
	fr, err := reporter.New(fc)
	if err != nil {
		return nil, err
	}
	rr, err := reporter.New(rc)
	if err != nil {
		return nil, err
	}
	return []*reporter.Reporter{fr, rr}, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func probe(ctx context.Context, s metrics.Sender, log logger.Logger) {
	p, ok := s.(pinger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		log.Warnf("influxdb is not reachable yet: %v", err)
	}
}

// Reporters lists the names of the running reporters.
func (m *Main) Reporters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.reporters))
	for i, r := range m.reporters {
		names[i] = r.Name()
	}
	return names
}

// Stop stops every reporter, then closes the sender they share. It is safe
// to call when Start failed or was never called.
func (m *Main) Stop(context.Context) {
	m.mu.Lock()
	reporters, sender, log := m.reporters, m.sender, m.log
	m.reporters, m.sender = nil, nil
	m.mu.Unlock()
	for _, r := range reporters {
		r.Stop()
	}
	if sender == nil {
		return
	}
	if err := sender.Close(); err != nil {
		log.Warnf("closing influxdb sender: %v", err)
	}
}
