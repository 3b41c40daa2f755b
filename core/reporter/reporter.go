// Package reporter periodically gathers a Prometheus registry, converts the
// metric families to InfluxDB points and hands them to a sender.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
	"github.com/kilianp07/brokerflux/core/monitoring"
	"github.com/kilianp07/brokerflux/internal/eventbus"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = time.Second

// ErrStopped is returned by Start on a reporter that was stopped.
var ErrStopped = errors.New("reporter stopped")

// ReportEvent describes one reporting cycle.
type ReportEvent struct {
	Reporter string
	Points   int
	Duration time.Duration
	Time     time.Time
	Err      error
}

// Config holds the reporter settings. The sender belongs to the caller and
// may be shared between reporters; the reporter never closes it.
type Config struct {
	Name     string
	Gatherer prometheus.Gatherer
	Sender   metrics.Sender
	Prefix   string
	Tags     map[string]string
	Interval time.Duration
	Log      logger.Logger
	Bus      *eventbus.TypedBus[ReportEvent]
}

// Reporter sends the content of a gatherer at a fixed interval.
type Reporter struct {
	cfg Config
	log logger.Logger
	now func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New validates cfg and returns an idle reporter.
func New(cfg Config) (*Reporter, error) {
	if cfg.Gatherer == nil {
		return nil, fmt.Errorf("reporter %s: gatherer must not be nil", cfg.Name)
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("reporter %s: sender must not be nil", cfg.Name)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	return &Reporter{cfg: cfg, log: logger.OrNop(cfg.Log), now: time.Now}, nil
}

// Name identifies the reporter in logs and events.
func (r *Reporter) Name() string { return r.cfg.Name }

// Interval is the effective reporting period.
func (r *Reporter) Interval() time.Duration { return r.cfg.Interval }

// Report gathers, converts and sends all metrics in one batch.
func (r *Reporter) Report(ctx context.Context) error {
	start := r.now()
	n, err := r.report(ctx, start)
	ev := ReportEvent{Reporter: r.cfg.Name, Points: n, Duration: r.now().Sub(start), Time: start, Err: err}
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(ev)
	}
	return err
}

func (r *Reporter) report(ctx context.Context, now time.Time) (int, error) {
	mfs, err := r.cfg.Gatherer.Gather()
	if err != nil {
		if len(mfs) == 0 {
			return 0, fmt.Errorf("gather: %w", err)
		}
		r.log.Warnf("partial gather for reporter %s: %v", r.cfg.Name, err)
	}
	points := Convert(mfs, r.cfg.Prefix, r.cfg.Tags, now)
	if len(points) == 0 {
		return 0, nil
	}
	if err := r.cfg.Sender.Send(ctx, points); err != nil {
		return 0, fmt.Errorf("send %d points: %w", len(points), err)
	}
	return len(points), nil
}

// Start launches the reporting loop. It returns immediately; the loop runs
// until Stop is called or ctx is canceled. Calling Start on a running
// reporter is a no-op.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if r.done != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
	r.log.Infof("reporter %s started with interval %s", r.cfg.Name, r.cfg.Interval)
	return nil
}

func (r *Reporter) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.safeReport(ctx)
		}
	}
}

func (r *Reporter) safeReport(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			err := monitoring.CapturePanic(p, map[string]string{"reporter": r.cfg.Name})
			r.log.Errorf("reporter %s: %v", r.cfg.Name, err)
		}
	}()
	if err := r.Report(ctx); err != nil && ctx.Err() == nil {
		r.log.Errorf("reporter %s: %v", r.cfg.Name, err)
	}
}

// Stop ends the loop and waits for an in-flight report. It is safe to call
// more than once and on a reporter never started.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	r.log.Infof("reporter %s stopped", r.cfg.Name)
}
