// Package monitoring routes errors and recovered panics to a pluggable
// error monitor. The default monitor discards everything.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Monitor receives errors and recovered panics. Panics are recovered at the
// deferred call site and handed over through CapturePanic.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

func monitor() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init sets the global monitor implementation. A nil monitor is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	monitor().CaptureException(err, tags)
}

// CapturePanic converts a recovered value into an error, records it and
// returns it.
func CapturePanic(p any, tags map[string]string) error {
	err, ok := p.(error)
	if !ok {
		err = fmt.Errorf("%v", p)
	}
	err = fmt.Errorf("panic: %w", err)
	CaptureException(err, tags)
	return err
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	monitor().Flush(d)
}
