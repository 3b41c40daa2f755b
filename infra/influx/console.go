package influx

import (
	"context"
	"strings"

	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
)

// ConsoleSender logs every line instead of sending it.
type ConsoleSender struct {
	log logger.Logger
}

// NewConsoleSender logs through log.
func NewConsoleSender(log logger.Logger) *ConsoleSender {
	return &ConsoleSender{log: logger.OrNop(log)}
}

func (s *ConsoleSender) Send(_ context.Context, points []metrics.Point) error {
	for _, l := range Lines(points) {
		s.log.Infof("%s", strings.TrimSuffix(l, "\n"))
	}
	return nil
}

func (s *ConsoleSender) Close() error { return nil }
