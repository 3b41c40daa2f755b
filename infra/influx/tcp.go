package influx

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
)

// TCPSender streams newline-delimited line protocol over one TCP
// connection. The connection is dialled lazily and re-established when a
// write fails.
type TCPSender struct {
	addr string
	opts Options
	log  logger.Logger
	dial func(ctx context.Context, network, addr string) (net.Conn, error)

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewTCPSender returns a sender for o.Host:o.Port.
func NewTCPSender(o Options) (*TCPSender, error) {
	if o.Host == "" {
		return nil, fmt.Errorf("influxdb host must not be empty")
	}
	d := &net.Dialer{Timeout: o.timeout()}
	return &TCPSender{addr: o.address(), opts: o, log: logger.OrNop(o.Log), dial: d.DialContext}, nil
}

// Send writes the batch line by line, reconnecting with backoff when the
// connection breaks. After a reconnect, writing resumes at the first line
// not completely written; a line cut by the failure is written again in
// full on the new connection.
func (s *TCPSender) Send(ctx context.Context, points []metrics.Point) error {
	if len(points) == 0 {
		return nil
	}
	lines := Lines(points)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	next := 0
	return retry(ctx, s.opts.timeout(), func() error {
		for next < len(lines) {
			if err := s.write(ctx, []byte(lines[next])); err != nil {
				return err
			}
			next++
		}
		return nil
	})
}

func (s *TCPSender) write(ctx context.Context, body []byte) error {
	if s.conn == nil {
		conn, err := s.dial(ctx, "tcp", s.addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", s.addr, err)
		}
		s.log.Infof("connected to influxdb at %s", s.addr)
		s.conn = conn
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.timeout()))
	if _, err := s.conn.Write(body); err != nil {
		s.log.Warnf("write to %s failed, reconnecting: %v", s.addr, err)
		_ = s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// Close closes the connection. Further sends fail.
func (s *TCPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
