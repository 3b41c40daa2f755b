package influx

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
)

// MaxDatagramSize bounds the payload of one UDP datagram. Batches larger
// than this are split on line boundaries; a single longer line is sent
// alone.
const MaxDatagramSize = 8192

// UDPSender sends line protocol datagrams. Delivery is not acknowledged.
type UDPSender struct {
	addr string
	log  logger.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewUDPSender resolves o.Host:o.Port and opens the socket.
func NewUDPSender(o Options) (*UDPSender, error) {
	if o.Host == "" {
		return nil, fmt.Errorf("influxdb host must not be empty")
	}
	addr := o.address()
	conn, err := net.DialTimeout("udp", addr, o.timeout())
	if err != nil {
		return nil, fmt.Errorf("open udp socket to %s: %w", addr, err)
	}
	return &UDPSender{addr: addr, log: logger.OrNop(o.Log), conn: conn}, nil
}

// Send writes the batch in as few datagrams as possible.
func (s *UDPSender) Send(ctx context.Context, points []metrics.Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	for _, d := range Datagrams(Lines(points), MaxDatagramSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.conn.Write(d); err != nil {
			return fmt.Errorf("send datagram to %s: %w", s.addr, err)
		}
	}
	return nil
}

// Datagrams packs lines into payloads of at most limit bytes.
func Datagrams(lines []string, limit int) [][]byte {
	var out [][]byte
	var cur []byte
	for _, l := range lines {
		if len(cur) > 0 && len(cur)+len(l) > limit {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, l...)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Close closes the socket.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
