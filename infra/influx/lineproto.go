package influx

import (
	"bytes"
	"compress/gzip"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/brokerflux/core/metrics"
)

// Precision of every timestamp written by the senders.
const Precision = time.Second

// ToWritePoint converts p into a client point.
func ToWritePoint(p metrics.Point) *write.Point {
	return write.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time)
}

// Lines encodes points as newline-terminated line protocol records.
func Lines(points []metrics.Point) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		line := write.PointToLineProtocol(ToWritePoint(p), Precision)
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		out = append(out, line)
	}
	return out
}

// Encode returns the line protocol body for points.
func Encode(points []metrics.Point) []byte {
	var buf bytes.Buffer
	for _, l := range Lines(points) {
		buf.WriteString(l)
	}
	return buf.Bytes()
}

func gzipBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
