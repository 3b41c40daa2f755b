package influx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
)

// CloudSender writes to the InfluxDB 2.x / Cloud API with the official
// client. The token is sent as "Token <auth>".
type CloudSender struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	url      string
	opts     Options
	log      logger.Logger
	once     sync.Once
}

// NewCloudSender returns a sender for o.Organization and o.Bucket.
func NewCloudSender(o Options) (*CloudSender, error) {
	if o.Bucket == "" || o.Organization == "" {
		return nil, fmt.Errorf("bucket and organization must be set for influxdb cloud")
	}
	base, err := baseURL(o, "https")
	if err != nil {
		return nil, err
	}
	client := influxdb2.NewClientWithOptions(base, o.Auth,
		influxdb2.DefaultOptions().
			SetHTTPClient(&http.Client{Timeout: o.timeout()}).
			SetPrecision(Precision).
			SetUseGZip(true).
			SetLogLevel(0))
	return &CloudSender{
		client:   client,
		writeAPI: client.WriteAPIBlocking(o.Organization, o.Bucket),
		url:      base,
		opts:     o,
		log:      logger.OrNop(o.Log),
	}, nil
}

// Send writes points in one request.
func (s *CloudSender) Send(ctx context.Context, points []metrics.Point) error {
	if len(points) == 0 {
		return nil
	}
	wps := make([]*write.Point, len(points))
	for i, p := range points {
		wps[i] = ToWritePoint(p)
	}
	return retry(ctx, s.opts.timeout(), func() error {
		err := s.writeAPI.WritePoint(ctx, wps...)
		var he *ihttp.Error
		if errors.As(err, &he) && he.StatusCode != 0 {
			se := &StatusError{Code: he.StatusCode, URL: s.url, Body: he.Message}
			s.log.Warnf("influxdb write rejected: %v", se)
			return se
		}
		return err
	})
}

// Ping reports whether the server answers its ping endpoint.
func (s *CloudSender) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb at %s is not ready", s.url)
	}
	return nil
}

// Close releases the client.
func (s *CloudSender) Close() error {
	s.once.Do(s.client.Close)
	return nil
}
