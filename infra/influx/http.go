package influx

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
)

const maxErrorBody = 512

// HTTPSender posts gzip-compressed line protocol to a write endpoint.
type HTTPSender struct {
	url    string
	auth   string
	opts   Options
	client *http.Client
	log    logger.Logger
}

// NewV1Sender writes to the InfluxDB 1.x /write endpoint. A configured auth
// string ("user:password") is sent as basic authentication.
func NewV1Sender(o Options) (*HTTPSender, error) {
	base, err := baseURL(o, "http")
	if err != nil {
		return nil, err
	}
	u := base + "/write?db=" + url.QueryEscape(o.Database) + "&precision=s"
	auth := ""
	if o.Auth != "" {
		auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(o.Auth))
	}
	return newHTTPSender(u, auth, o), nil
}

// NewV3Sender writes to the InfluxDB 3 /api/v3/write_lp endpoint. The token
// is sent as a bearer token only when set.
func NewV3Sender(o Options) (*HTTPSender, error) {
	base, err := baseURL(o, "http")
	if err != nil {
		return nil, err
	}
	u := base + "/api/v3/write_lp?precision=s&db=" + url.QueryEscape(o.Database)
	auth := ""
	if o.Auth != "" {
		auth = "Bearer " + o.Auth
	}
	return newHTTPSender(u, auth, o), nil
}

func newHTTPSender(u, auth string, o Options) *HTTPSender {
	return &HTTPSender{
		url:    u,
		auth:   auth,
		opts:   o,
		client: &http.Client{Timeout: o.timeout()},
		log:    logger.OrNop(o.Log),
	}
}

func baseURL(o Options, defProtocol string) (string, error) {
	if o.Host == "" {
		return "", fmt.Errorf("influxdb host must not be empty")
	}
	u := url.URL{Scheme: o.protocol(defProtocol), Host: o.address()}
	return u.String(), nil
}

// URL is the write endpoint including its query.
func (s *HTTPSender) URL() string { return s.url }

// Send writes points in one request, retrying server errors within the
// configured timeout.
func (s *HTTPSender) Send(ctx context.Context, points []metrics.Point) error {
	if len(points) == 0 {
		return nil
	}
	body, err := gzipBody(Encode(points))
	if err != nil {
		return fmt.Errorf("compress batch: %w", err)
	}
	return retry(ctx, s.opts.timeout(), func() error { return s.post(ctx, body) })
}

func (s *HTTPSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Content-Encoding", "gzip")
	if s.auth != "" {
		req.Header.Set("Authorization", s.auth)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := &StatusError{Code: resp.StatusCode, URL: s.url, Body: strings.TrimSpace(string(msg))}
		s.log.Warnf("influxdb write rejected: %v", err)
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases idle connections.
func (s *HTTPSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
