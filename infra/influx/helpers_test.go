package influx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/brokerflux/config"
	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
)

var testTime = time.Unix(1700000000, 0)

func testPoints() []metrics.Point {
	return []metrics.Point{
		{Measurement: "hivemq.clients_connected", Tags: map[string]string{"node": "a"}, Fields: map[string]any{"value": 3.5}, Time: testTime},
		{Measurement: "hivemq.publish_total", Fields: map[string]any{"count": int64(7)}, Time: testTime},
	}
}

func loadConfig(t *testing.T, lines ...string) *config.Config {
	t.Helper()
	home := t.TempDir()
	path := filepath.Join(home, filepath.FromSlash(config.ConfigFile))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	cfg := config.NewConfig(home, logger.NopLogger{})
	require.NoError(t, cfg.Load())
	return cfg
}

func serverOptions(t *testing.T, srv *httptest.Server) Options {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Options{Protocol: u.Scheme, Host: u.Hostname(), Port: port, Database: "hivemq", Timeout: time.Second}
}

type capturedRequest struct {
	path     string
	rawQuery string
	header   http.Header
	body     string
}

func readGzip(t *testing.T, r *http.Request) string {
	t.Helper()
	zr, err := gzip.NewReader(r.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}
