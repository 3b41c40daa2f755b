package influx

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureServer(t *testing.T, status int, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.rawQuery = r.URL.RawQuery
		got.header = r.Header.Clone()
		got.body = readGzip(t, r)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestV1SenderWritesGzipWithBasicAuth(t *testing.T) {
	var got capturedRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	o := serverOptions(t, srv)
	o.Auth = "user:secret"

	s, err := NewV1Sender(o)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Send(context.Background(), testPoints()))

	assert.Equal(t, "/write", got.path)
	assert.Equal(t, "db=hivemq&precision=s", got.rawQuery)
	assert.Equal(t, "gzip", got.header.Get("Content-Encoding"))
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")), got.header.Get("Authorization"))
	assert.Equal(t, string(Encode(testPoints())), got.body)
}

func TestV1SenderWithoutAuth(t *testing.T) {
	var got capturedRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	s, err := NewV1Sender(serverOptions(t, srv))
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), testPoints()))
	assert.Empty(t, got.header.Get("Authorization"))
}

func TestV3SenderEndpoint(t *testing.T) {
	var got capturedRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	o := serverOptions(t, srv)
	o.Database = "my db"
	o.Auth = "apiv3_token"

	s, err := NewV3Sender(o)
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), testPoints()))

	assert.Equal(t, "/api/v3/write_lp", got.path)
	assert.Equal(t, "precision=s&db=my+db", got.rawQuery)
	assert.Equal(t, "Bearer apiv3_token", got.header.Get("Authorization"))
	assert.Equal(t, "gzip", got.header.Get("Content-Encoding"))
	assert.Equal(t, string(Encode(testPoints())), got.body)
}

func TestV3SenderNoTokenNoAuthorization(t *testing.T) {
	var got capturedRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	s, err := NewV3Sender(serverOptions(t, srv))
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), testPoints()))
	_, present := got.header["Authorization"]
	assert.False(t, present)
}

func TestHTTPSenderClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "database not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewV3Sender(serverOptions(t, srv))
	require.NoError(t, err)
	err = s.Send(context.Background(), testPoints())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, se.Error(), "database not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPSenderRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := serverOptions(t, srv)
	o.Timeout = 3 * time.Second
	s, err := NewV1Sender(o)
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), testPoints()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPSenderEmptyBatch(t *testing.T) {
	s, err := NewV1Sender(Options{Host: "127.0.0.1", Port: 1})
	require.NoError(t, err)
	assert.NoError(t, s.Send(context.Background(), nil))
}

func TestHTTPSenderRequiresHost(t *testing.T) {
	_, err := NewV1Sender(Options{Port: 8086})
	assert.Error(t, err)
	_, err = NewV3Sender(Options{Port: 8086})
	assert.Error(t, err)
}

func TestSenderURLs(t *testing.T) {
	v1, err := NewV1Sender(Options{Protocol: "https", Host: "influx.local", Port: 8086, Database: "hivemq"})
	require.NoError(t, err)
	assert.Equal(t, "https://influx.local:8086/write?db=hivemq&precision=s", v1.URL())

	v3, err := NewV3Sender(Options{Host: "influx.local", Port: 8181, Database: "hivemq"})
	require.NoError(t, err)
	assert.Equal(t, "http://influx.local:8181/api/v3/write_lp?precision=s&db=hivemq", v3.URL())
}
