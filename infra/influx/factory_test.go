package influx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderType(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"default http", []string{"host=localhost", "port=8086"}, SenderHTTP},
		{"tcp", []string{"mode=tcp", "host=localhost", "port=8094"}, SenderTCP},
		{"udp", []string{"mode=udp", "host=localhost", "port=8089"}, SenderUDP},
		{"cloud mode", []string{"mode=cloud", "host=localhost", "port=443"}, SenderCloud},
		{"version 2", []string{"version=2", "host=localhost", "port=8086"}, SenderCloud},
		{"version 3 wins over mode", []string{"version=3", "mode=tcp", "host=localhost", "port=8181"}, SenderV3},
		{"console debug wins", []string{"consoleDebug=true", "version=3"}, SenderConsole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SenderType(loadConfig(t, tt.lines...)))
		})
	}
}

func TestNewSenderBuildsEachType(t *testing.T) {
	tests := []struct {
		lines []string
		check func(t *testing.T, s any)
	}{
		{[]string{"host=localhost", "port=8086"}, func(t *testing.T, s any) {
			h, ok := s.(*HTTPSender)
			require.True(t, ok)
			assert.Equal(t, "http://localhost:8086/write?db=hivemq&precision=s", h.URL())
		}},
		{[]string{"host=localhost", "port=8086", "protocol=https", "database=broker"}, func(t *testing.T, s any) {
			assert.Equal(t, "https://localhost:8086/write?db=broker&precision=s", s.(*HTTPSender).URL())
		}},
		{[]string{"version=3", "host=localhost", "port=8181"}, func(t *testing.T, s any) {
			assert.Equal(t, "http://localhost:8181/api/v3/write_lp?precision=s&db=hivemq", s.(*HTTPSender).URL())
		}},
		{[]string{"mode=tcp", "host=localhost", "port=8094"}, func(t *testing.T, s any) {
			assert.IsType(t, &TCPSender{}, s)
		}},
		{[]string{"mode=udp", "host=127.0.0.1", "port=8089"}, func(t *testing.T, s any) {
			assert.IsType(t, &UDPSender{}, s)
		}},
		{[]string{"mode=cloud", "host=localhost", "port=443", "auth=t", "bucket=b", "organization=o"}, func(t *testing.T, s any) {
			c, ok := s.(*CloudSender)
			require.True(t, ok)
			assert.Equal(t, "https://localhost:443", c.url)
		}},
		{[]string{"consoleDebug=true"}, func(t *testing.T, s any) {
			assert.IsType(t, &ConsoleSender{}, s)
		}},
	}
	for _, tt := range tests {
		s, err := NewSender(loadConfig(t, tt.lines...), nil)
		require.NoError(t, err, "%v", tt.lines)
		tt.check(t, s)
		assert.NoError(t, s.Close())
	}
}

func TestNewSenderUnknownMode(t *testing.T) {
	_, err := NewSender(loadConfig(t, "mode=carrier-pigeon", "host=localhost", "port=1"), nil)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNewSenderCloudWithoutBucket(t *testing.T) {
	_, err := NewSender(loadConfig(t, "mode=cloud", "host=localhost", "port=443", "auth=t"), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownMode)
}
