package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReaderFileDoesNotExist(t *testing.T) {
	r := NewReader()
	err := r.LoadFile(filepath.Join(t.TempDir(), "test"))
	require.Error(t, err)
	assert.False(t, r.Loaded())
}

func TestReaderEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test")
	writeFile(t, path, "")
	r := NewReader()
	require.NoError(t, r.LoadFile(path))
	assert.True(t, r.Loaded())
	assert.Equal(t, path, r.Path())
}

func TestReaderColonSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test")
	writeFile(t, path, "key:value\n")
	r := NewReader()
	require.NoError(t, r.LoadFile(path))

	v, ok := r.Property("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = r.Property("unknown")
	assert.False(t, ok)
}

func TestReaderPropertyBeforeLoad(t *testing.T) {
	r := NewReader()
	_, ok := r.Property("key")
	assert.False(t, ok)
	_, err := r.Keys()
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestReaderEmptyValueIsUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test")
	writeFile(t, path, "host=\nport=8086\n")
	r := NewReader()
	require.NoError(t, r.LoadFile(path))
	_, ok := r.Property("host")
	assert.False(t, ok)
	keys, err := r.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "port"}, keys)
}

func TestReaderDottedKeysAndNoExpansion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test")
	writeFile(t, path, "com.example.key=${HOME}\n")
	r := NewReader()
	require.NoError(t, r.LoadFile(path))
	v, ok := r.Property("com.example.key")
	assert.True(t, ok)
	assert.Equal(t, "${HOME}", v)
}

func TestReaderEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test")
	writeFile(t, path, "port=3000\nreportingInterval=5\n")
	t.Setenv("BROKERFLUX_PORT", "8086")
	t.Setenv("BROKERFLUX_REPORTINGINTERVAL", "10")
	t.Setenv("BROKERFLUX_UNKNOWN", "x")

	r := NewReader(KeyPort, KeyReportingInterval)
	require.NoError(t, r.LoadFile(path))
	port, _ := r.Property("port")
	assert.Equal(t, "8086", port)
	interval, _ := r.Property("reportingInterval")
	assert.Equal(t, "10", interval)
	_, ok := r.Property("unknown")
	assert.False(t, ok)
}

func TestPropertiesParserMarshal(t *testing.T) {
	b, err := PropertiesParser().Marshal(map[string]interface{}{"port": "8086", "host": "localhost"})
	require.NoError(t, err)
	assert.Equal(t, "host=localhost\nport=8086\n", string(b))
}
