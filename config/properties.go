package config

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/magiconair/properties"
)

// EnvPrefix marks environment variables overriding properties, e.g.
// BROKERFLUX_PORT=8086 overrides "port".
const EnvPrefix = "BROKERFLUX_"

// Property keys are flat; a delimiter that never shows up in them keeps
// koanf from nesting dotted keys.
const keyDelim = "/"

// ErrNotLoaded is returned when properties are queried before a successful load.
var ErrNotLoaded = errors.New("properties not loaded")

type propertiesParser struct{}

// PropertiesParser returns a koanf.Parser for Java-style .properties files.
// Both "key=value" and "key:value" are accepted and ${} expansion is off.
func PropertiesParser() koanf.Parser { return propertiesParser{} }

func (propertiesParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true
	if err := p.Load(b, properties.UTF8); err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, p.Len())
	for k, v := range p.Map() {
		out[k] = v
	}
	return out, nil
}

func (propertiesParser) Marshal(m map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%v\n", k, m[k])
	}
	return buf.Bytes(), nil
}

// Reader holds the properties of one file, overlaid with environment
// overrides for the keys it knows about.
type Reader struct {
	k     *koanf.Koanf
	path  string
	known map[string]string
}

// NewReader returns a Reader accepting environment overrides for knownKeys.
func NewReader(knownKeys ...string) *Reader {
	known := make(map[string]string, len(knownKeys))
	for _, k := range knownKeys {
		known[strings.ToLower(k)] = k
	}
	return &Reader{known: known}
}

// LoadFile reads the properties file at path. A failed load leaves the
// previous state untouched.
func (r *Reader) LoadFile(path string) error {
	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), PropertiesParser()); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, keyDelim, r.envKey), nil); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	r.k = k
	r.path = path
	return nil
}

func (r *Reader) envKey(s string) string {
	return r.known[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
}

// Loaded reports whether a file has been read.
func (r *Reader) Loaded() bool { return r.k != nil }

// Path is the file the properties were read from.
func (r *Reader) Path() string { return r.path }

// Property returns the value for key. Empty values count as unset.
func (r *Reader) Property(key string) (string, bool) {
	if r.k == nil {
		return "", false
	}
	v := r.k.String(key)
	if v == "" {
		return "", false
	}
	return v, true
}

// Keys lists every property key present.
func (r *Reader) Keys() ([]string, error) {
	if r.k == nil {
		return nil, ErrNotLoaded
	}
	keys := r.k.Keys()
	sort.Strings(keys)
	return keys, nil
}
