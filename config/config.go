package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/brokerflux/infra/logger"
)

const (
	// ConfigFile is the configuration location relative to the extension home.
	ConfigFile = "conf/config.properties"
	// LegacyConfigFile is still read when ConfigFile does not exist.
	LegacyConfigFile = "influxdb.properties"
)

// Property keys.
const (
	KeyHost                      = "host"
	KeyPort                      = "port"
	KeyMode                      = "mode"
	KeyProtocol                  = "protocol"
	KeyReportingInterval         = "reportingInterval"
	KeyFilteredReportingInterval = "filteredReportingInterval"
	KeyPrefix                    = "prefix"
	KeyDatabase                  = "database"
	KeyConnectTimeout            = "connectTimeout"
	KeyAuth                      = "auth"
	KeyTags                      = "tags"
	KeyMetricsFilterList         = "metricsFilterList"
	KeyConsoleDebug              = "consoleDebug"
	KeyVersion                   = "version"
	KeyBucket                    = "bucket"
	KeyOrganization              = "organization"
)

// Sender modes.
const (
	ModeHTTP  = "http"
	ModeTCP   = "tcp"
	ModeUDP   = "udp"
	ModeCloud = "cloud"
)

const (
	defaultMode              = ModeHTTP
	defaultDatabase          = "hivemq"
	defaultReportingInterval = 1
	defaultConnectTimeoutMS  = 5000
	defaultVersion           = 1
	maxVersion               = 3
)

// Hosts shipped in sample configurations; they must be replaced.
var placeholderHosts = []string{"--INFLUX-DB-IP--", "<INFLUXDB IP>"}

var knownKeys = []string{
	KeyHost, KeyPort, KeyMode, KeyProtocol, KeyReportingInterval, KeyFilteredReportingInterval,
	KeyPrefix, KeyDatabase, KeyConnectTimeout, KeyAuth, KeyTags, KeyMetricsFilterList,
	KeyConsoleDebug, KeyVersion, KeyBucket, KeyOrganization,
}

// Config exposes the InfluxDB settings of an extension home folder.
type Config struct {
	*Reader
	home string
	log  logger.Logger
}

// NewConfig returns a Config for the extension installed in home. Nothing is
// read until Load is called.
func NewConfig(home string, log logger.Logger) *Config {
	if log == nil {
		log = logger.New("configuration")
	}
	return &Config{Reader: NewReader(knownKeys...), home: home, log: log}
}

// Load reads conf/config.properties, falling back to the legacy
// influxdb.properties in the home folder.
func (c *Config) Load() error {
	path := filepath.Join(c.home, filepath.FromSlash(ConfigFile))
	if _, err := os.Stat(path); err != nil {
		legacy := filepath.Join(c.home, LegacyConfigFile)
		if _, lerr := os.Stat(legacy); lerr != nil {
			c.log.Errorf("not able to load configuration file '%s'", path)
			return fmt.Errorf("no configuration in %s: %w", c.home, err)
		}
		c.log.Warnf("using legacy configuration file '%s', please move it to '%s'", legacy, ConfigFile)
		path = legacy
	}
	if err := c.LoadFile(path); err != nil {
		c.log.Errorf("not able to load configuration file '%s'", path)
		return err
	}
	return nil
}

// Validate checks mandatory properties. Every problem is logged and the
// joined problems are returned.
func (c *Config) Validate() error {
	if !c.Loaded() {
		return ErrNotLoaded
	}
	if c.ConsoleDebug() {
		return nil
	}
	var errs []error
	fail := func(format string, args ...any) {
		err := fmt.Errorf(format, args...)
		c.log.Errorf("%v", err)
		errs = append(errs, err)
	}

	host, hostOK := c.Property(KeyHost)
	port, portOK := c.Property(KeyPort)
	if !hostOK {
		fail("mandatory property %s is not set", KeyHost)
	}
	if !portOK {
		fail("mandatory property %s is not set", KeyPort)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if p, err := strconv.Atoi(port); err != nil {
		fail("value for mandatory property %s is not a number", KeyPort)
	} else if p < 0 || p > 65535 {
		fail("value for mandatory property %s is not in valid port range", KeyPort)
	}
	for _, ph := range placeholderHosts {
		if host == ph {
			fail("property %s still holds the placeholder %s", KeyHost, ph)
		}
	}
	if v, ok := c.Property(KeyVersion); ok {
		if n, err := strconv.Atoi(v); err != nil || n < 1 || n > maxVersion {
			fail("value for property %s must be between 1 and %d, got %q", KeyVersion, maxVersion, v)
		}
	}
	if c.Version() == 2 {
		for _, key := range []string{KeyAuth, KeyBucket, KeyOrganization} {
			if _, ok := c.Property(key); !ok {
				fail("property %s is mandatory for InfluxDB v2", key)
			}
		}
	}
	return errors.Join(errs...)
}

// Mode selects the transport, "http" by default.
func (c *Config) Mode() string { return c.stringOr(KeyMode, defaultMode) }

// Host is the InfluxDB host, empty when unset.
func (c *Config) Host() string {
	h, _ := c.Property(KeyHost)
	return h
}

// Port is the InfluxDB port, zero when unset or not a number.
func (c *Config) Port() int {
	v, ok := c.Property(KeyPort)
	if !ok {
		return 0
	}
	p, err := strconv.Atoi(v)
	if err != nil {
		c.log.Errorf("value for %s is not a number", KeyPort)
		return 0
	}
	return p
}

// Database is the target database for v1 and v3, "hivemq" by default.
func (c *Config) Database() string { return c.stringOr(KeyDatabase, defaultDatabase) }

// Prefix is prepended to every measurement name.
func (c *Config) Prefix() string { return c.stringOr(KeyPrefix, "") }

// Auth is the credential: "user:password" for v1, a token for v2 and v3.
func (c *Config) Auth() string {
	a, _ := c.Property(KeyAuth)
	return a
}

// Bucket is the InfluxDB v2 bucket.
func (c *Config) Bucket() string {
	b, _ := c.Property(KeyBucket)
	return b
}

// Organization is the InfluxDB v2 organization.
func (c *Config) Organization() string {
	o, _ := c.Property(KeyOrganization)
	return o
}

// ReportingInterval is the period of the main reporter.
func (c *Config) ReportingInterval() time.Duration {
	return time.Duration(c.positiveIntOr(KeyReportingInterval, defaultReportingInterval)) * time.Second
}

// FilteredReportingInterval is the period of the reporter for filtered metrics.
func (c *Config) FilteredReportingInterval() time.Duration {
	return time.Duration(c.positiveIntOr(KeyFilteredReportingInterval, defaultReportingInterval)) * time.Second
}

// ConnectTimeout bounds connecting to and writing to InfluxDB.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.positiveIntOr(KeyConnectTimeout, defaultConnectTimeoutMS)) * time.Millisecond
}

// Protocol is the URL scheme, def when unset.
func (c *Config) Protocol(def string) string {
	p, ok := c.Property(KeyProtocol)
	if !ok {
		c.log.Warnf("no protocol configured for InfluxDB in mode '%s', using default: '%s'", c.Mode(), def)
		return def
	}
	return p
}

// Tags parses "k1=v1;k2=v2". Malformed entries are skipped.
func (c *Config) Tags() map[string]string {
	tags := map[string]string{}
	raw, ok := c.Property(KeyTags)
	if !ok {
		return tags
	}
	for _, tag := range strings.Split(raw, ";") {
		if tag == "" {
			continue
		}
		pair := strings.FieldsFunc(tag, func(r rune) bool { return r == '=' })
		if len(pair) != 2 {
			c.log.Warnf("invalid tag format %s for InfluxDB", tag)
			continue
		}
		tags[pair[0]] = pair[1]
	}
	return tags
}

// MetricFilter lists the metric name prefixes reported separately.
func (c *Config) MetricFilter() []string {
	raw, ok := c.Property(KeyMetricsFilterList)
	if !ok {
		return nil
	}
	var out []string
	for _, f := range strings.Split(raw, ";") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ConsoleDebug reports whether points are logged instead of sent.
func (c *Config) ConsoleDebug() bool {
	v, _ := c.Property(KeyConsoleDebug)
	b, _ := strconv.ParseBool(v)
	return b
}

// Version is the InfluxDB API generation. An explicit valid version wins,
// cloud mode implies 2, anything else is 1.
func (c *Config) Version() int {
	if v, ok := c.Property(KeyVersion); ok {
		n, err := strconv.Atoi(v)
		if err == nil && n >= 1 && n <= maxVersion {
			return n
		}
		c.log.Warnf("invalid InfluxDB version '%s', ignoring it", v)
	}
	if c.Mode() == ModeCloud {
		return 2
	}
	return defaultVersion
}

func (c *Config) stringOr(key, def string) string {
	v, ok := c.Property(key)
	if !ok {
		if def != "" {
			c.log.Warnf("no '%s' configured for InfluxDB, using default: %s", key, def)
		}
		return def
	}
	return v
}

func (c *Config) positiveIntOr(key string, def int) int {
	v, ok := c.Property(key)
	if !ok {
		c.log.Warnf("no '%s' configured for InfluxDB, using default: %d", key, def)
		return def
	}
	n, err := strconv.Atoi(v)
	switch {
	case err != nil:
		c.log.Warnf("value for InfluxDB property '%s' is not a number, original value %s. Using default: %d", key, v, def)
		return def
	case n == 0:
		c.log.Warnf("value for InfluxDB property '%s' can't be zero. Using default: %d", key, def)
		return def
	case n < 0:
		c.log.Warnf("value for InfluxDB property '%s' can't be negative. Using default: %d", key, def)
		return def
	}
	return n
}

// Settings is a printable snapshot of the effective configuration.
type Settings struct {
	Path                      string            `json:"path"`
	Mode                      string            `json:"mode"`
	Version                   int               `json:"version"`
	Host                      string            `json:"host"`
	Port                      int               `json:"port"`
	Database                  string            `json:"database,omitempty"`
	Bucket                    string            `json:"bucket,omitempty"`
	Organization              string            `json:"organization,omitempty"`
	Prefix                    string            `json:"prefix,omitempty"`
	AuthSet                   bool              `json:"auth_set"`
	Tags                      map[string]string `json:"tags,omitempty"`
	MetricFilter              []string          `json:"metric_filter,omitempty"`
	ReportingInterval         string            `json:"reporting_interval"`
	FilteredReportingInterval string            `json:"filtered_reporting_interval,omitempty"`
	ConnectTimeout            string            `json:"connect_timeout"`
	ConsoleDebug              bool              `json:"console_debug"`
}

// Settings returns the effective configuration. The credential is never
// included.
func (c *Config) Settings() Settings {
	s := Settings{
		Path:              c.Path(),
		Mode:              c.Mode(),
		Version:           c.Version(),
		Host:              c.Host(),
		Port:              c.Port(),
		Prefix:            c.Prefix(),
		AuthSet:           c.Auth() != "",
		Tags:              c.Tags(),
		MetricFilter:      c.MetricFilter(),
		ReportingInterval: c.ReportingInterval().String(),
		ConnectTimeout:    c.ConnectTimeout().String(),
		ConsoleDebug:      c.ConsoleDebug(),
	}
	if s.Version == 2 {
		s.Bucket = c.Bucket()
		s.Organization = c.Organization()
	} else {
		s.Database = c.Database()
	}
	if len(s.MetricFilter) > 0 {
		s.FilteredReportingInterval = c.FilteredReportingInterval().String()
	}
	return s
}
