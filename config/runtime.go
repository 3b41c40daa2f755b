package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/brokerflux/infra/mqtt"
)

// Runtime configures the standalone host: where the extension lives, which
// broker to mirror and where to expose the metric registry.
type Runtime struct {
	Home    string        `json:"home"`
	MQTT    mqtt.Config   `json:"mqtt"`
	Metrics MetricsConfig `json:"metrics"`
	Sentry  SentryConfig  `json:"sentry"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables the endpoint.
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (r *Runtime) SetDefaults() {
	if r.Home == "" {
		r.Home = "."
	}
	if r.MQTT.SysTopic == "" {
		r.MQTT.SysTopic = mqtt.DefaultSysTopic
	}
}

// Validate checks the runtime configuration.
func (r Runtime) Validate() error {
	if r.MQTT.Broker != "" && !strings.Contains(r.MQTT.Broker, "://") {
		return fmt.Errorf("mqtt broker %q must be a URL like tcp://host:1883", r.MQTT.Broker)
	}
	return r.Sentry.Validate()
}

// Load reads a YAML or JSON runtime configuration. Variables prefixed with
// K_ override file values, "__" separating nested keys.
func Load(path string) (*Runtime, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Runtime
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
