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

	"github.com/medbot/rounds/api"
	"github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/core/scheduler"
	"github.com/medbot/rounds/infra/lock"
	"github.com/medbot/rounds/infra/mqtt"
	"github.com/medbot/rounds/infra/sqlstore"
)

type Config struct {
	Store     sqlstore.Config  `json:"store"`
	Lock      lock.Config      `json:"lock"`
	MQTT      mqtt.Config      `json:"mqtt"`
	Fanout    FanoutConfig     `json:"fanout"`
	Scheduler scheduler.Config `json:"scheduler"`
	API       api.Config       `json:"api"`
	Metrics   metrics.Config   `json:"metrics"`
	Telemetry TelemetryConfig  `json:"telemetry"`
	Logging   LoggingConfig    `json:"logging"`
	Sentry    SentryConfig     `json:"sentry"`
}

// FanoutConfig sizes the per-member frame queues.
type FanoutConfig struct {
	Buffer int `json:"buffer"`
}

func (c *FanoutConfig) SetDefaults() {
	if c.Buffer <= 0 {
		c.Buffer = 32
	}
}

type section interface {
	Validate() error
}

// Load reads path and applies K_ prefixed environment overrides, e.g.
// K_SCHEDULER__TIMEZONE=Europe/Paris.
func Load(path string) (*Config, error) {
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
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Lock.SetDefaults()
	c.MQTT.SetDefaults()
	c.Fanout.SetDefaults()
	c.Scheduler.SetDefaults()
	c.API.SetDefaults()
	c.Telemetry.SetDefaults()
	c.Logging.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section and names the first one failing.
func (c Config) Validate() error {
	sections := []struct {
		name string
		s    section
	}{
		{"store", c.Store},
		{"lock", c.Lock},
		{"mqtt", c.MQTT},
		{"scheduler", c.Scheduler},
		{"api", c.API},
		{"metrics", c.Metrics},
		{"telemetry", c.Telemetry},
		{"logging", c.Logging},
		{"sentry", c.Sentry},
	}
	for _, s := range sections {
		if err := s.s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
