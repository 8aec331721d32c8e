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

	"github.com/kilianp07/errandplan/core/metrics"
)

// Config is the root of the service configuration. Sections own their
// defaults and validation; Load applies both.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Planning PlanningConfig `json:"planning"`
	Calendar CalendarConfig `json:"calendar"`
	Travel   TravelConfig   `json:"travel"`
	Errands  []ErrandConfig `json:"errands"`
	Places   []PlaceConfig  `json:"places"`
	Metrics  metrics.Config `json:"metrics"`
	RunLog   RunLogConfig   `json:"runlog"`
	KPI      KPIConfig      `json:"kpi"`
	Estimate EstimateConfig `json:"estimate"`
	Trigger  TriggerConfig  `json:"trigger"`
	Sentry   SentryConfig   `json:"sentry"`
}

// Load reads the configuration file, applies EP_ environment overrides
// (EP_SERVER__ADDR=... maps to server.addr) and validates every section.
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
	if err := k.Load(env.Provider("EP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ep_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies section defaults and validates the whole configuration.
// Exported so tests and the CLI validate command can run it on hand-built
// configs.
func (c *Config) Finalize() error {
	c.Server.SetDefaults()
	c.Planning.SetDefaults()
	c.Travel.SetDefaults()
	c.RunLog.SetDefaults()
	c.KPI.SetDefaults()

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Planning.Validate(); err != nil {
		return fmt.Errorf("planning: %w", err)
	}
	if err := c.Travel.Validate(); err != nil {
		return fmt.Errorf("travel: %w", err)
	}
	if err := c.RunLog.Validate(); err != nil {
		return fmt.Errorf("runlog: %w", err)
	}
	if err := c.KPI.Validate(); err != nil {
		return fmt.Errorf("kpi: %w", err)
	}
	for i, e := range c.Errands {
		if _, err := e.Definition(); err != nil {
			return fmt.Errorf("errands[%d] (%s): %w", i, e.ID, err)
		}
	}
	for i, p := range c.Places {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("places[%d]: %w", i, err)
		}
	}
	return nil
}
