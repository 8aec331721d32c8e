package config

import "fmt"

// KPIConfig selects where per-category usage KPIs accumulate.
type KPIConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the database file, required for sqlite.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *KPIConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c KPIConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}
