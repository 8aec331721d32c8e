package config

import "fmt"

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	// Addr is the listen address, host optional.
	Addr string `json:"addr"`
	// AuthToken protects the API when non-empty; clients send it as a
	// bearer Authorization header. The /metrics endpoint stays open.
	AuthToken string `json:"auth_token"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}
