package config

import "fmt"

// TravelConfig selects and tunes the travel time source.
type TravelConfig struct {
	// Mode is "static" for the built-in heuristic estimator or "http" for a
	// travel matrix service.
	Mode string `json:"mode"`
	// URL is the matrix service base URL, required in http mode.
	URL string `json:"url"`
	// Token is sent as a bearer token when set. ClientID, ClientSecret and
	// TokenURL switch to the OAuth2 client-credentials grant instead.
	Token        string `json:"token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
	// TimeoutSeconds bounds each matrix request.
	TimeoutSeconds int `json:"timeout_seconds"`
	// MaxRetries and BackoffMS tune the retry wrapper around the provider.
	MaxRetries int `json:"max_retries"`
	BackoffMS  int `json:"backoff_ms"`
	// RatePerSec caps outbound estimate calls; zero disables the limiter.
	RatePerSec float64 `json:"rate_per_sec"`
}

// SetDefaults applies sane defaults.
func (c *TravelConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "static"
	}
}

// Validate checks mandatory fields.
func (c TravelConfig) Validate() error {
	switch c.Mode {
	case "static":
	case "http":
		if c.URL == "" {
			return fmt.Errorf("url is required in http mode")
		}
		if c.TokenURL != "" && (c.ClientID == "" || c.ClientSecret == "") {
			return fmt.Errorf("token_url needs client_id and client_secret")
		}
	default:
		return fmt.Errorf("unknown mode %s", c.Mode)
	}
	if c.RatePerSec < 0 {
		return fmt.Errorf("rate_per_sec must not be negative")
	}
	return nil
}
