package api

import "time"

// HTTPConfig configures the API HTTP server timeouts.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Backup uploads can be tens of megabytes, so this
	// is longer than a typical API timeout.
	// Default: 60s
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Sync responses carry full value payloads.
	// Default: 60s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *HTTPConfig) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
}
