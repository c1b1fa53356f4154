package config

import (
	"strings"
	"time"
)

// Default size limits. The backup cap is 60 MiB, the per-value cap is
// 1 MiB; the dataStore/ subnamespace shares the per-value cap unless
// overridden.
const (
	DefaultMaxBackupBytes         = 62_914_560
	DefaultMaxValueBytes          = 1_048_576
	DefaultMaxDatastoreValueBytes = 1_048_576
)

// DefaultCompressionLevel is the zstd level used when none is set.
const DefaultCompressionLevel = 3

// ApplyDefaults fills any unset fields with their defaults. Explicit
// values are preserved; only zero values are replaced.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyScyllaDefaults(cfg)
	applyStorageDefaults(&cfg.Storage)
	applyCompressionDefaults(&cfg.Compression)
	applyRateLimitDefaults(&cfg.RateLimit)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyScyllaDefaults(cfg *Config) {
	if cfg.Scylla.URI == "" {
		cfg.Scylla.URI = "127.0.0.1:9042"
	}
	if cfg.Scylla.PoolSize == 0 {
		cfg.Scylla.PoolSize = 4
	}
	if cfg.Scylla.ConnectTimeout == 0 {
		cfg.Scylla.ConnectTimeout = 5 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.MaxBackupBytes == 0 {
		cfg.MaxBackupBytes = DefaultMaxBackupBytes
	}
	if cfg.MaxValueBytes == 0 {
		cfg.MaxValueBytes = DefaultMaxValueBytes
	}
	if cfg.MaxDatastoreValueBytes == 0 {
		cfg.MaxDatastoreValueBytes = DefaultMaxDatastoreValueBytes
	}
}

func applyCompressionDefaults(cfg *CompressionConfig) {
	if cfg.Level == 0 {
		cfg.Level = DefaultCompressionLevel
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.PerSecond == 0 {
		cfg.PerSecond = 50
	}
	if cfg.Burst == 0 {
		cfg.Burst = 150
	}
}

// GetDefaultConfig returns a configuration with every default applied
// and compression and rate limiting enabled, matching a fresh
// deployment with no environment set.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Compression: CompressionConfig{Enabled: true},
		RateLimit:   RateLimitConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
