// Package config loads the server configuration from the environment,
// with an optional YAML file for local development. Configuration is
// read once at startup and passed explicitly; nothing re-reads the
// environment afterwards.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/equicloud/equicloud/pkg/cloudsync/store/scylla"
)

// Config is the full server configuration.
//
// Sources (highest precedence first):
//  1. Environment variables (flat names, e.g. SCYLLA_URI)
//  2. Configuration file (YAML, when a path is given)
//  3. Default values
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server holds the HTTP listener settings.
	Server ServerConfig `mapstructure:"server"`

	// Scylla configures the backing store connection.
	Scylla scylla.Config `mapstructure:"scylla"`

	// Storage holds the per-value and per-user size limits.
	Storage StorageConfig `mapstructure:"storage"`

	// Compression controls the zstd value pipeline.
	Compression CompressionConfig `mapstructure:"compression"`

	// Discord configures the OAuth identity provider.
	Discord DiscordConfig `mapstructure:"discord"`

	// RateLimit configures per-client request throttling.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Metrics gates the aggregate metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format selects the output encoding: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is the destination: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`

	// FQDN is the externally reachable base URL, used to build the
	// OAuth redirect URI.
	FQDN string `mapstructure:"fqdn"`

	// RootRedirectURL, when set, turns GET / into a 301 to this URL
	// instead of the endpoint index.
	RootRedirectURL string `mapstructure:"root_redirect_url" validate:"omitempty,url"`

	// CORSAllowedOrigins lists the origins allowed by the CORS layer.
	// Empty means allow all.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// ListenAddr returns the host:port the server binds to.
func (c ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedirectURI returns the OAuth callback URL advertised to clients.
func (c ServerConfig) RedirectURI() string {
	return c.FQDN + "/v1/oauth/callback"
}

// StorageConfig holds the size limits enforced on writes.
type StorageConfig struct {
	// MaxBackupBytes caps the total bytes stored per user.
	MaxBackupBytes int64 `mapstructure:"max_backup_bytes" validate:"required,gt=0"`

	// MaxValueBytes caps a single data value.
	MaxValueBytes int `mapstructure:"max_value_bytes" validate:"required,gt=0"`

	// MaxDatastoreValueBytes caps a single value under the dataStore/
	// subnamespace.
	MaxDatastoreValueBytes int `mapstructure:"max_datastore_value_bytes" validate:"required,gt=0"`

	// DatastoreEnabled admits keys under the dataStore/ subnamespace.
	DatastoreEnabled bool `mapstructure:"datastore_enabled"`
}

// CompressionConfig controls the zstd value pipeline.
type CompressionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Level   int  `mapstructure:"level" validate:"omitempty,min=1,max=22"`
}

// DiscordConfig configures the OAuth identity provider.
type DiscordConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	// AllowedUserIDs restricts the callback to listed provider user
	// ids. Empty means any authenticated user.
	AllowedUserIDs []string `mapstructure:"allowed_user_ids"`
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	PerSecond float64 `mapstructure:"per_second" validate:"omitempty,gt=0"`
	Burst     int     `mapstructure:"burst" validate:"omitempty,gt=0"`
}

// MetricsConfig gates the aggregate metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// envBindings maps viper keys to the environment variable names the
// deployment exposes. Names are flat and historical; they do not follow
// a prefix convention, so each one is bound explicitly.
var envBindings = map[string]string{
	"logging.level":  "LOG_LEVEL",
	"logging.format": "LOG_FORMAT",
	"logging.output": "LOG_OUTPUT",

	"server.host":              "SERVER_HOST",
	"server.port":              "SERVER_PORT",
	"server.fqdn":              "SERVER_FQDN",
	"server.root_redirect_url": "API_ROOT_REDIRECT_URL",
	"server.shutdown_timeout":  "SHUTDOWN_TIMEOUT",

	"scylla.uri":             "SCYLLA_URI",
	"scylla.username":        "SCYLLA_USERNAME",
	"scylla.password":        "SCYLLA_PASSWORD",
	"scylla.pool_size":       "SCYLLA_POOL_SIZE",
	"scylla.connect_timeout": "SCYLLA_CONNECTION_TIMEOUT_MS",

	"storage.max_backup_bytes":          "MAX_BACKUP_SIZE_BYTES",
	"storage.max_value_bytes":           "MAX_KEY_SIZE_BYTES",
	"storage.max_datastore_value_bytes": "MAX_DATASTORE_KEY_SIZE_BYTES",
	"storage.datastore_enabled":         "DATASTORE_ENABLED",

	"compression.enabled": "COMPRESSION_ENABLED",
	"compression.level":   "COMPRESSION_LEVEL",

	"discord.client_id":     "DISCORD_CLIENT_ID",
	"discord.client_secret": "DISCORD_CLIENT_SECRET",

	"rate_limit.enabled":    "RATE_LIMIT_ENABLED",
	"rate_limit.per_second": "RATE_LIMIT_PER_SECOND",
	"rate_limit.burst":      "RATE_LIMIT_BURST",

	"metrics.enabled": "METRICS_ENABLED",
}

// csv-valued variables are split manually after unmarshalling.
var csvBindings = map[string]string{
	"server.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
	"discord.allowed_user_ids":    "DISCORD_ALLOWED_USER_IDS",
}

// Load reads configuration from the environment and the optional config
// file, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyCSV(v, &cfg)

	// These default to enabled; a zero-value check cannot tell "unset"
	// from an explicit false.
	if !v.IsSet("compression.enabled") {
		cfg.Compression.Enabled = true
	}
	if !v.IsSet("rate_limit.enabled") {
		cfg.RateLimit.Enabled = true
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	for key, env := range csvBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configPath == "" {
		return nil
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// applyCSV splits the comma-separated list variables, trimming blanks.
// Viper would otherwise hand the raw string through as a single-element
// slice.
func applyCSV(v *viper.Viper, cfg *Config) {
	cfg.Server.CORSAllowedOrigins = splitCSV(v.GetString("server.cors_allowed_origins"))
	cfg.Discord.AllowedUserIDs = splitCSV(v.GetString("discord.allowed_user_ids"))
}

// durationDecodeHook converts strings and numbers to time.Duration.
// Unit-suffixed strings ("30s", "5m") parse as usual; bare numbers are
// taken as milliseconds, matching the *_TIMEOUT_MS variable names.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if d, err := time.ParseDuration(v); err == nil {
				return d, nil
			}
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q", v)
			}
			return time.Duration(ms) * time.Millisecond, nil
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case float64:
			return time.Duration(v) * time.Millisecond, nil
		default:
			return data, nil
		}
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
