package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr())
	assert.Equal(t, "127.0.0.1:9042", cfg.Scylla.URI)
	assert.Equal(t, 4, cfg.Scylla.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Scylla.ConnectTimeout)
	assert.Equal(t, int64(62_914_560), cfg.Storage.MaxBackupBytes)
	assert.Equal(t, 1_048_576, cfg.Storage.MaxValueBytes)
	assert.False(t, cfg.Storage.DatastoreEnabled)
	assert.True(t, cfg.Compression.Enabled)
	assert.Equal(t, 3, cfg.Compression.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, float64(50), cfg.RateLimit.PerSecond)
	assert.Equal(t, 150, cfg.RateLimit.Burst)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SCYLLA_URI", "db1:9042")
	t.Setenv("SCYLLA_USERNAME", "cassandra")
	t.Setenv("SCYLLA_POOL_SIZE", "8")
	t.Setenv("SCYLLA_CONNECTION_TIMEOUT_MS", "2500")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_BACKUP_SIZE_BYTES", "1000")
	t.Setenv("COMPRESSION_ENABLED", "false")
	t.Setenv("DATASTORE_ENABLED", "true")
	t.Setenv("DISCORD_ALLOWED_USER_IDS", "111, 222,333")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "db1:9042", cfg.Scylla.URI)
	assert.Equal(t, "cassandra", cfg.Scylla.Username)
	assert.Equal(t, 8, cfg.Scylla.PoolSize)
	assert.Equal(t, 2500*time.Millisecond, cfg.Scylla.ConnectTimeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1000), cfg.Storage.MaxBackupBytes)
	assert.False(t, cfg.Compression.Enabled)
	assert.True(t, cfg.Storage.DatastoreEnabled)
	assert.Equal(t, []string{"111", "222", "333"}, cfg.Discord.AllowedUserIDs)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoadInvalidPortRejected(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server.Port")
}

func TestLoadExplicitFalseSurvivesDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, float64(50), cfg.RateLimit.PerSecond, "rate defaults still apply")
}

func TestRedirectURI(t *testing.T) {
	cfg := ServerConfig{FQDN: "https://cloud.example.com"}
	assert.Equal(t, "https://cloud.example.com/v1/oauth/callback", cfg.RedirectURI())
}

func TestValidateDefaultConfig(t *testing.T) {
	assert.NoError(t, Validate(GetDefaultConfig()))
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "LOUD"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestValidateInvalidRedirectURL(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.RootRedirectURL = "not a url"

	assert.Error(t, Validate(cfg))
}
