package scylla

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/equicloud/equicloud/internal/logger"
)

// Keyspace is the keyspace holding the users and data tables.
const Keyspace = "equicloud"

// requestTimeout bounds individual statements. Abandoned requests still
// complete against the store; no cancellation beyond this deadline.
const requestTimeout = 30 * time.Second

// Config holds the ScyllaDB connection settings.
type Config struct {
	// URI is one or more comma-separated contact points (host:port).
	URI string `mapstructure:"uri" validate:"required"`

	// Username and Password enable password authentication when both set.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// PoolSize is the number of connections per host.
	PoolSize int `mapstructure:"pool_size" validate:"omitempty,min=1"`

	// ConnectTimeout bounds the initial dial of each connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// newSession dials the cluster and returns a ready session bound to the
// equicloud keyspace.
func newSession(cfg Config) (*gocql.Session, error) {
	hosts := strings.Split(cfg.URI, ",")
	for i := range hosts {
		hosts[i] = strings.TrimSpace(hosts[i])
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = Keyspace
	cluster.Timeout = requestTimeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.NumConns = cfg.PoolSize
	cluster.Consistency = gocql.Quorum
	cluster.Compressor = &gocql.SnappyCompressor{}
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 3}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	logger.Info("Connecting to ScyllaDB",
		"hosts", cfg.URI,
		"keyspace", Keyspace,
		"pool_size", cfg.PoolSize,
		"connect_timeout", cfg.ConnectTimeout,
	)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	return session, nil
}
