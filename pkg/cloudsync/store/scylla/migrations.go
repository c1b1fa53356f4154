package scylla

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocql/gocql"

	"github.com/equicloud/equicloud/internal/logger"
)

// RunMigrations executes every .cql file in dir against the cluster, in
// lexical order. Statements are idempotent (CREATE ... IF NOT EXISTS) so
// the runner is safe to execute on every startup.
//
// The session is created without a bound keyspace because the first
// migration creates it.
func RunMigrations(cfg Config, dir string) error {
	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("No migration files found, skipping migrations", "dir", dir)
		return nil
	}

	session, err := newBareSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	for _, file := range files {
		if err := runMigrationFile(session, file); err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(file), err)
		}
	}

	logger.Info("Executed migrations", "count", len(files))
	return nil
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("No migrations directory found, skipping migrations", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".cql" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func runMigrationFile(session *gocql.Session, path string) error {
	logger.Debug("Running migration", "file", filepath.Base(path))

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, stmt := range splitStatements(string(content)) {
		logger.Debug("Executing statement", "cql", stmt)
		if err := session.Query(stmt).Exec(); err != nil {
			return err
		}
	}
	return nil
}

// splitStatements strips comment lines and splits the remainder on
// semicolons.
func splitStatements(content string) []string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, trimmed)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(kept, " "), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// newBareSession dials the cluster without binding a keyspace.
func newBareSession(cfg Config) (*gocql.Session, error) {
	hosts := strings.Split(cfg.URI, ",")
	for i := range hosts {
		hosts[i] = strings.TrimSpace(hosts[i])
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Timeout = requestTimeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Consistency = gocql.Quorum

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create migration session: %w", err)
	}
	return session, nil
}
