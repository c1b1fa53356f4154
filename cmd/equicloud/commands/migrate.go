package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync/store/scylla"
	"github.com/equicloud/equicloud/pkg/config"
)

var migrateDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply pending CQL migrations to the configured ScyllaDB cluster.

This creates the keyspace and tables on first run and is idempotent, so
it is safe to run on every deploy.

Examples:
  # Run migrations with environment configuration
  equicloud migrate

  # Run migrations from a custom directory
  equicloud migrate --migrations /srv/equicloud/migrations`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "migrations", "migrations", "Directory containing CQL migration files")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "uri", cfg.Scylla.URI, "dir", migrateDir)

	if err := scylla.RunMigrations(cfg.Scylla, migrateDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Verify the schema by connecting and pinging
	st, err := scylla.New(cfg.Scylla)
	if err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}
	defer st.Close()

	if err := st.Ping(context.Background()); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Println("Migrations completed successfully")
	return nil
}
