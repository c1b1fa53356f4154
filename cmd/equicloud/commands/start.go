package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/api"
	"github.com/equicloud/equicloud/pkg/cloudsync/data"
	"github.com/equicloud/equicloud/pkg/cloudsync/deltasync"
	"github.com/equicloud/equicloud/pkg/cloudsync/settings"
	"github.com/equicloud/equicloud/pkg/cloudsync/store/scylla"
	"github.com/equicloud/equicloud/pkg/codec"
	"github.com/equicloud/equicloud/pkg/config"
	"github.com/equicloud/equicloud/pkg/health"
	"github.com/equicloud/equicloud/pkg/metrics"
	"github.com/equicloud/equicloud/pkg/oauth"
)

var (
	migrationsDir string
	skipMigrate   bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the EquiCloud server",
	Long: `Start the EquiCloud server with the specified configuration.

Configuration is read from environment variables, optionally layered on
top of a config file given with --config.

Examples:
  # Start with environment configuration
  SCYLLA_URI=db:9042 equicloud start

  # Start with a config file
  equicloud start --config /etc/equicloud/config.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "Directory containing CQL migration files")
	startCmd.Flags().BoolVar(&skipMigrate, "skip-migrations", false, "Skip running schema migrations at startup")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("EquiCloud - settings and data sync backend")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	if !skipMigrate {
		if err := scylla.RunMigrations(cfg.Scylla, migrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	st, err := scylla.New(cfg.Scylla)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer st.Close()
	logger.Info("Database connected", "uri", cfg.Scylla.URI)

	c, err := codec.New(cfg.Compression.Enabled, cfg.Compression.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize compression: %w", err)
	}
	if cfg.Compression.Enabled {
		logger.Info("Compression enabled", "level", cfg.Compression.Level)
	} else {
		logger.Info("Compression disabled")
	}

	settingsSvc := settings.New(st)
	dataSvc := data.New(st, c, cfg.Storage.MaxValueBytes)
	engine := deltasync.New(dataSvc, cfg.Storage.MaxValueBytes, cfg.Storage.MaxBackupBytes)

	oauthClient := oauth.New(oauth.Config{
		ClientID:       cfg.Discord.ClientID,
		ClientSecret:   cfg.Discord.ClientSecret,
		RedirectURI:    cfg.Server.RedirectURI(),
		AllowedUserIDs: cfg.Discord.AllowedUserIDs,
	})

	var httpMetrics *metrics.HTTPMetrics
	if cfg.Metrics.Enabled {
		httpMetrics = metrics.NewHTTPMetrics()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	server := api.NewServer(cfg, api.HTTPConfig{}, api.Deps{
		Store:    st,
		Settings: settingsSvc,
		Data:     dataSvc,
		Engine:   engine,
		OAuth:    oauthClient,
		Metrics:  httpMetrics,
	})

	// Background database liveness probe
	probe := health.NewProbe(st)
	go probe.Run(ctx)

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for server to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	return "environment"
}
