package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync/store/scylla"
	"github.com/equicloud/equicloud/pkg/config"
	"github.com/equicloud/equicloud/pkg/hashing"
)

var deleteLegacy bool

var legacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Scan for legacy CRC32-keyed user rows",
	Long: `Scan the users table for rows still keyed with the legacy CRC32
hash format and report them.

Legacy rows are migrated automatically the next time the user reads or
writes their settings, so this command is informational by default. Rows
that will never be accessed again can be removed with --delete-legacy.

Examples:
  # Report legacy rows
  equicloud legacy

  # Remove legacy rows
  equicloud legacy --delete-legacy`,
	RunE: runLegacy,
}

func init() {
	legacyCmd.Flags().BoolVar(&deleteLegacy, "delete-legacy", false, "Delete legacy rows instead of only reporting them")
}

func runLegacy(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	if !deleteLegacy {
		logger.Info("Running in dry-run mode, no data will be deleted")
		logger.Info("Use --delete-legacy to actually delete legacy rows")
	}

	st, err := scylla.New(cfg.Scylla)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	var total int
	var legacy []string
	err = st.ScanSettingsIDs(ctx, func(id string) bool {
		total++
		if hashing.IsLegacyKey(id) {
			legacy = append(legacy, id)
			logger.Info("Found legacy row", "id", id)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan users table: %w", err)
	}

	var deleted int
	if deleteLegacy {
		for _, id := range legacy {
			if err := st.DeleteSettings(ctx, id); err != nil {
				logger.Error("Failed to delete legacy row", "id", id, "error", err)
				continue
			}
			deleted++
			logger.Info("Deleted legacy row", "id", id)
		}
	}

	logger.Info("Scan complete", "total", total, "legacy", len(legacy))

	switch {
	case deleteLegacy:
		fmt.Printf("Deleted %d of %d legacy rows (%d rows total)\n", deleted, len(legacy), total)
	case len(legacy) > 0:
		fmt.Printf("Found %d legacy rows out of %d total\n", len(legacy), total)
		fmt.Println("Legacy rows migrate automatically on next access.")
		fmt.Println("Run with --delete-legacy to remove them now.")
	default:
		fmt.Println("No legacy rows found - migration complete")
	}

	return nil
}
