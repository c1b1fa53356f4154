// Package settings implements the single-blob-per-user surface with
// transparent legacy-to-current storage key migration.
//
// Reads look up the current key first and fall back to the legacy CRC32
// key; a hit on the legacy key is migrated in place (copy under the
// current key preserving created_at, then delete the legacy row).
// Migration failures never fail the read. Writes always target the
// current key and opportunistically delete the legacy row.
package settings

import (
	"context"
	"errors"
	"time"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/cloudsync/store"
	"github.com/equicloud/equicloud/pkg/hashing"
)

// Service is the settings surface for one backing store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// New creates a settings service.
func New(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// HeadMetadata returns the updated_at timestamp of the user's settings
// blob, or cloudsync.ErrNotFound. A hit under the legacy key is reported
// but not migrated: there is no value in hand to copy, so migration waits
// for the next full read or write.
func (s *Service) HeadMetadata(ctx context.Context, userID string) (int64, error) {
	currentKey := hashing.StorageKey(userID)

	updatedAt, err := s.store.GetSettingsUpdatedAt(ctx, currentKey)
	if err == nil {
		return updatedAt, nil
	}
	if !errors.Is(err, cloudsync.ErrNotFound) {
		return 0, err
	}

	legacyKey := hashing.LegacyKeyIfDifferent(userID, currentKey)
	if legacyKey == "" {
		return 0, cloudsync.ErrNotFound
	}

	updatedAt, err = s.store.GetSettingsUpdatedAt(ctx, legacyKey)
	if err != nil {
		return 0, err
	}
	logger.Warn("Found legacy settings row for user, will migrate on next read or write",
		"user_key", currentKey)
	return updatedAt, nil
}

// Get returns the user's settings bytes and updated_at timestamp, or
// cloudsync.ErrNotFound. A hit under the legacy key triggers migration;
// if migration fails the legacy value is still returned.
func (s *Service) Get(ctx context.Context, userID string) ([]byte, int64, error) {
	currentKey := hashing.StorageKey(userID)

	row, err := s.store.GetSettings(ctx, currentKey)
	if err == nil {
		return row.Settings, row.UpdatedAt, nil
	}
	if !errors.Is(err, cloudsync.ErrNotFound) {
		return nil, 0, err
	}

	legacyKey := hashing.LegacyKeyIfDifferent(userID, currentKey)
	if legacyKey == "" {
		return nil, 0, cloudsync.ErrNotFound
	}

	legacyRow, err := s.store.GetSettings(ctx, legacyKey)
	if err != nil {
		return nil, 0, err
	}

	logger.Info("Found legacy settings row, migrating to current hash scheme",
		"user_key", currentKey, "legacy_key", legacyKey)
	if err := s.migrate(ctx, legacyKey, currentKey, legacyRow); err != nil {
		logger.Warn("Failed to migrate legacy settings row", "error", err,
			"user_key", currentKey, "legacy_key", legacyKey)
	}

	return legacyRow.Settings, legacyRow.UpdatedAt, nil
}

// Put stores the user's settings blob under the current key and returns
// the write timestamp. The legacy row, if distinct, is cleaned up best
// effort.
func (s *Service) Put(ctx context.Context, userID string, value []byte) (int64, error) {
	currentKey := hashing.StorageKey(userID)
	now := s.now().UnixMilli()

	err := s.store.PutSettings(ctx, &cloudsync.UserSettings{
		ID:        currentKey,
		Settings:  value,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return 0, err
	}

	s.cleanupLegacy(ctx, userID, currentKey)
	return now, nil
}

// Delete removes the user's settings blob and cleans up the legacy row.
func (s *Service) Delete(ctx context.Context, userID string) error {
	currentKey := hashing.StorageKey(userID)
	if err := s.store.DeleteSettings(ctx, currentKey); err != nil {
		return err
	}
	s.cleanupLegacy(ctx, userID, currentKey)
	return nil
}

// migrate copies a legacy row under the current key, preserving
// created_at and updated_at, then deletes the legacy row. Both statements
// are idempotent upserts/deletes by primary key, so a racing writer
// converges on its own cleanup.
func (s *Service) migrate(ctx context.Context, legacyKey, currentKey string, row *cloudsync.UserSettings) error {
	err := s.store.PutSettings(ctx, &cloudsync.UserSettings{
		ID:        currentKey,
		Settings:  row.Settings,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if err := s.store.DeleteSettings(ctx, legacyKey); err != nil {
		return err
	}
	logger.Info("Migrated legacy settings row", "user_key", currentKey)
	return nil
}

// cleanupLegacy deletes the legacy row after a successful write. Errors
// are swallowed: the current-scheme row is authoritative and the next
// write retries.
func (s *Service) cleanupLegacy(ctx context.Context, userID, currentKey string) {
	legacyKey := hashing.LegacyKeyIfDifferent(userID, currentKey)
	if legacyKey == "" {
		return
	}
	if err := s.store.DeleteSettings(ctx, legacyKey); err != nil {
		logger.Warn("Failed to clean up legacy settings row", "error", err,
			"legacy_key", legacyKey)
	}
}
