// Package store defines the persistence interface for the cloud-sync
// backend and its error contract. Implementations live in subpackages:
// scylla (production, wide-column CQL) and memory (tests).
package store

import (
	"context"
	"time"

	"github.com/equicloud/equicloud/pkg/cloudsync"
)

// UserCounts aggregates account activity for the metrics endpoint.
// Windowed counts bucket users by created_at recency.
type UserCounts struct {
	Total int64
	Day   int64
	Week  int64
	Month int64
}

// Store is the typed CRUD surface over the two tables (users, data).
//
// Every statement is an idempotent upsert or delete by primary key; the
// services above compose them into logically atomic units through the
// per-key version discipline. Multi-row variants (GetEntries, PutEntries,
// GetVersions) fan out concurrently rather than using server-side
// batches.
type Store interface {
	// Settings rows (users table), keyed by derived storage key.

	// GetSettings returns the settings row for a storage key, or
	// cloudsync.ErrNotFound.
	GetSettings(ctx context.Context, id string) (*cloudsync.UserSettings, error)

	// GetSettingsUpdatedAt returns only the updated_at column, or
	// cloudsync.ErrNotFound.
	GetSettingsUpdatedAt(ctx context.Context, id string) (int64, error)

	// PutSettings upserts a settings row.
	PutSettings(ctx context.Context, row *cloudsync.UserSettings) error

	// DeleteSettings removes a settings row. Deleting an absent row is
	// not an error.
	DeleteSettings(ctx context.Context, id string) error

	// Data rows (data table), keyed by (derived user key, key name).

	// GetManifest returns every data row for a user minus the value
	// column. A user with no rows yields an empty slice.
	GetManifest(ctx context.Context, userID string) ([]cloudsync.ManifestEntry, error)

	// GetEntry returns one data row, or cloudsync.ErrNotFound.
	GetEntry(ctx context.Context, userID, key string) (*cloudsync.DataEntry, error)

	// GetEntries fetches many rows concurrently. Missing keys are
	// omitted; result order is unspecified.
	GetEntries(ctx context.Context, userID string, keys []string) ([]cloudsync.DataEntry, error)

	// PutEntry upserts one data row as given.
	PutEntry(ctx context.Context, entry *cloudsync.DataEntry) error

	// PutEntries upserts many rows concurrently.
	PutEntries(ctx context.Context, entries []*cloudsync.DataEntry) error

	// DeleteEntry removes one data row.
	DeleteEntry(ctx context.Context, userID, key string) error

	// DeleteAllEntries removes every data row for a user.
	DeleteAllEntries(ctx context.Context, userID string) error

	// SumSize returns the total uncompressed bytes stored by a user.
	SumSize(ctx context.Context, userID string) (int64, error)

	// GetVersion returns the version allocator's view of one key, or
	// cloudsync.ErrNotFound when the key has never been written.
	GetVersion(ctx context.Context, userID, key string) (*cloudsync.VersionInfo, error)

	// GetVersions fetches version info for many keys concurrently.
	// Never-written keys are absent from the result map.
	GetVersions(ctx context.Context, userID string, keys []string) (map[string]cloudsync.VersionInfo, error)

	// Operational surface.

	// CountUsers returns aggregate user counts for the metrics endpoint.
	CountUsers(ctx context.Context, now time.Time) (UserCounts, error)

	// ScanSettingsIDs streams every storage key in the users table to fn,
	// stopping early if fn returns false. Used by the legacy cleanup
	// tool.
	ScanSettingsIDs(ctx context.Context, fn func(id string) bool) error

	// Ping executes a trivial liveness statement against the store.
	Ping(ctx context.Context) error

	// Close releases the underlying session.
	Close()
}
