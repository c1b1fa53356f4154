// Package scylla implements the cloud-sync store on ScyllaDB via gocql.
//
// All statements are fixed CQL strings prepared by the driver on first
// use and cached for the session lifetime. Multi-row reads and writes fan
// out as unordered concurrent single-row statements; each one is an
// idempotent upsert or delete by primary key, so the services above can
// retry safely and compose them without server-side batches.
package scylla

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/cloudsync/store"
)

const (
	stmtSelectSettings        = `SELECT settings, created_at, updated_at FROM users WHERE id = ?`
	stmtSelectSettingsUpdated = `SELECT updated_at FROM users WHERE id = ?`
	stmtInsertSettings        = `INSERT INTO users (id, settings, created_at, updated_at) VALUES (?, ?, ?, ?)`
	stmtDeleteSettings        = `DELETE FROM users WHERE id = ?`

	stmtSelectManifest = `SELECT key, version, checksum, size_bytes, updated_at FROM data WHERE user_id = ?`
	stmtSelectEntry    = `SELECT value, version, checksum, size_bytes, created_at, updated_at FROM data WHERE user_id = ? AND key = ?`
	stmtInsertEntry    = `INSERT INTO data (user_id, key, value, version, checksum, size_bytes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmtDeleteEntry    = `DELETE FROM data WHERE user_id = ? AND key = ?`
	stmtDeleteAll      = `DELETE FROM data WHERE user_id = ?`
	stmtSumSize        = `SELECT SUM(size_bytes) FROM data WHERE user_id = ?`
	stmtSelectVersion  = `SELECT version, created_at, size_bytes FROM data WHERE user_id = ? AND key = ?`

	stmtCountUsers      = `SELECT COUNT(*) FROM users`
	stmtCountUsersSince = `SELECT COUNT(*) FROM users WHERE created_at > ? ALLOW FILTERING`
	stmtScanIDs         = `SELECT id FROM users`
	stmtPing            = `SELECT now() FROM system.local`
)

// ScyllaStore implements store.Store on a gocql session. The session is
// internally thread-safe and shared by every request plus the health
// probe.
type ScyllaStore struct {
	session *gocql.Session
}

var _ store.Store = (*ScyllaStore)(nil)

// New connects to the cluster and returns a ready store.
func New(cfg Config) (*ScyllaStore, error) {
	session, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	return &ScyllaStore{session: session}, nil
}

// Close releases the underlying session.
func (s *ScyllaStore) Close() {
	s.session.Close()
}

func (s *ScyllaStore) GetSettings(ctx context.Context, id string) (*cloudsync.UserSettings, error) {
	row := cloudsync.UserSettings{ID: id}
	err := s.session.Query(stmtSelectSettings, id).WithContext(ctx).
		Scan(&row.Settings, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "select settings")
	}
	return &row, nil
}

func (s *ScyllaStore) GetSettingsUpdatedAt(ctx context.Context, id string) (int64, error) {
	var updatedAt int64
	err := s.session.Query(stmtSelectSettingsUpdated, id).WithContext(ctx).Scan(&updatedAt)
	if err != nil {
		return 0, mapErr(err, "select settings metadata")
	}
	return updatedAt, nil
}

func (s *ScyllaStore) PutSettings(ctx context.Context, row *cloudsync.UserSettings) error {
	err := s.session.Query(stmtInsertSettings, row.ID, row.Settings, row.CreatedAt, row.UpdatedAt).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}

func (s *ScyllaStore) DeleteSettings(ctx context.Context, id string) error {
	if err := s.session.Query(stmtDeleteSettings, id).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	return nil
}

func (s *ScyllaStore) GetManifest(ctx context.Context, userID string) ([]cloudsync.ManifestEntry, error) {
	iter := s.session.Query(stmtSelectManifest, userID).WithContext(ctx).Iter()

	entries := []cloudsync.ManifestEntry{}
	var e cloudsync.ManifestEntry
	for iter.Scan(&e.Key, &e.Version, &e.Checksum, &e.SizeBytes, &e.UpdatedAt) {
		entries = append(entries, e)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("select manifest: %w", err)
	}
	return entries, nil
}

func (s *ScyllaStore) GetEntry(ctx context.Context, userID, key string) (*cloudsync.DataEntry, error) {
	entry := cloudsync.DataEntry{UserID: userID, Key: key}
	err := s.session.Query(stmtSelectEntry, userID, key).WithContext(ctx).
		Scan(&entry.Value, &entry.Version, &entry.Checksum, &entry.SizeBytes,
			&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "select entry")
	}
	return &entry, nil
}

func (s *ScyllaStore) GetEntries(ctx context.Context, userID string, keys []string) ([]cloudsync.DataEntry, error) {
	results := make([]*cloudsync.DataEntry, len(keys))
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			entry, err := s.GetEntry(ctx, userID, key)
			if err != nil {
				if !errors.Is(err, cloudsync.ErrNotFound) {
					errs[i] = err
				}
				return
			}
			results[i] = entry
		}(i, key)
	}
	wg.Wait()

	entries := make([]cloudsync.DataEntry, 0, len(keys))
	for i := range keys {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if results[i] != nil {
			entries = append(entries, *results[i])
		}
	}
	return entries, nil
}

func (s *ScyllaStore) PutEntry(ctx context.Context, entry *cloudsync.DataEntry) error {
	err := s.session.Query(stmtInsertEntry,
		entry.UserID, entry.Key, entry.Value, entry.Version, entry.Checksum,
		entry.SizeBytes, entry.CreatedAt, entry.UpdatedAt).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *ScyllaStore) PutEntries(ctx context.Context, entries []*cloudsync.DataEntry) error {
	errs := make([]error, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry *cloudsync.DataEntry) {
			defer wg.Done()
			errs[i] = s.PutEntry(ctx, entry)
		}(i, entry)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (s *ScyllaStore) DeleteEntry(ctx context.Context, userID, key string) error {
	if err := s.session.Query(stmtDeleteEntry, userID, key).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (s *ScyllaStore) DeleteAllEntries(ctx context.Context, userID string) error {
	if err := s.session.Query(stmtDeleteAll, userID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete all entries: %w", err)
	}
	return nil
}

func (s *ScyllaStore) SumSize(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.session.Query(stmtSumSize, userID).WithContext(ctx).Scan(&total)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("sum size: %w", err)
	}
	return total, nil
}

func (s *ScyllaStore) GetVersion(ctx context.Context, userID, key string) (*cloudsync.VersionInfo, error) {
	var info cloudsync.VersionInfo
	err := s.session.Query(stmtSelectVersion, userID, key).WithContext(ctx).
		Scan(&info.Version, &info.CreatedAt, &info.SizeBytes)
	if err != nil {
		return nil, mapErr(err, "select version")
	}
	return &info, nil
}

func (s *ScyllaStore) GetVersions(ctx context.Context, userID string, keys []string) (map[string]cloudsync.VersionInfo, error) {
	type result struct {
		key  string
		info *cloudsync.VersionInfo
		err  error
	}
	results := make([]result, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			info, err := s.GetVersion(ctx, userID, key)
			if err != nil {
				if !errors.Is(err, cloudsync.ErrNotFound) {
					results[i] = result{err: err}
				}
				return
			}
			results[i] = result{key: key, info: info}
		}(i, key)
	}
	wg.Wait()

	versions := make(map[string]cloudsync.VersionInfo, len(keys))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.info != nil {
			versions[r.key] = *r.info
		}
	}
	return versions, nil
}

func (s *ScyllaStore) CountUsers(ctx context.Context, now time.Time) (store.UserCounts, error) {
	var counts store.UserCounts

	if err := s.session.Query(stmtCountUsers).WithContext(ctx).Scan(&counts.Total); err != nil {
		return counts, fmt.Errorf("count users: %w", err)
	}

	nowMS := now.UnixMilli()
	windows := []struct {
		since int64
		dest  *int64
	}{
		{nowMS - 24*time.Hour.Milliseconds(), &counts.Day},
		{nowMS - 7*24*time.Hour.Milliseconds(), &counts.Week},
		{nowMS - 30*24*time.Hour.Milliseconds(), &counts.Month},
	}
	for _, w := range windows {
		if err := s.session.Query(stmtCountUsersSince, w.since).WithContext(ctx).Scan(w.dest); err != nil {
			return counts, fmt.Errorf("count users since %d: %w", w.since, err)
		}
	}
	return counts, nil
}

func (s *ScyllaStore) ScanSettingsIDs(ctx context.Context, fn func(id string) bool) error {
	iter := s.session.Query(stmtScanIDs).WithContext(ctx).Iter()

	var id string
	for iter.Scan(&id) {
		if !fn(id) {
			break
		}
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("scan settings ids: %w", err)
	}
	return nil
}

func (s *ScyllaStore) Ping(ctx context.Context) error {
	// now() yields a timeuuid; the value is discarded, only liveness matters.
	var id gocql.UUID
	if err := s.session.Query(stmtPing).WithContext(ctx).Scan(&id); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// mapErr translates driver errors to the store's error contract.
func mapErr(err error, op string) error {
	if errors.Is(err, gocql.ErrNotFound) {
		return cloudsync.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
