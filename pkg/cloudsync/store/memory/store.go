// Package memory provides an in-memory store.Store used by unit tests.
//
// Rows live in maps guarded by a RWMutex. The Fail* fields inject faults
// into individual operations so service and engine error paths can be
// exercised without a cluster.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/cloudsync/store"
)

type dataKey struct {
	userID string
	key    string
}

// MemoryStore implements store.Store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]cloudsync.UserSettings
	data     map[dataKey]cloudsync.DataEntry

	// Fault injection. When set, the corresponding operation returns the
	// error without touching state.
	FailManifest    error
	FailGetEntries  error
	FailGetVersions error
	FailPutEntries  error
	FailPing        error
}

var _ store.Store = (*MemoryStore)(nil)

// New returns an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]cloudsync.UserSettings),
		data:     make(map[dataKey]cloudsync.DataEntry),
	}
}

func (s *MemoryStore) GetSettings(ctx context.Context, id string) (*cloudsync.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.settings[id]
	if !ok {
		return nil, cloudsync.ErrNotFound
	}
	copied := row
	copied.Settings = append([]byte(nil), row.Settings...)
	return &copied, nil
}

func (s *MemoryStore) GetSettingsUpdatedAt(ctx context.Context, id string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.settings[id]
	if !ok {
		return 0, cloudsync.ErrNotFound
	}
	return row.UpdatedAt, nil
}

func (s *MemoryStore) PutSettings(ctx context.Context, row *cloudsync.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *row
	copied.Settings = append([]byte(nil), row.Settings...)
	s.settings[row.ID] = copied
	return nil
}

func (s *MemoryStore) DeleteSettings(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, id)
	return nil
}

func (s *MemoryStore) GetManifest(ctx context.Context, userID string) ([]cloudsync.ManifestEntry, error) {
	if s.FailManifest != nil {
		return nil, s.FailManifest
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := []cloudsync.ManifestEntry{}
	for k, e := range s.data {
		if k.userID != userID {
			continue
		}
		entries = append(entries, cloudsync.ManifestEntry{
			Key:       e.Key,
			Version:   e.Version,
			Checksum:  e.Checksum,
			SizeBytes: e.SizeBytes,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return entries, nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, userID, key string) (*cloudsync.DataEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[dataKey{userID, key}]
	if !ok {
		return nil, cloudsync.ErrNotFound
	}
	copied := entry
	copied.Value = append([]byte(nil), entry.Value...)
	return &copied, nil
}

func (s *MemoryStore) GetEntries(ctx context.Context, userID string, keys []string) ([]cloudsync.DataEntry, error) {
	if s.FailGetEntries != nil {
		return nil, s.FailGetEntries
	}
	entries := make([]cloudsync.DataEntry, 0, len(keys))
	for _, key := range keys {
		entry, err := s.GetEntry(ctx, userID, key)
		if err != nil {
			continue // missing keys are omitted
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (s *MemoryStore) PutEntry(ctx context.Context, entry *cloudsync.DataEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	copied.Value = append([]byte(nil), entry.Value...)
	s.data[dataKey{entry.UserID, entry.Key}] = copied
	return nil
}

func (s *MemoryStore) PutEntries(ctx context.Context, entries []*cloudsync.DataEntry) error {
	if s.FailPutEntries != nil {
		return s.FailPutEntries
	}
	for _, entry := range entries {
		if err := s.PutEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) DeleteEntry(ctx context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, dataKey{userID, key})
	return nil
}

func (s *MemoryStore) DeleteAllEntries(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if k.userID == userID {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *MemoryStore) SumSize(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for k, e := range s.data {
		if k.userID == userID {
			total += int64(e.SizeBytes)
		}
	}
	return total, nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, userID, key string) (*cloudsync.VersionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[dataKey{userID, key}]
	if !ok {
		return nil, cloudsync.ErrNotFound
	}
	return &cloudsync.VersionInfo{
		Version:   entry.Version,
		CreatedAt: entry.CreatedAt,
		SizeBytes: entry.SizeBytes,
	}, nil
}

func (s *MemoryStore) GetVersions(ctx context.Context, userID string, keys []string) (map[string]cloudsync.VersionInfo, error) {
	if s.FailGetVersions != nil {
		return nil, s.FailGetVersions
	}
	versions := make(map[string]cloudsync.VersionInfo, len(keys))
	for _, key := range keys {
		info, err := s.GetVersion(ctx, userID, key)
		if err != nil {
			continue
		}
		versions[key] = *info
	}
	return versions, nil
}

func (s *MemoryStore) CountUsers(ctx context.Context, now time.Time) (store.UserCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nowMS := now.UnixMilli()
	var counts store.UserCounts
	for _, row := range s.settings {
		counts.Total++
		age := nowMS - row.CreatedAt
		if age < 24*time.Hour.Milliseconds() {
			counts.Day++
		}
		if age < 7*24*time.Hour.Milliseconds() {
			counts.Week++
		}
		if age < 30*24*time.Hour.Milliseconds() {
			counts.Month++
		}
	}
	return counts, nil
}

func (s *MemoryStore) ScanSettingsIDs(ctx context.Context, fn func(id string) bool) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.settings))
	for id := range s.settings {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if !fn(id) {
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.FailPing
}

func (s *MemoryStore) Close() {}
