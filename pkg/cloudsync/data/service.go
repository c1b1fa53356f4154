// Package data implements the multi-key per-user surface: per-key
// version allocation, quota enforcement, and the batch variants used by
// the delta-sync engine.
//
// Version allocation is read-then-write: the current row's version and
// created_at are read, the upsert carries version+1 and the preserved
// created_at. There is no compare-and-set; two concurrent writers to the
// same key race and the last upsert wins. Clients serialise their own
// per-key writes.
package data

import (
	"context"
	"errors"
	"time"

	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/cloudsync/store"
	"github.com/equicloud/equicloud/pkg/codec"
	"github.com/equicloud/equicloud/pkg/hashing"
)

// Upload is one value to write in a batch.
type Upload struct {
	Key      string
	Value    []byte
	Checksum string
}

// PutResult reports the allocated version and write timestamp of one
// upserted key.
type PutResult struct {
	Key       string
	Version   int64
	UpdatedAt int64
}

// Service is the data surface for one backing store.
type Service struct {
	store         store.Store
	codec         *codec.Codec
	maxValueBytes int
	now           func() time.Time
}

// New creates a data service. maxValueBytes is the per-value cap applied
// when filtering batch writes.
func New(st store.Store, c *codec.Codec, maxValueBytes int) *Service {
	return &Service{store: st, codec: c, maxValueBytes: maxValueBytes, now: time.Now}
}

// Manifest returns every entry for the user without values.
func (s *Service) Manifest(ctx context.Context, userID string) ([]cloudsync.ManifestEntry, error) {
	return s.store.GetManifest(ctx, hashing.StorageKey(userID))
}

// Get returns one entry with its value decompressed, or
// cloudsync.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, key string) (*cloudsync.DataEntry, error) {
	entry, err := s.store.GetEntry(ctx, hashing.StorageKey(userID), key)
	if err != nil {
		return nil, err
	}
	entry.Value = s.codec.Decompress(entry.Value)
	return entry, nil
}

// GetMany fetches many entries concurrently, decompressed. Missing keys
// are silently omitted.
func (s *Service) GetMany(ctx context.Context, userID string, keys []string) ([]cloudsync.DataEntry, error) {
	entries, err := s.store.GetEntries(ctx, hashing.StorageKey(userID), keys)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Value = s.codec.Decompress(entries[i].Value)
	}
	return entries, nil
}

// Put upserts one value with the next version for its key. The checksum
// is stored verbatim; callers compute it over the uncompressed value.
func (s *Service) Put(ctx context.Context, userID, key string, value []byte, checksum string) (int64, int64, error) {
	userKey := hashing.StorageKey(userID)

	existing, err := s.store.GetVersion(ctx, userKey, key)
	if err != nil && !errors.Is(err, cloudsync.ErrNotFound) {
		return 0, 0, err
	}

	return s.upsert(ctx, userKey, key, value, checksum, existing)
}

// PutWithQuota is Put with per-user quota enforcement: the write is
// rejected with cloudsync.ErrQuotaExceeded when the user's total stored
// bytes, after replacing any existing value under this key, would exceed
// maxTotalBytes. Total and existing size are fetched concurrently.
func (s *Service) PutWithQuota(ctx context.Context, userID, key string, value []byte, checksum string, maxTotalBytes int64) (int64, int64, error) {
	userKey := hashing.StorageKey(userID)

	var (
		total    int64
		totalErr error
		existing *cloudsync.VersionInfo
		verErr   error
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		total, totalErr = s.store.SumSize(ctx, userKey)
	}()
	existing, verErr = s.store.GetVersion(ctx, userKey, key)
	<-done

	if totalErr != nil {
		return 0, 0, totalErr
	}
	if verErr != nil && !errors.Is(verErr, cloudsync.ErrNotFound) {
		return 0, 0, verErr
	}

	var existingSize int64
	if existing != nil {
		existingSize = int64(existing.SizeBytes)
	}
	if total-existingSize+int64(len(value)) > maxTotalBytes {
		return 0, 0, cloudsync.ErrQuotaExceeded
	}

	return s.upsert(ctx, userKey, key, value, checksum, existing)
}

// PutBatch upserts many values concurrently, allocating versions from
// the provided snapshot (absent key means first write, version 1).
// Values over the per-value cap are silently filtered before issue; the
// engine has already rejected them with a per-key error.
func (s *Service) PutBatch(ctx context.Context, userID string, uploads []Upload, existing map[string]cloudsync.VersionInfo) ([]PutResult, error) {
	userKey := hashing.StorageKey(userID)
	now := s.now().UnixMilli()

	entries := make([]*cloudsync.DataEntry, 0, len(uploads))
	results := make([]PutResult, 0, len(uploads))
	for _, u := range uploads {
		if len(u.Value) > s.maxValueBytes {
			continue
		}
		version := int64(1)
		createdAt := now
		if info, ok := existing[u.Key]; ok {
			version = info.Version + 1
			createdAt = info.CreatedAt
		}
		entries = append(entries, &cloudsync.DataEntry{
			UserID:    userKey,
			Key:       u.Key,
			Value:     s.codec.Compress(u.Value),
			Version:   version,
			Checksum:  u.Checksum,
			SizeBytes: int32(len(u.Value)),
			CreatedAt: createdAt,
			UpdatedAt: now,
		})
		results = append(results, PutResult{Key: u.Key, Version: version, UpdatedAt: now})
	}

	if len(entries) == 0 {
		return results, nil
	}
	if err := s.store.PutEntries(ctx, entries); err != nil {
		return nil, err
	}
	return results, nil
}

// VersionsBatch fetches version info for many keys concurrently.
// Never-written keys are absent from the result.
func (s *Service) VersionsBatch(ctx context.Context, userID string, keys []string) (map[string]cloudsync.VersionInfo, error) {
	return s.store.GetVersions(ctx, hashing.StorageKey(userID), keys)
}

// Delete removes one key.
func (s *Service) Delete(ctx context.Context, userID, key string) error {
	return s.store.DeleteEntry(ctx, hashing.StorageKey(userID), key)
}

// DeleteAll removes every key for the user.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.store.DeleteAllEntries(ctx, hashing.StorageKey(userID))
}

// upsert writes one row with version+1 over the given snapshot,
// preserving created_at across updates.
func (s *Service) upsert(ctx context.Context, userKey, key string, value []byte, checksum string, existing *cloudsync.VersionInfo) (int64, int64, error) {
	now := s.now().UnixMilli()
	version := int64(1)
	createdAt := now
	if existing != nil {
		version = existing.Version + 1
		createdAt = existing.CreatedAt
	}

	err := s.store.PutEntry(ctx, &cloudsync.DataEntry{
		UserID:    userKey,
		Key:       key,
		Value:     s.codec.Compress(value),
		Version:   version,
		Checksum:  checksum,
		SizeBytes: int32(len(value)),
		CreatedAt: createdAt,
		UpdatedAt: now,
	})
	if err != nil {
		return 0, 0, err
	}
	return version, now, nil
}
