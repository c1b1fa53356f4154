// Package deltasync reconciles a client-declared manifest against the
// server's authoritative state in one round-trip: it computes which
// entries the client must download, admits and persists the client's
// uploads, and projects the post-sync manifest without re-reading.
package deltasync

import (
	"context"
	"fmt"
	"time"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/cloudsync/data"
	"github.com/equicloud/equicloud/pkg/codec"
)

// ClientEntry is one row of the manifest the client declares.
type ClientEntry struct {
	Key      string `json:"key"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
}

// Upload is one value the client offers. Value is raw bytes; the JSON
// wire form is base64.
type Upload struct {
	Key      string `json:"key"`
	Value    []byte `json:"value"`
	Checksum string `json:"checksum"`
}

// Download is one entry the client is missing or holds stale.
type Download struct {
	Key      string `json:"key"`
	Value    []byte `json:"value"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
}

// Uploaded reports one accepted upload and its allocated version.
type Uploaded struct {
	Key      string `json:"key"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
}

// Failure is one per-key rejection. The sync as a whole still succeeds.
type Failure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Request is the sync input.
type Request struct {
	ClientManifest []ClientEntry `json:"client_manifest"`
	Uploads        []Upload      `json:"uploads"`
}

// Response is the sync output. ServerManifest reflects the server's
// post-sync view including the uploads just accepted.
type Response struct {
	ServerManifest []cloudsync.ManifestEntry `json:"server_manifest"`
	Downloads      []Download                `json:"downloads"`
	Uploaded       []Uploaded                `json:"uploaded"`
	Errors         []Failure                 `json:"errors"`
}

// Engine runs the reconciliation against one data service.
type Engine struct {
	data          *data.Service
	maxValueBytes int
	maxTotalBytes int64
	now           func() time.Time
}

// New creates an engine. maxValueBytes caps individual upload values;
// maxTotalBytes caps the user's total stored bytes.
func New(svc *data.Service, maxValueBytes int, maxTotalBytes int64) *Engine {
	return &Engine{
		data:          svc,
		maxValueBytes: maxValueBytes,
		maxTotalBytes: maxTotalBytes,
		now:           time.Now,
	}
}

// Sync reconciles one request. It returns an error only when the server
// manifest cannot be loaded; every later failure is reported per key in
// Response.Errors.
func (e *Engine) Sync(ctx context.Context, userID string, req *Request) (*Response, error) {
	serverManifest, err := e.data.Manifest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	resp := &Response{
		Downloads: []Download{},
		Uploaded:  []Uploaded{},
		Errors:    []Failure{},
	}

	serverByKey := make(map[string]*cloudsync.ManifestEntry, len(serverManifest))
	for i := range serverManifest {
		serverByKey[serverManifest[i].Key] = &serverManifest[i]
	}
	clientByKey := make(map[string]*ClientEntry, len(req.ClientManifest))
	for i := range req.ClientManifest {
		clientByKey[req.ClientManifest[i].Key] = &req.ClientManifest[i]
	}

	e.collectDownloads(ctx, userID, serverManifest, clientByKey, resp)

	valid := e.admitUploads(req.Uploads, serverByKey, clientByKey, resp)

	applied := e.persistUploads(ctx, userID, valid, resp)

	resp.ServerManifest = projectManifest(serverManifest, applied, e.now().UnixMilli())
	return resp, nil
}

// collectDownloads selects every server entry the client does not hold
// at an equal-or-newer version with a matching checksum, and fetches the
// values. A fetch failure degrades to per-key errors.
func (e *Engine) collectDownloads(ctx context.Context, userID string, serverManifest []cloudsync.ManifestEntry, clientByKey map[string]*ClientEntry, resp *Response) {
	var keys []string
	for _, s := range serverManifest {
		c, ok := clientByKey[s.Key]
		if ok && c.Version >= s.Version && c.Checksum == s.Checksum {
			continue
		}
		keys = append(keys, s.Key)
	}
	if len(keys) == 0 {
		return
	}

	entries, err := e.data.GetMany(ctx, userID, keys)
	if err != nil {
		logger.Error("Failed to fetch sync downloads", "user", userID, "keys", len(keys), "error", err)
		for _, key := range keys {
			resp.Errors = append(resp.Errors, Failure{Key: key, Error: "Failed to download"})
		}
		return
	}
	for _, entry := range entries {
		resp.Downloads = append(resp.Downloads, Download{
			Key:      entry.Key,
			Value:    entry.Value,
			Version:  entry.Version,
			Checksum: entry.Checksum,
		})
	}
}

// admitUploads filters the offered uploads through key validation, the
// per-value cap, checksum verification, the dominance filter, and a
// provisional quota over a running total seeded from the server
// manifest. Dominated uploads are dropped without an error record.
func (e *Engine) admitUploads(uploads []Upload, serverByKey map[string]*cloudsync.ManifestEntry, clientByKey map[string]*ClientEntry, resp *Response) []data.Upload {
	running := int64(0)
	for _, s := range serverByKey {
		running += int64(s.SizeBytes)
	}
	sizeLimitMsg := fmt.Sprintf("Value exceeds %dMB limit", e.maxValueBytes/1024/1024)

	valid := make([]data.Upload, 0, len(uploads))
	for _, u := range uploads {
		if err := cloudsync.ValidateKey(u.Key); err != nil {
			resp.Errors = append(resp.Errors, Failure{Key: u.Key, Error: err.Error()})
			continue
		}
		if len(u.Value) > e.maxValueBytes {
			resp.Errors = append(resp.Errors, Failure{Key: u.Key, Error: sizeLimitMsg})
			continue
		}
		if codec.Checksum(u.Value) != u.Checksum {
			resp.Errors = append(resp.Errors, Failure{Key: u.Key, Error: "Checksum mismatch"})
			continue
		}

		// The server dominates when it holds the key at a version the
		// client's declaration does not exceed. Echoing such an upload
		// would bump the version over a value the server considers
		// stale or equal, so it is dropped silently.
		if s, ok := serverByKey[u.Key]; ok {
			c, declared := clientByKey[u.Key]
			if !declared || c.Version <= s.Version {
				continue
			}
		}

		var existingSize int64
		if s, ok := serverByKey[u.Key]; ok {
			existingSize = int64(s.SizeBytes)
		}
		next := running - existingSize + int64(len(u.Value))
		if next > e.maxTotalBytes {
			resp.Errors = append(resp.Errors, Failure{Key: u.Key, Error: "Total storage limit exceeded"})
			continue
		}

		running = next
		valid = append(valid, data.Upload{Key: u.Key, Value: u.Value, Checksum: u.Checksum})
	}
	return valid
}

// persistUploads writes the admitted uploads with batch version
// allocation and returns the applied results keyed by name. Either
// batch step failing reports every pending upload as unsaved.
func (e *Engine) persistUploads(ctx context.Context, userID string, valid []data.Upload, resp *Response) map[string]appliedUpload {
	if len(valid) == 0 {
		return nil
	}

	keys := make([]string, len(valid))
	checksums := make(map[string]string, len(valid))
	sizes := make(map[string]int32, len(valid))
	for i, u := range valid {
		keys[i] = u.Key
		checksums[u.Key] = u.Checksum
		sizes[u.Key] = int32(len(u.Value))
	}

	failAll := func(stage string, err error) {
		logger.Error("Failed to persist sync uploads", "stage", stage, "user", userID, "keys", len(valid), "error", err)
		for _, u := range valid {
			resp.Errors = append(resp.Errors, Failure{Key: u.Key, Error: "Failed to save"})
		}
	}

	versions, err := e.data.VersionsBatch(ctx, userID, keys)
	if err != nil {
		failAll("versions", err)
		return nil
	}

	results, err := e.data.PutBatch(ctx, userID, valid, versions)
	if err != nil {
		failAll("put", err)
		return nil
	}

	applied := make(map[string]appliedUpload, len(results))
	for _, r := range results {
		applied[r.Key] = appliedUpload{
			version:   r.Version,
			checksum:  checksums[r.Key],
			sizeBytes: sizes[r.Key],
		}
		resp.Uploaded = append(resp.Uploaded, Uploaded{
			Key:      r.Key,
			Version:  r.Version,
			Checksum: checksums[r.Key],
		})
	}
	return applied
}

type appliedUpload struct {
	version   int64
	checksum  string
	sizeBytes int32
}

// projectManifest overlays the applied uploads onto the manifest read at
// the start of the sync. New keys are appended; the store is not
// re-read.
func projectManifest(serverManifest []cloudsync.ManifestEntry, applied map[string]appliedUpload, now int64) []cloudsync.ManifestEntry {
	if len(applied) == 0 {
		if serverManifest == nil {
			return []cloudsync.ManifestEntry{}
		}
		return serverManifest
	}

	remaining := make(map[string]appliedUpload, len(applied))
	for k, v := range applied {
		remaining[k] = v
	}

	manifest := make([]cloudsync.ManifestEntry, 0, len(serverManifest)+len(applied))
	for _, entry := range serverManifest {
		if a, ok := remaining[entry.Key]; ok {
			entry.Version = a.version
			entry.Checksum = a.checksum
			entry.SizeBytes = a.sizeBytes
			entry.UpdatedAt = now
			delete(remaining, entry.Key)
		}
		manifest = append(manifest, entry)
	}
	for key, a := range remaining {
		manifest = append(manifest, cloudsync.ManifestEntry{
			Key:       key,
			Version:   a.version,
			Checksum:  a.checksum,
			SizeBytes: a.sizeBytes,
			UpdatedAt: now,
		})
	}
	return manifest
}
