package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/equicloud/equicloud/internal/api/middleware"
	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/cloudsync/data"
	"github.com/equicloud/equicloud/pkg/codec"
)

// DataLimits carries the size caps and subnamespace gating the data
// surface enforces.
type DataLimits struct {
	// MaxValueBytes caps a single value outside dataStore/.
	MaxValueBytes int

	// MaxDatastoreValueBytes caps a single value under dataStore/.
	MaxDatastoreValueBytes int

	// MaxTotalBytes caps the user's total stored bytes.
	MaxTotalBytes int64

	// DatastoreEnabled admits keys under the dataStore/ subnamespace.
	DatastoreEnabled bool
}

// maxFor returns the per-value cap applicable to a key.
func (l DataLimits) maxFor(key string) int {
	if cloudsync.IsDatastoreKey(key) {
		return l.MaxDatastoreValueBytes
	}
	return l.MaxValueBytes
}

// DataHandler serves the per-key data surface and the manifest. The
// ETag for a data key is its checksum; the version travels in
// X-Version.
type DataHandler struct {
	data   *data.Service
	limits DataLimits
}

func NewDataHandler(svc *data.Service, limits DataLimits) *DataHandler {
	return &DataHandler{data: svc, limits: limits}
}

// admitKey runs key validation and subnamespace gating shared by every
// per-key route.
func (h *DataHandler) admitKey(key string) error {
	if err := cloudsync.ValidateKey(key); err != nil {
		return err
	}
	if !h.limits.DatastoreEnabled && cloudsync.IsDatastoreKey(key) {
		return cloudsync.ErrDatastoreDisabled
	}
	return nil
}

// writeAdmissionError maps admission failures onto the wire contract.
func (h *DataHandler) writeAdmissionError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, cloudsync.ErrDatastoreDisabled):
		writeError(w, http.StatusForbidden, "DataStore sync is disabled")
	case errors.Is(err, cloudsync.ErrValueTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Value exceeds %dMB limit", h.limits.maxFor(key)/1024/1024))
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// Manifest returns every entry for the user without values, plus the
// total stored size. dataStore/ entries are hidden while the
// subnamespace is disabled.
func (h *DataHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	entries, err := h.data.Manifest(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to get manifest", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get manifest")
		return
	}

	if !h.limits.DatastoreEnabled {
		visible := entries[:0]
		for _, e := range entries {
			if !cloudsync.IsDatastoreKey(e.Key) {
				visible = append(visible, e)
			}
		}
		entries = visible
	}

	var totalSize int64
	for _, e := range entries {
		totalSize += int64(e.SizeBytes)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":    entries,
		"total_size": totalSize,
	})
}

// Get returns one value, honoring If-None-Match against the checksum.
func (h *DataHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	key := chi.URLParam(r, "*")
	if err := h.admitKey(key); err != nil {
		h.writeAdmissionError(w, key, err)
		return
	}

	entry, err := h.data.Get(r.Context(), userID, key)
	if errors.Is(err, cloudsync.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to get data key", "key", key, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if etagMatches(r.Header.Get("If-None-Match"), entry.Checksum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", entry.Checksum)
	w.Header().Set("X-Version", strconv.FormatInt(entry.Version, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.Value)
}

// Put upserts one value with quota enforcement. The server computes the
// checksum over the raw body.
func (h *DataHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	key := chi.URLParam(r, "*")
	if err := h.admitKey(key); err != nil {
		h.writeAdmissionError(w, key, err)
		return
	}

	if r.Header.Get("Content-Type") != "application/octet-stream" {
		writeError(w, http.StatusUnsupportedMediaType, "Content type must be application/octet-stream")
		return
	}

	maxSize := h.limits.maxFor(key)
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(maxSize)+1))
	if err != nil {
		logger.Error("Failed to read data body", "key", key, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if len(body) > maxSize {
		h.writeAdmissionError(w, key, cloudsync.ErrValueTooLarge)
		return
	}

	checksum := codec.Checksum(body)

	version, updatedAt, err := h.data.PutWithQuota(r.Context(), userID, key, body, checksum, h.limits.MaxTotalBytes)
	if errors.Is(err, cloudsync.ErrQuotaExceeded) {
		writeError(w, http.StatusRequestEntityTooLarge, "Total storage limit exceeded")
		return
	}
	if err != nil {
		logger.Error("Failed to save data key", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":    version,
		"checksum":   checksum,
		"updated_at": updatedAt,
	})
}

// Delete removes one key.
func (h *DataHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	key := chi.URLParam(r, "*")
	if err := h.admitKey(key); err != nil {
		h.writeAdmissionError(w, key, err)
		return
	}

	if err := h.data.Delete(r.Context(), userID, key); err != nil {
		logger.Error("Failed to delete data key", "key", key, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
