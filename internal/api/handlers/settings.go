package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/equicloud/equicloud/internal/api/middleware"
	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/cloudsync/settings"
)

// SettingsHandler serves the single-blob settings surface. The blob is
// opaque to the server; the ETag is the row's updated_at timestamp in
// milliseconds.
type SettingsHandler struct {
	settings *settings.Service
	maxBytes int64
}

// NewSettingsHandler creates a settings handler. maxBytes caps the
// uploaded blob.
func NewSettingsHandler(svc *settings.Service, maxBytes int64) *SettingsHandler {
	return &SettingsHandler{settings: svc, maxBytes: maxBytes}
}

// Head returns only the ETag for the user's blob.
func (h *SettingsHandler) Head(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	updatedAt, err := h.settings.HeadMetadata(r.Context(), userID)
	if errors.Is(err, cloudsync.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to get settings metadata", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", strconv.FormatInt(updatedAt, 10))
	w.WriteHeader(http.StatusNoContent)
}

// Get returns the blob, honoring If-None-Match against the updated_at
// validator.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	value, updatedAt, err := h.settings.Get(r.Context(), userID)
	if errors.Is(err, cloudsync.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to get settings", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	etag := strconv.FormatInt(updatedAt, 10)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

// Put replaces the blob. The body must be application/octet-stream and
// within the backup size limit.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if r.Header.Get("Content-Type") != "application/octet-stream" {
		writeError(w, http.StatusUnsupportedMediaType, "Content type must be application/octet-stream")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBytes+1))
	if err != nil {
		logger.Error("Failed to read settings body", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if int64(len(body)) > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Settings are too large")
		return
	}

	written, err := h.settings.Put(r.Context(), userID, body)
	if err != nil {
		logger.Error("Failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"written": written})
}

// Delete removes the blob.
func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if err := h.settings.Delete(r.Context(), userID); err != nil {
		logger.Error("Failed to delete settings", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// etagMatches compares an If-None-Match header against the current
// validator, tolerating the quoted form some clients send.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	return strings.Trim(header, `"`) == etag
}
