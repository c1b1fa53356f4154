package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/equicloud/equicloud/internal/api/middleware"
	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync/deltasync"
)

// SyncHandler serves the delta-sync endpoint. Per-key failures travel
// in the response's errors array with a 200 status; only a manifest
// load failure fails the request as a whole.
type SyncHandler struct {
	engine *deltasync.Engine
}

func NewSyncHandler(engine *deltasync.Engine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req deltasync.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sync request")
		return
	}

	resp, err := h.engine.Sync(r.Context(), userID, &req)
	if err != nil {
		logger.Error("Failed to run delta sync", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
