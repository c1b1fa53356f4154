package handlers

import (
	"net/http"
	"time"

	"github.com/equicloud/equicloud/internal/api/middleware"
	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync/data"
	"github.com/equicloud/equicloud/pkg/cloudsync/settings"
)

// AccountHandler serves the /v1 account root: service info on GET and
// the full account wipe on DELETE.
type AccountHandler struct {
	settings *settings.Service
	data     *data.Service
}

func NewAccountHandler(settingsSvc *settings.Service, dataSvc *data.Service) *AccountHandler {
	return &AccountHandler{settings: settingsSvc, data: dataSvc}
}

// Info returns a service identification banner.
func (h *AccountHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "equicloud",
	})
}

// Delete removes the user's settings blob and every data entry.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if err := h.settings.Delete(r.Context(), userID); err != nil {
		logger.Error("Failed to delete user settings", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := h.data.DeleteAll(r.Context(), userID); err != nil {
		logger.Error("Failed to delete user data", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
