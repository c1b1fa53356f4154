package handlers

import (
	"net/http"
	"time"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync/store"
)

// Version is the service version reported by the root index.
const Version = "2.0.0"

// endpointIndex lists the public endpoints advertised by GET /.
var endpointIndex = []string{
	"/health",
	"/v1/oauth/callback",
	"/v1/oauth/settings",
	"/v1/settings",
	"/v2/manifest",
	"/v2/data/{key}",
	"/v2/sync",
}

// SystemHandler serves the unauthenticated operational endpoints:
// liveness, the root index, and the aggregate metrics document.
type SystemHandler struct {
	store          store.Store
	metricsEnabled bool
	redirectURL    string
	startTime      time.Time
}

func NewSystemHandler(st store.Store, metricsEnabled bool, redirectURL string) *SystemHandler {
	return &SystemHandler{
		store:          st,
		metricsEnabled: metricsEnabled,
		redirectURL:    redirectURL,
		startTime:      time.Now(),
	}
}

// Health is the liveness probe.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Root returns the version and endpoint index, or a permanent redirect
// when one is configured.
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	if h.redirectURL != "" {
		logger.Debug("Redirecting root request", "url", h.redirectURL)
		http.Redirect(w, r, h.redirectURL, http.StatusMovedPermanently)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "EquiCloud",
		"version":   Version,
		"endpoints": endpointIndex,
	})
}

// Metrics returns the aggregate user counts and process uptime. It is
// 404 unless explicitly enabled.
func (h *SystemHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if !h.metricsEnabled {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	now := time.Now()
	counts, err := h.store.CountUsers(r.Context(), now)
	if err != nil {
		// Metrics degrade to zeros rather than failing the scrape.
		logger.Warn("Failed to count users for metrics", "error", err)
		counts = store.UserCounts{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds":     int64(now.Sub(h.startTime).Seconds()),
		"users_total":        counts.Total,
		"users_day":          counts.Day,
		"users_week":         counts.Week,
		"users_month":        counts.Month,
		"database_connected": err == nil,
		"timestamp":          now.Unix(),
	})
}
