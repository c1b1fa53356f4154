// Package handlers implements the HTTP handlers for the public API:
// the single-blob settings surface, the multi-key data surface, the
// delta-sync endpoint, OAuth, and the operational endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/equicloud/equicloud/internal/logger"
)

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError writes the standard {"error": message} body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
