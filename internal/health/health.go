// Package health serves a small liveness endpoint for process supervisors.
package health

import (
	"encoding/json"
	"net/http"

	"mintwatch/internal/logger"
	"mintwatch/internal/models"
)

// StatusSource provides the current health snapshot.
type StatusSource interface {
	Health() models.Health
}

// Handler returns an http.Handler serving GET /health.
func Handler(source StatusSource) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(source.Health()); err != nil {
			logger.Warn("Failed to write health response: %v", err)
		}
	})
	return mux
}
