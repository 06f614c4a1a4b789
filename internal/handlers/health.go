// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jason-s-yu/bridgeduel/internal/relay"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Rooms     int    `json:"rooms"`
}

// HealthHandler reports liveness and the number of live rooms.
func HealthHandler(store *relay.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Rooms:     store.Count(),
		})
	}
}
