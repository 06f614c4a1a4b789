// internal/handlers/relay_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/bridgeduel/internal/middleware"
	"github.com/jason-s-yu/bridgeduel/internal/relay"
	"github.com/sirupsen/logrus"
)

// RelayServer holds the room store and serves the relay endpoints.
type RelayServer struct {
	Store  *relay.Store
	Logger *logrus.Logger
}

// NewRelayServer returns a server with an empty room store.
func NewRelayServer(logger *logrus.Logger) *RelayServer {
	return &RelayServer{
		Store:  relay.NewStore(logrus.NewEntry(logger)),
		Logger: logger,
	}
}

// Handler routes /ws, /health and / (health alias).
func (rs *RelayServer) Handler() http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(rs.Logger)

	mux.Handle("/ws", logged(RelayWSHandler(rs.Logger, rs.Store)))
	mux.Handle("/health", logged(HealthHandler(rs.Store)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		HealthHandler(rs.Store)(w, r)
	})
	return mux
}
