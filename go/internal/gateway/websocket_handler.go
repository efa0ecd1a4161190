package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for the session
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	store             *session.Store
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, store *session.Store) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		store:             store,
	}
}

// HandleSessionConnection upgrades /ws?role=&participant= and sends the
// current snapshot as the first frame
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	role := ParseRole(r.URL.Query().Get("role"))
	participant := r.URL.Query().Get("participant")

	err := h.connectionManager.UpgradeConnection(w, r, role, participant, func(conn *Connection) {
		// registration and the first snapshot happen under the store lock,
		// so the next broadcast is queued strictly after it
		h.store.Attach(func(snap session.Snapshot) {
			h.connectionManager.Register(conn)
			if err := h.connectionManager.SendSnapshot(conn, snap); err != nil {
				log.Warn().Err(err).Str("connection_id", conn.ID).Msg("failed to queue initial snapshot")
			}
		})
	})
	if err != nil {
		// the upgrader has already written an HTTP error
		log.Error().
			Err(err).
			Str("role", string(role)).
			Str("participant", participant).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
