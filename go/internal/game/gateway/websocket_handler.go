package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/room"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// snapshotEventType frames the full room document sent to a client right
// after it attaches, so it renders current state before the first event.
const snapshotEventType events.Type = "StateSnapshot"

// WebSocketHandler handles websocket upgrade requests for room
// connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	store             statestore.Store
}

// NewWebSocketHandler creates a websocket handler. store may be nil, in
// which case clients get no initial snapshot frame.
func NewWebSocketHandler(cm *ConnectionManager, store statestore.Store) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		store:             store,
	}
}

// HandleRoomConnection attaches a websocket to a room identified by its
// code.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeCode(r.URL.Query().Get("room"))
	if !room.ValidCode(code) {
		http.Error(w, "valid room code is required", http.StatusBadRequest)
		return
	}

	// In production this would come from an auth token; spectators may
	// attach without a player id.
	playerID := r.URL.Query().Get("player_id")

	conn, err := h.connectionManager.UpgradeConnection(w, r, playerID, code)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	h.sendSnapshot(r.Context(), conn, code)
}

// sendSnapshot queues the current room document on a fresh connection.
func (h *WebSocketHandler) sendSnapshot(ctx context.Context, conn *Connection, code string) {
	if h.store == nil {
		return
	}
	raw, err := h.store.Get(ctx, models.RoomKey(code))
	if err != nil || raw == nil {
		if err != nil {
			log.Warn().Err(err).Str("room_id", code).Msg("failed to read room for snapshot")
		}
		return
	}
	frame, err := json.Marshal(events.Event{
		ID:        uuid.New().String(),
		RoomID:    code,
		Type:      snapshotEventType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot frame")
		return
	}
	select {
	case conn.Send <- frame:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("dropped snapshot frame, send buffer full")
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers websocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", h.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
