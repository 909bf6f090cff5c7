package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/chat"
	"github.com/suslab/spyroom/go/internal/game/actions"
	"github.com/suslab/spyroom/go/internal/game/orchestrator"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/room"
)

// API exposes the coordinator over HTTP for thin clients that cannot
// talk to the state store directly. Handlers delegate to the same
// packages full clients embed, so both paths share one set of rules.
type API struct {
	services *Services
}

// NewAPI creates the HTTP API over the wired services.
func NewAPI(services *Services) *API {
	return &API{services: services}
}

// RegisterRoutes registers all API routes with an HTTP mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", a.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/join", a.handleJoinRoom)
	mux.HandleFunc("POST /api/rooms/leave", a.handleLeaveRoom)
	mux.HandleFunc("POST /api/rooms/kick", a.handleKickPlayer)
	mux.HandleFunc("POST /api/rooms/bot", a.handleAddBot)
	mux.HandleFunc("POST /api/rooms/profile", a.handleUpdateProfile)
	mux.HandleFunc("POST /api/rooms/settings", a.handleUpdateSettings)
	mux.HandleFunc("GET /api/rooms/state", a.handleRoomState)

	mux.HandleFunc("POST /api/chat/send", a.handleChatSend)
	mux.HandleFunc("POST /api/chat/read", a.handleChatRead)

	mux.HandleFunc("POST /api/game/start", a.handleStartGame)
	mux.HandleFunc("POST /api/game/answer", a.handleSubmitAnswer)
	mux.HandleFunc("POST /api/game/vote", a.handleSubmitVote)
	mux.HandleFunc("POST /api/game/ack", a.handleAcknowledgeRole)
	mux.HandleFunc("POST /api/game/ready", a.handleReady)
	mux.HandleFunc("POST /api/game/deal", a.hostTransition((*orchestrator.Orchestrator).StartRound))
	mux.HandleFunc("POST /api/game/advance", a.hostTransition((*orchestrator.Orchestrator).AdvanceToDiscussion))
	mux.HandleFunc("POST /api/game/reveal", a.hostTransition((*orchestrator.Orchestrator).RevealVotes))
	mux.HandleFunc("POST /api/game/resolve", a.hostTransition((*orchestrator.Orchestrator).ResolveRound))
	mux.HandleFunc("POST /api/game/next", a.hostTransition((*orchestrator.Orchestrator).NextRound))
	mux.HandleFunc("POST /api/game/replay", a.hostTransition((*orchestrator.Orchestrator).ResetToSetup))
}

type createRoomRequest struct {
	DisplayName string              `json:"display_name"`
	Avatar      string              `json:"avatar"`
	AccountID   string              `json:"account_id"`
	Settings    models.RoomSettings `json:"settings"`
}

type membershipResponse struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Settings.SpyCount < 1 {
		req.Settings.SpyCount = 1
	}
	roomID, playerID, err := a.services.Rooms.CreateRoom(r.Context(), room.Identity{
		AccountID:   req.AccountID,
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
	}, req.Settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membershipResponse{RoomID: roomID, PlayerID: playerID})
}

type joinRoomRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	AccountID   string `json:"account_id"`
}

func (a *API) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if !decode(w, r, &req) {
		return
	}
	code := room.NormalizeCode(req.Code)
	playerID, err := a.services.Rooms.JoinRoom(r.Context(), room.Identity{
		AccountID:   req.AccountID,
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
	}, code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipResponse{RoomID: code, PlayerID: playerID})
}

type membershipRequest struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

func (a *API) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.services.Rooms.LeaveRoom(r.Context(), req.RoomID, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *API) handleKickPlayer(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.services.Rooms.KickPlayer(r.Context(), req.RoomID, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type addBotRequest struct {
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
}

func (a *API) handleAddBot(w http.ResponseWriter, r *http.Request) {
	var req addBotRequest
	if !decode(w, r, &req) {
		return
	}
	botID, err := a.services.Rooms.AddBot(r.Context(), req.RoomID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membershipResponse{RoomID: req.RoomID, PlayerID: botID})
}

type updateProfileRequest struct {
	RoomID      string `json:"room_id"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.services.Rooms.UpdateProfile(r.Context(), req.RoomID, req.PlayerID, req.DisplayName, req.Avatar); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type updateSettingsRequest struct {
	RoomID   string              `json:"room_id"`
	PlayerID string              `json:"player_id"`
	Settings models.RoomSettings `json:"settings"`
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Settings.SpyCount < 1 {
		req.Settings.SpyCount = 1
	}
	if err := a.services.Rooms.UpdateSettings(r.Context(), req.RoomID, req.PlayerID, req.Settings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *API) handleRoomState(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeCode(r.URL.Query().Get("room"))
	if !room.ValidCode(code) {
		http.Error(w, "valid room code is required", http.StatusBadRequest)
		return
	}
	raw, err := a.services.Store.Get(r.Context(), models.RoomKey(code))
	if err != nil {
		writeError(w, err)
		return
	}
	if raw == nil {
		writeError(w, room.ErrRoomNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

type chatSendRequest struct {
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

func (a *API) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatSendRequest
	if !decode(w, r, &req) {
		return
	}
	messageID, err := a.services.Chat.Send(r.Context(), req.RoomID, req.SenderID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message_id": messageID})
}

type chatReadRequest struct {
	RoomID     string   `json:"room_id"`
	MessageIDs []string `json:"message_ids"`
}

func (a *API) handleChatRead(w http.ResponseWriter, r *http.Request) {
	var req chatReadRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.services.Chat.MarkRead(r.Context(), req.RoomID, req.MessageIDs...); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type startGameRequest struct {
	RoomID      string   `json:"room_id"`
	PlayerID    string   `json:"player_id"`
	ForcedSpies []string `json:"forced_spies,omitempty"`
}

func (a *API) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req startGameRequest
	if !decode(w, r, &req) {
		return
	}
	orch := a.orchestratorFor(req.RoomID, req.PlayerID)
	if err := orch.StartGame(r.Context(), req.ForcedSpies); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type answerRequest struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Answer   string `json:"answer"`
}

func (a *API) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	client := actions.NewClient(a.services.Store, req.RoomID, req.PlayerID)
	if err := client.SubmitAnswer(r.Context(), req.Answer); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type voteRequest struct {
	RoomID   string  `json:"room_id"`
	PlayerID string  `json:"player_id"`
	VotedFor *string `json:"voted_for"` // null abstains
}

func (a *API) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !decode(w, r, &req) {
		return
	}
	client := actions.NewClient(a.services.Store, req.RoomID, req.PlayerID)
	if err := client.SubmitVote(r.Context(), req.VotedFor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *API) handleAcknowledgeRole(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !decode(w, r, &req) {
		return
	}
	client := actions.NewClient(a.services.Store, req.RoomID, req.PlayerID)
	if err := client.AcknowledgeRole(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type readyRequest struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	var req readyRequest
	if !decode(w, r, &req) {
		return
	}
	client := actions.NewClient(a.services.Store, req.RoomID, req.PlayerID)
	if err := client.SetReadyForNextRound(r.Context(), req.Ready); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// hostTransition adapts a host-only orchestrator method into a handler.
// Each method re-validates phase and hostship inside its transaction, so
// a mistimed or non-host request collapses into a 409 or 403.
func (a *API) hostTransition(method func(*orchestrator.Orchestrator, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req membershipRequest
		if !decode(w, r, &req) {
			return
		}
		orch := a.orchestratorFor(req.RoomID, req.PlayerID)
		if err := method(orch, r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

func (a *API) orchestratorFor(roomID, playerID string) *orchestrator.Orchestrator {
	return orchestrator.New(a.services.Store, a.services.Questions, a.services.Publisher, roomID, playerID)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, orchestrator.ErrRoomGone):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrNameTaken),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrGameAlreadyStarted),
		errors.Is(err, actions.ErrWrongPhase),
		errors.Is(err, orchestrator.ErrWrongPhase):
		status = http.StatusConflict
	case errors.Is(err, orchestrator.ErrNotHost), errors.Is(err, room.ErrNotHost):
		status = http.StatusForbidden
	case errors.Is(err, orchestrator.ErrNotEnoughPlayers), errors.Is(err, chat.ErrSenderGone):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
