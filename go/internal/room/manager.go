package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/game/engine"
	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

const (
	// MaxPlayers caps room membership, bots included.
	MaxPlayers = 12

	// DefaultStaleAfter is how long a room may sit without activity
	// before garbage collection takes it.
	DefaultStaleAfter = 6 * time.Hour

	codeAttempts = 10
	sweepTimeout = 10 * time.Second
)

// Identity is what a joining client brings: its durable account id and
// profile. Player ids are allocated here.
type Identity struct {
	AccountID   string
	DisplayName string
	Avatar      string
}

// Manager handles room creation, join, rejoin-by-identity, leave, kicks
// and stale-room garbage collection.
type Manager struct {
	store      statestore.Store
	sessions   *ResumeFile
	publisher  events.Publisher
	clock      func() time.Time
	newID      func() string
	staleAfter time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessions enables local session-resumption bookkeeping.
func WithSessions(sessions *ResumeFile) Option {
	return func(m *Manager) { m.sessions = sessions }
}

// WithPublisher sets the room event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithIDGenerator overrides player id allocation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithStaleAfter overrides the garbage-collection staleness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) { m.staleAfter = d }
}

// NewManager creates a room manager over the shared state store.
func NewManager(store statestore.Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		publisher:  events.NopPublisher{},
		clock:      time.Now,
		newID:      func() string { return uuid.New().String() },
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom allocates a unique room code and writes the initial room with
// the creator as host. It records the local resumption token and kicks off
// an opportunistic, best-effort sweep of stale rooms.
func (m *Manager) CreateRoom(ctx context.Context, ident Identity, settings models.RoomSettings) (roomID, playerID string, err error) {
	name := strings.TrimSpace(ident.DisplayName)
	if name == "" {
		return "", "", fmt.Errorf("display name is required")
	}
	playerID = m.newID()
	now := m.clock().UTC()

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := NewCode()
		txErr := m.store.Transaction(ctx, models.RoomKey(code), func(current json.RawMessage) (any, error) {
			if current != nil {
				return nil, statestore.ErrAborted
			}
			return models.Room{
				RoomID:       code,
				HostID:       playerID,
				GamePhase:    models.PhaseSetup,
				Round:        1,
				Settings:     settings,
				LastActivity: now,
				Players: map[string]models.PlayerRecord{
					playerID: {
						Identity: models.PlayerIdentity{
							PlayerID:    playerID,
							AccountID:   ident.AccountID,
							DisplayName: name,
							Avatar:      ident.Avatar,
						},
						RoundState: models.PlayerRoundState{
							IsHost:           true,
							ConnectionStatus: models.StatusConnected,
							JoinOrder:        0,
						},
					},
				},
			}, nil
		})
		if errors.Is(txErr, statestore.ErrAborted) {
			// Code collision; try another.
			continue
		}
		if txErr != nil {
			return "", "", fmt.Errorf("create room: %w", txErr)
		}
		roomID = code
		break
	}
	if roomID == "" {
		return "", "", fmt.Errorf("create room: could not allocate a unique code")
	}

	m.saveResume(roomID, playerID)
	m.publish(ctx, roomID, events.TypeRoomCreated, nil)
	m.publish(ctx, roomID, events.TypePlayerJoined, events.PlayerJoinedPayload{
		PlayerID:    playerID,
		DisplayName: name,
	})

	// Opportunistic GC; never required for correctness.
	go func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := m.SweepStale(sweepCtx); err != nil {
			log.Warn().Err(err).Msg("stale room sweep failed")
		}
	}()

	log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("room created")
	return roomID, playerID, nil
}

// JoinRoom adds the identity to the room, or resumes its disconnected
// player record when the durable account id matches (a rejoin). Returns
// the player id to use for the session.
func (m *Manager) JoinRoom(ctx context.Context, ident Identity, code string) (string, error) {
	code = NormalizeCode(code)
	name := strings.TrimSpace(ident.DisplayName)
	if name == "" {
		return "", fmt.Errorf("display name is required")
	}
	now := m.clock().UTC()

	var (
		playerID  string
		joinOrder int
		joinErr   error
		rejoined  bool
	)
	err := m.store.Transaction(ctx, models.RoomKey(code), func(current json.RawMessage) (any, error) {
		playerID, joinOrder, joinErr, rejoined = "", 0, nil, false

		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			joinErr = ErrRoomNotFound
			return nil, statestore.ErrAborted
		}
		if len(r.Players) == 0 {
			// Ghost room: commit the deletion, then report not found.
			joinErr = ErrRoomNotFound
			return nil, nil
		}

		for id, rec := range r.Players {
			if rec.Identity.AccountID == ident.AccountID && rec.RoundState.ConnectionStatus == models.StatusDisconnected {
				// Rejoin: refresh the profile, never create a duplicate.
				rec.Identity.DisplayName = name
				rec.Identity.Avatar = ident.Avatar
				rec.RoundState.ConnectionStatus = models.StatusConnected
				r.Players[id] = rec
				r.LastActivity = now
				playerID = id
				joinOrder = rec.RoundState.JoinOrder
				rejoined = true
				return *r, nil
			}
		}

		for _, rec := range r.Players {
			if strings.EqualFold(rec.Identity.DisplayName, name) {
				joinErr = ErrNameTaken
				return nil, statestore.ErrAborted
			}
		}
		if r.GamePhase != models.PhaseSetup {
			joinErr = ErrGameAlreadyStarted
			return nil, statestore.ErrAborted
		}
		if len(r.Players) >= MaxPlayers {
			joinErr = ErrRoomFull
			return nil, statestore.ErrAborted
		}

		joinOrder = nextJoinOrder(r)
		playerID = m.newID()
		r.Players[playerID] = models.PlayerRecord{
			Identity: models.PlayerIdentity{
				PlayerID:    playerID,
				AccountID:   ident.AccountID,
				DisplayName: name,
				Avatar:      ident.Avatar,
			},
			RoundState: models.PlayerRoundState{
				ConnectionStatus: models.StatusConnected,
				JoinOrder:        joinOrder,
			},
		}
		r.LastActivity = now
		return *r, nil
	})
	if joinErr != nil {
		return "", joinErr
	}
	if err != nil {
		return "", fmt.Errorf("join room: %w", err)
	}

	m.saveResume(code, playerID)
	eventType := events.TypePlayerJoined
	if rejoined {
		eventType = events.TypePlayerRejoined
	}
	m.publish(ctx, code, eventType, events.PlayerJoinedPayload{
		PlayerID:    playerID,
		DisplayName: name,
		JoinOrder:   joinOrder,
		Rejoined:    rejoined,
	})
	return playerID, nil
}

// LeaveRoom marks the player disconnected, migrating host authority in the
// same transaction when the leaver was host. The player record is kept so
// the account can rejoin; the room itself is deleted only once no non-bot
// player record remains at all. Rooms holding only disconnected humans are
// left for SweepStale. Idempotent.
func (m *Manager) LeaveRoom(ctx context.Context, code, playerID string) error {
	code = NormalizeCode(code)
	now := m.clock().UTC()

	var (
		newHost string
		deleted bool
	)
	err := m.store.Transaction(ctx, models.RoomKey(code), func(current json.RawMessage) (any, error) {
		newHost, deleted = "", false

		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, statestore.ErrAborted
		}
		rec, ok := r.Players[playerID]
		if !ok {
			return nil, statestore.ErrAborted
		}
		rec.RoundState.ConnectionStatus = models.StatusDisconnected
		r.Players[playerID] = rec

		if r.HostID == playerID {
			if id, ok := engine.ElectHost(models.ProjectPlayers(r.Players), playerID); ok {
				old := r.Players[playerID]
				old.RoundState.IsHost = false
				r.Players[playerID] = old

				next := r.Players[id]
				next.RoundState.IsHost = true
				r.Players[id] = next

				r.HostID = id
				newHost = id
			}
		}

		humans := 0
		for _, p := range r.Players {
			if !p.Identity.IsBot {
				humans++
			}
		}
		if humans == 0 {
			deleted = true
			return nil, nil
		}
		r.LastActivity = now
		return *r, nil
	})
	if errors.Is(err, statestore.ErrAborted) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}

	m.clearResume(code, playerID)
	m.publish(ctx, code, events.TypePlayerLeft, events.PlayerLeftPayload{PlayerID: playerID})
	if newHost != "" {
		m.publish(ctx, code, events.TypeHostMigrated, events.HostMigratedPayload{
			OldHostID: playerID,
			NewHostID: newHost,
		})
	}
	if deleted {
		m.publish(ctx, code, events.TypeRoomDeleted, nil)
	}
	return nil
}

// KickPlayer removes a player record entirely. Kicked clients notice their
// record vanished from a running room and end their session. Host action
// by convention.
func (m *Manager) KickPlayer(ctx context.Context, code, playerID string) error {
	code = NormalizeCode(code)
	now := m.clock().UTC()

	err := m.store.Transaction(ctx, models.RoomKey(code), func(current json.RawMessage) (any, error) {
		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, statestore.ErrAborted
		}
		if _, ok := r.Players[playerID]; !ok {
			return nil, statestore.ErrAborted
		}
		delete(r.Players, playerID)
		r.LastActivity = now
		return *r, nil
	})
	if errors.Is(err, statestore.ErrAborted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("kick player: %w", err)
	}
	m.publish(ctx, code, events.TypePlayerKicked, events.PlayerLeftPayload{PlayerID: playerID})
	return nil
}

// UpdateSettings replaces the room settings while in SETUP. Host only;
// waiting players observe the change through their subscription.
func (m *Manager) UpdateSettings(ctx context.Context, code, playerID string, settings models.RoomSettings) error {
	code = NormalizeCode(code)
	now := m.clock().UTC()

	var precondErr error
	err := m.store.Transaction(ctx, models.RoomKey(code), func(current json.RawMessage) (any, error) {
		precondErr = nil
		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			precondErr = ErrRoomNotFound
			return nil, statestore.ErrAborted
		}
		if r.HostID != playerID {
			precondErr = ErrNotHost
			return nil, statestore.ErrAborted
		}
		if r.GamePhase != models.PhaseSetup {
			precondErr = ErrGameAlreadyStarted
			return nil, statestore.ErrAborted
		}
		patch := models.PartialRoomPatch{Settings: &settings, LastActivity: &now}
		return patch.Apply(*r), nil
	})
	if precondErr != nil {
		return precondErr
	}
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// UpdateProfile edits the identity's display name and avatar in place.
// Clients only call this for their own player.
func (m *Manager) UpdateProfile(ctx context.Context, code, playerID, displayName, avatar string) error {
	code = NormalizeCode(code)
	name := strings.TrimSpace(displayName)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	err := m.store.Transaction(ctx, models.PlayerIdentityKey(code, playerID), func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, statestore.ErrAborted
		}
		var ident models.PlayerIdentity
		if err := json.Unmarshal(current, &ident); err != nil {
			return nil, fmt.Errorf("decode identity: %w", err)
		}
		ident.DisplayName = name
		ident.Avatar = avatar
		return ident, nil
	})
	if errors.Is(err, statestore.ErrAborted) {
		return nil
	}
	return err
}

// AddBot inserts a synthetic player. Bots never hold host authority, never
// gate consensus, and do not keep a room alive for garbage collection.
func (m *Manager) AddBot(ctx context.Context, code, displayName string) (string, error) {
	code = NormalizeCode(code)
	botID := m.newID()
	now := m.clock().UTC()

	var joinErr error
	err := m.store.Transaction(ctx, models.RoomKey(code), func(current json.RawMessage) (any, error) {
		joinErr = nil
		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			joinErr = ErrRoomNotFound
			return nil, statestore.ErrAborted
		}
		if r.GamePhase != models.PhaseSetup {
			joinErr = ErrGameAlreadyStarted
			return nil, statestore.ErrAborted
		}
		if len(r.Players) >= MaxPlayers {
			joinErr = ErrRoomFull
			return nil, statestore.ErrAborted
		}
		r.Players[botID] = models.PlayerRecord{
			Identity: models.PlayerIdentity{
				PlayerID:    botID,
				DisplayName: displayName,
				IsBot:       true,
			},
			RoundState: models.PlayerRoundState{
				ConnectionStatus: models.StatusConnected,
				JoinOrder:        nextJoinOrder(r),
			},
		}
		r.LastActivity = now
		return *r, nil
	})
	if joinErr != nil {
		return "", joinErr
	}
	if err != nil {
		return "", fmt.Errorf("add bot: %w", err)
	}
	return botID, nil
}

// SweepStale deletes rooms with no connected non-bot player or whose last
// activity exceeds the staleness threshold. Best effort.
func (m *Manager) SweepStale(ctx context.Context) error {
	raw, err := m.store.Get(ctx, models.RoomsKey())
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	if raw == nil {
		return nil
	}
	var rooms map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return fmt.Errorf("decode rooms: %w", err)
	}

	now := m.clock().UTC()
	for code, roomRaw := range rooms {
		r, err := models.DecodeRoom(roomRaw)
		if err != nil || r == nil {
			continue
		}
		stale := len(r.ConnectedHumans()) == 0 || now.Sub(r.LastActivity) > m.staleAfter
		if !stale {
			continue
		}
		if err := m.store.Set(ctx, models.RoomKey(code), nil); err != nil {
			log.Warn().Err(err).Str("room_id", code).Msg("failed to collect stale room")
			continue
		}
		log.Info().Str("room_id", code).Msg("stale room collected")
		m.publish(ctx, code, events.TypeRoomDeleted, nil)
	}
	return nil
}

func nextJoinOrder(r *models.Room) int {
	next := 0
	for _, rec := range r.Players {
		if rec.RoundState.JoinOrder >= next {
			next = rec.RoundState.JoinOrder + 1
		}
	}
	return next
}

func (m *Manager) saveResume(roomID, playerID string) {
	if m.sessions == nil {
		return
	}
	if err := m.sessions.Save(Resume{RoomID: roomID, PlayerID: playerID}); err != nil {
		log.Warn().Err(err).Msg("failed to save session resume record")
	}
}

// ForgetResume drops the resume record for the given membership, used
// when a session ends on us (kick, room deletion) without a leave call.
func (m *Manager) ForgetResume(roomID, playerID string) {
	m.clearResume(roomID, playerID)
}

func (m *Manager) clearResume(roomID, playerID string) {
	if m.sessions == nil {
		return
	}
	resume, ok, err := m.sessions.Load()
	if err != nil || !ok {
		return
	}
	if resume.RoomID == roomID && resume.PlayerID == playerID {
		if err := m.sessions.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear session resume record")
		}
	}
}

func (m *Manager) publish(ctx context.Context, roomID string, eventType events.Type, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
			return
		}
		raw = data
	}
	event := events.Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: m.clock().UTC(),
		Payload:   raw,
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Str("room_id", roomID).Msg("failed to publish room event")
	}
}
