// Package session runs the client side of a joined room: presence,
// state observation, host-failure detection, and the host scheduler
// when the local player holds host authority.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/game/engine"
	"github.com/suslab/spyroom/go/internal/game/orchestrator"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/presence"
	"github.com/suslab/spyroom/go/internal/room"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// EndReason explains why a session terminated without the local player
// asking to leave.
type EndReason string

const (
	// EndKicked means the local player's record vanished from a live room.
	EndKicked EndReason = "KICKED"
	// EndRoomClosed means the room document itself was deleted.
	EndRoomClosed EndReason = "ROOM_CLOSED"
)

// State is one observed snapshot of the room, projected for rendering.
type State struct {
	Room    models.Room
	Players []models.Player
	IsHost  bool
	Me      models.Player
}

// Config wires a session's collaborators.
type Config struct {
	Store        statestore.Store
	Presence     *presence.Tracker
	Rooms        *room.Manager
	Orchestrator *orchestrator.Orchestrator
	RoomID       string
	PlayerID     string

	// OnState fires on every observed room change, in subscription order.
	OnState func(State)
	// OnEnd fires at most once when the session dies out from under us.
	OnEnd func(EndReason)

	Clock clockwork.Clock
}

// Session is one player's live attachment to a room.
type Session struct {
	cfg   Config
	clock clockwork.Clock

	mu          sync.Mutex
	hook        statestore.DisconnectHook
	unsubscribe statestore.Unsubscribe
	cancelRun   context.CancelFunc
	runDone     chan struct{}
	ended       bool
	migrating   bool
}

// Start announces presence, subscribes to the room, and launches the
// host scheduler. The scheduler idles until a snapshot shows the local
// player as host, so host migration needs no restart.
func Start(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	s := &Session{cfg: cfg, clock: cfg.Clock, runDone: make(chan struct{})}

	hook, err := cfg.Presence.Announce(ctx, cfg.RoomID, cfg.PlayerID)
	if err != nil {
		return nil, err
	}
	s.hook = hook

	unsubscribe, err := cfg.Store.Subscribe(models.RoomKey(cfg.RoomID), s.observe)
	if err != nil {
		hook.Cancel()
		return nil, err
	}
	s.unsubscribe = unsubscribe

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	go func() {
		defer close(s.runDone)
		if err := cfg.Orchestrator.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("room_id", cfg.RoomID).Msg("host scheduler stopped")
		}
	}()
	return s, nil
}

// observe handles each room snapshot: terminal detection first, then
// host-failure recovery, then the caller's state callback.
func (s *Session) observe(snapshot json.RawMessage) {
	r, err := models.DecodeRoom(snapshot)
	if err != nil {
		log.Error().Err(err).Str("room_id", s.cfg.RoomID).Msg("failed to decode room snapshot")
		return
	}
	if r == nil {
		s.end(EndRoomClosed)
		return
	}
	if _, ok := r.Player(s.cfg.PlayerID); !ok {
		s.end(EndKicked)
		return
	}

	s.maybeRecoverHost(r)

	if s.cfg.OnState != nil {
		players := models.ProjectPlayers(r.Players)
		var mine models.Player
		for _, p := range players {
			if p.PlayerID == s.cfg.PlayerID {
				mine = p
			}
		}
		s.cfg.OnState(State{
			Room:    *r,
			Players: players,
			IsHost:  r.HostID == s.cfg.PlayerID,
			Me:      mine,
		})
	}
}

// maybeRecoverHost claims host authority when the current host is
// observed disconnected and deterministic election names the local
// player as successor. Every connected client computes the same
// successor, so only one attempts the migration; the transaction aborts
// harmlessly if the host reconnected first.
func (s *Session) maybeRecoverHost(r *models.Room) {
	host, ok := r.Player(r.HostID)
	if ok && host.RoundState.ConnectionStatus == models.StatusConnected {
		return
	}
	successor, found := engine.ElectHost(models.ProjectPlayers(r.Players), r.HostID)
	if !found || successor != s.cfg.PlayerID {
		return
	}

	s.mu.Lock()
	if s.migrating || s.ended {
		s.mu.Unlock()
		return
	}
	s.migrating = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.migrating = false
			s.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		newHost, migrated, err := s.cfg.Presence.MigrateHost(ctx, s.cfg.RoomID)
		if err != nil {
			log.Warn().Err(err).Str("room_id", s.cfg.RoomID).Msg("host migration attempt failed")
			return
		}
		if migrated {
			log.Info().Str("room_id", s.cfg.RoomID).Str("new_host_id", newHost).Msg("claimed host authority")
			s.cfg.Orchestrator.Wake()
		}
	}()
}

// end tears the session down after a terminal observation. Watchers stop
// before the hook is cancelled so our own teardown writes are never
// misread as another kick.
func (s *Session) end(reason EndReason) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()

	s.detach()
	if s.cfg.Rooms != nil {
		s.cfg.Rooms.ForgetResume(s.cfg.RoomID, s.cfg.PlayerID)
	}
	if s.cfg.OnEnd != nil {
		s.cfg.OnEnd(reason)
	}
}

// detach stops the scheduler and subscription and disarms the
// disconnect hook, in that order.
func (s *Session) detach() {
	s.mu.Lock()
	cancel, unsubscribe, hook := s.cancelRun, s.unsubscribe, s.hook
	s.cancelRun, s.unsubscribe, s.hook = nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-s.runDone
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if hook != nil {
		hook.Cancel()
	}
}

// Leave departs cleanly: detach first so the leave write looks like an
// intentional exit, then mark the record disconnected through the room
// manager, which also handles host handoff and empty-room deletion.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.mu.Unlock()

	s.detach()
	return s.cfg.Rooms.LeaveRoom(ctx, s.cfg.RoomID, s.cfg.PlayerID)
}

// Close detaches without a leave write, simulating a dropped connection:
// the armed disconnect hook marks the player disconnected.
func (s *Session) Close() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	cancel, unsubscribe := s.cancelRun, s.unsubscribe
	s.cancelRun, s.unsubscribe, s.hook = nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-s.runDone
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}
