// Package presence tracks player liveness and owns host migration. A
// disconnect is never an error here; it is a state transition the rest of
// the system (election, phase auto-advance) consumes.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/game/engine"
	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// Tracker marks the local player connected and keeps its disconnect hook
// armed so the store flips the flag if the connection drops without an
// explicit leave.
type Tracker struct {
	store     statestore.Store
	publisher events.Publisher
	clock     func() time.Time
}

// NewTracker creates a presence tracker over the client's store handle.
func NewTracker(store statestore.Store, publisher events.Publisher, clock func() time.Time) *Tracker {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{store: store, publisher: publisher, clock: clock}
}

// Announce declares the player connected and arms the disconnect hook.
// Call it once the transport is confirmed live, and again after every
// reconnect: hooks do not survive a reconnect on their own.
func (t *Tracker) Announce(ctx context.Context, roomID, playerID string) (statestore.DisconnectHook, error) {
	path := models.ConnectionStatusKey(roomID, playerID)

	hook := t.store.OnDisconnect(path)
	if err := hook.Set(models.StatusDisconnected); err != nil {
		return nil, fmt.Errorf("arm disconnect hook: %w", err)
	}
	if err := t.store.Set(ctx, path, models.StatusConnected); err != nil {
		if cancelErr := hook.Cancel(); cancelErr != nil {
			log.Warn().Err(cancelErr).Msg("failed to cancel disconnect hook after announce failure")
		}
		return nil, fmt.Errorf("declare presence: %w", err)
	}
	return hook, nil
}

// MigrateHost promotes a replacement host. Any non-host client observing
// players[hostId] disconnected may call this; the transaction re-reads the
// room and aborts when the host is not actually disconnected anymore, so
// racing elections collapse into one winner. Returns migrated=false when
// nothing needed doing or no candidate existed.
func (t *Tracker) MigrateHost(ctx context.Context, roomID string) (newHostID string, migrated bool, err error) {
	var oldHostID string
	txErr := t.store.Transaction(ctx, models.RoomKey(roomID), func(current json.RawMessage) (any, error) {
		newHostID, oldHostID = "", ""

		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil || r.HostID == "" {
			return nil, statestore.ErrAborted
		}
		hostRec, hostPresent := r.Players[r.HostID]
		if hostPresent && hostRec.RoundState.ConnectionStatus == models.StatusConnected {
			// Already migrated or the host reconnected.
			return nil, statestore.ErrAborted
		}

		candidate, ok := engine.ElectHost(models.ProjectPlayers(r.Players), r.HostID)
		if !ok {
			// Host-less until a human reconnects or GC takes the room.
			return nil, statestore.ErrAborted
		}

		oldHostID = r.HostID
		if hostPresent {
			hostRec.RoundState.IsHost = false
			r.Players[oldHostID] = hostRec
		}
		next := r.Players[candidate]
		next.RoundState.IsHost = true
		r.Players[candidate] = next
		r.HostID = candidate
		r.LastActivity = t.clock().UTC()
		newHostID = candidate
		return *r, nil
	})
	if errors.Is(txErr, statestore.ErrAborted) {
		return "", false, nil
	}
	if txErr != nil {
		return "", false, fmt.Errorf("migrate host: %w", txErr)
	}

	payload, _ := json.Marshal(events.HostMigratedPayload{OldHostID: oldHostID, NewHostID: newHostID})
	if err := t.publisher.Publish(ctx, events.Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      events.TypeHostMigrated,
		Timestamp: t.clock().UTC(),
		Payload:   payload,
	}); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to publish host migration event")
	}
	log.Info().Str("room_id", roomID).Str("old_host", oldHostID).Str("new_host", newHostID).Msg("host migrated")
	return newHostID, true, nil
}
