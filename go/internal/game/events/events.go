// Package events defines the room event envelope published on every
// noteworthy state change and consumed by the fan-out gateway.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type identifies a room event.
type Type string

const (
	TypeRoomCreated      Type = "RoomCreated"
	TypeRoomDeleted      Type = "RoomDeleted"
	TypePlayerJoined     Type = "PlayerJoined"
	TypePlayerRejoined   Type = "PlayerRejoined"
	TypePlayerLeft       Type = "PlayerLeft"
	TypePlayerKicked     Type = "PlayerKicked"
	TypeHostMigrated     Type = "HostMigrated"
	TypePhaseChanged     Type = "PhaseChanged"
	TypeRoundStarted     Type = "RoundStarted"
	TypePlayerEliminated Type = "PlayerEliminated"
	TypeGameOver         Type = "GameOver"
	TypeChatMessage      Type = "ChatMessage"
)

// Event is the envelope all room events share.
type Event struct {
	ID        string          `json:"event_id"`
	RoomID    string          `json:"room_id"`
	Type      Type            `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher fans an event out to interested consumers. Publishing is
// best-effort: room state in the store is the source of truth and events
// only accelerate convergence.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
