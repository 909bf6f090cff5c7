// Package chat appends room chat messages through guarded transactions.
// Messages are append-only; only their read status ever changes.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// MaxMessageLength caps a single chat message.
const MaxMessageLength = 500

// ErrSenderGone reports a send from a player no longer in the room.
var ErrSenderGone = errors.New("chat: sender not in room")

// Service appends and updates chat messages for a client.
type Service struct {
	store     statestore.Store
	publisher events.Publisher
	clock     func() time.Time
	newID     func() string
}

// NewService creates a chat service over the client's store handle.
func NewService(store statestore.Store, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:     store,
		publisher: publisher,
		clock:     time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Send appends a message, denormalizing the sender's current name and
// avatar so the message survives later profile edits or kicks.
func (s *Service) Send(ctx context.Context, roomID, senderID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("chat: empty message")
	}
	if len(text) > MaxMessageLength {
		// Back off to a rune boundary so truncation never splits a
		// multi-byte character.
		cut := MaxMessageLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	var (
		msgID   = s.newID()
		sendErr error
		msg     models.ChatMessage
	)
	err := s.store.Transaction(ctx, models.RoomKey(roomID), func(current json.RawMessage) (any, error) {
		sendErr = nil
		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			sendErr = ErrSenderGone
			return nil, statestore.ErrAborted
		}
		sender, ok := r.Players[senderID]
		if !ok {
			sendErr = ErrSenderGone
			return nil, statestore.ErrAborted
		}
		msg = models.ChatMessage{
			ID:           msgID,
			SenderID:     senderID,
			SenderName:   sender.Identity.DisplayName,
			SenderAvatar: sender.Identity.Avatar,
			Text:         text,
			Timestamp:    s.clock().UTC(),
		}
		r.Chat = append(r.Chat, msg)
		r.LastActivity = msg.Timestamp
		return *r, nil
	})
	if sendErr != nil {
		return "", sendErr
	}
	if err != nil {
		return "", fmt.Errorf("send chat message: %w", err)
	}

	payload, _ := json.Marshal(events.ChatMessagePayload{
		MessageID:  msgID,
		SenderID:   senderID,
		SenderName: msg.SenderName,
		Text:       text,
	})
	if err := s.publisher.Publish(ctx, events.Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      events.TypeChatMessage,
		Timestamp: msg.Timestamp,
		Payload:   payload,
	}); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to publish chat event")
	}
	return msgID, nil
}

// MarkRead flips the read status of the given messages. Unknown ids and
// already-read messages are no-ops, so duplicate calls are harmless.
func (s *Service) MarkRead(ctx context.Context, roomID string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	err := s.store.Transaction(ctx, models.ChatKey(roomID), func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, statestore.ErrAborted
		}
		var msgs []models.ChatMessage
		if err := json.Unmarshal(current, &msgs); err != nil {
			return nil, fmt.Errorf("decode chat: %w", err)
		}
		changed := false
		for i := range msgs {
			if wanted[msgs[i].ID] && !msgs[i].ReadStatus {
				msgs[i].ReadStatus = true
				changed = true
			}
		}
		if !changed {
			return nil, statestore.ErrAborted
		}
		return msgs, nil
	})
	if errors.Is(err, statestore.ErrAborted) {
		return nil
	}
	return err
}
