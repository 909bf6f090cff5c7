package models

import "time"

// ChatMessage is an append-only room chat entry. Sender name and avatar are
// denormalized at send time so messages survive profile edits and kicks.
// ReadStatus is the only field ever mutated after append.
type ChatMessage struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar string    `json:"sender_avatar,omitempty"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
	ReadStatus   bool      `json:"read_status"`
}
