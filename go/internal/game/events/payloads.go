package events

import "time"

// PlayerJoinedPayload is the payload for PlayerJoined and PlayerRejoined.
type PlayerJoinedPayload struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	JoinOrder   int    `json:"join_order"`
	Rejoined    bool   `json:"rejoined,omitempty"`
}

// PlayerLeftPayload is the payload for PlayerLeft and PlayerKicked.
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

// HostMigratedPayload is the payload for HostMigrated.
type HostMigratedPayload struct {
	OldHostID string `json:"old_host_id"`
	NewHostID string `json:"new_host_id"`
}

// PhaseChangedPayload is the payload for PhaseChanged.
type PhaseChangedPayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Round int    `json:"round"`
}

// RoundStartedPayload is the payload for RoundStarted. The deadline is
// absolute so every client converges on the same wall-clock moment.
type RoundStartedPayload struct {
	Round          int        `json:"round"`
	QuestionID     string     `json:"question_id"`
	AnswerDeadline *time.Time `json:"answer_deadline,omitempty"`
}

// PlayerEliminatedPayload is the payload for PlayerEliminated.
type PlayerEliminatedPayload struct {
	PlayerID  string `json:"player_id"`
	VoteCount int    `json:"vote_count"`
	Round     int    `json:"round"`
}

// GameOverPayload is the payload for GameOver.
type GameOverPayload struct {
	Winner string `json:"winner"`
	Rounds int    `json:"rounds"`
}

// ChatMessagePayload is the payload for ChatMessage.
type ChatMessagePayload struct {
	MessageID  string `json:"message_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
}
