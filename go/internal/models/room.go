package models

import "time"

// GamePhase defines the lifecycle phase of a room.
type GamePhase string

const (
	PhaseSetup             GamePhase = "SETUP"
	PhaseRoleReveal        GamePhase = "ROLE_REVEAL"
	PhaseAnswering         GamePhase = "ANSWERING"
	PhaseResultsDiscussion GamePhase = "RESULTS_DISCUSSION"
	PhaseVoteReveal        GamePhase = "VOTE_REVEAL"
	PhaseSyncingNextRound  GamePhase = "SYNCING_NEXT_ROUND"
	PhaseGameOver          GamePhase = "GAME_OVER"
)

// Winner identifies which side won a finished game.
type Winner string

const (
	WinnerPlayers Winner = "PLAYERS"
	WinnerSpies   Winner = "SPIES"
)

// RoomSettings holds host-configurable game options.
type RoomSettings struct {
	SpyCount        int  `json:"spy_count"`
	VotingEnabled   bool `json:"voting_enabled"`
	FamilyFriendly  bool `json:"family_friendly"`
	TimersEnabled   bool `json:"timers_enabled"`
	RoundLimit      bool `json:"round_limit"`
	RevealRoleOnEnd bool `json:"reveal_role_on_end"`
	RevealVotes     bool `json:"reveal_votes"`
}

// Room is the shared session document all clients observe. Phase and
// round-scoped fields are written only by the host; players append their
// own facts through guarded transactions.
type Room struct {
	RoomID                 string                  `json:"room_id"`
	HostID                 string                  `json:"host_id"`
	GamePhase              GamePhase               `json:"game_phase"`
	Round                  int                     `json:"round"`
	Settings               RoomSettings            `json:"settings"`
	UsedQuestionIDs        []string                `json:"used_question_ids,omitempty"`
	UsedQuestionTexts      []string                `json:"used_question_texts,omitempty"`
	CurrentQuestion        *Question               `json:"current_question,omitempty"`
	Answers                []Answer                `json:"answers,omitempty"`
	Votes                  []Vote                  `json:"votes,omitempty"`
	LastEliminatedPlayerID string                  `json:"last_eliminated_player_id,omitempty"`
	Winner                 *Winner                 `json:"winner,omitempty"`
	AnswerDeadline         *time.Time              `json:"answer_deadline,omitempty"`
	VoteDeadline           *time.Time              `json:"vote_deadline,omitempty"`
	LastActivity           time.Time               `json:"last_activity"`
	Players                map[string]PlayerRecord `json:"players,omitempty"`
	Chat                   []ChatMessage           `json:"chat,omitempty"`
}

// Player returns the record for id, if present.
func (r *Room) Player(id string) (PlayerRecord, bool) {
	rec, ok := r.Players[id]
	return rec, ok
}

// ActivePlayers returns non-eliminated players, sorted by join order.
func (r *Room) ActivePlayers() []Player {
	var active []Player
	for _, p := range ProjectPlayers(r.Players) {
		if !p.IsEliminated {
			active = append(active, p)
		}
	}
	return active
}

// ConnectedHumans returns connected non-bot players, sorted by join order.
func (r *Room) ConnectedHumans() []Player {
	var out []Player
	for _, p := range ProjectPlayers(r.Players) {
		if p.IsBot || p.ConnectionStatus != StatusConnected {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Answer records a single player's answer for the current round.
// At most one per player; appended, never mutated.
type Answer struct {
	PlayerID   string `json:"player_id"`
	AnswerText string `json:"answer_text"`
}

// Vote records a single player's vote for the current round. A nil
// VotedForID is an abstention: it consumes the voter's slot without
// counting toward anyone.
type Vote struct {
	VoterID    string  `json:"voter_id"`
	VotedForID *string `json:"voted_for_id"`
}
