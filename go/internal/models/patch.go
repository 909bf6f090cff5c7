package models

import "time"

// PartialRoomPatch is a typed partial update of room-level fields. All
// update paths in the system funnel through Apply so the override
// semantics live in one place: a nil pointer leaves the field untouched, a
// non-nil pointer overrides it, and the Clear flags null a field out
// (clearing wins over a simultaneous set).
type PartialRoomPatch struct {
	GamePhase *GamePhase
	Round     *int
	HostID    *string
	Settings  *RoomSettings

	CurrentQuestion *Question
	ClearQuestion   bool

	Answers *[]Answer
	Votes   *[]Vote

	UsedQuestionIDs   *[]string
	UsedQuestionTexts *[]string

	LastEliminatedPlayerID      *string
	ClearLastEliminatedPlayerID bool

	Winner      *Winner
	ClearWinner bool

	AnswerDeadline      *time.Time
	ClearAnswerDeadline bool
	VoteDeadline        *time.Time
	ClearVoteDeadline   bool

	LastActivity *time.Time
}

// Apply merges the patch into a copy of room and returns it.
func (p PartialRoomPatch) Apply(room Room) Room {
	if p.GamePhase != nil {
		room.GamePhase = *p.GamePhase
	}
	if p.Round != nil {
		room.Round = *p.Round
	}
	if p.HostID != nil {
		room.HostID = *p.HostID
	}
	if p.Settings != nil {
		room.Settings = *p.Settings
	}
	if p.CurrentQuestion != nil {
		room.CurrentQuestion = p.CurrentQuestion
	}
	if p.ClearQuestion {
		room.CurrentQuestion = nil
	}
	if p.Answers != nil {
		room.Answers = *p.Answers
	}
	if p.Votes != nil {
		room.Votes = *p.Votes
	}
	if p.UsedQuestionIDs != nil {
		room.UsedQuestionIDs = *p.UsedQuestionIDs
	}
	if p.UsedQuestionTexts != nil {
		room.UsedQuestionTexts = *p.UsedQuestionTexts
	}
	if p.LastEliminatedPlayerID != nil {
		room.LastEliminatedPlayerID = *p.LastEliminatedPlayerID
	}
	if p.ClearLastEliminatedPlayerID {
		room.LastEliminatedPlayerID = ""
	}
	if p.Winner != nil {
		room.Winner = p.Winner
	}
	if p.ClearWinner {
		room.Winner = nil
	}
	if p.AnswerDeadline != nil {
		room.AnswerDeadline = p.AnswerDeadline
	}
	if p.ClearAnswerDeadline {
		room.AnswerDeadline = nil
	}
	if p.VoteDeadline != nil {
		room.VoteDeadline = p.VoteDeadline
	}
	if p.ClearVoteDeadline {
		room.VoteDeadline = nil
	}
	if p.LastActivity != nil {
		room.LastActivity = *p.LastActivity
	}
	return room
}
