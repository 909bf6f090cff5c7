package models

// QuestionType defines how a question is answered.
type QuestionType string

const (
	QuestionYesNo QuestionType = "YES_NO"
	// QuestionScale4 is a four-step agreement scale.
	QuestionScale4 QuestionType = "SCALE_4"
	// QuestionPlayers is answered by naming one of the current players; its
	// options are computed at round start from non-eliminated player names
	// and never persisted across rounds.
	QuestionPlayers QuestionType = "PLAYERS"
)

// Question is the prompt everyone except the spies answers honestly.
type Question struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	AnswerOptions  []string     `json:"answer_options,omitempty"`
	FamilyFriendly bool         `json:"family_friendly"`
}
