package question

import (
	"context"
	"math/rand"
	"sync"

	"github.com/suslab/spyroom/go/internal/models"
)

// scale4Options is the answer ladder for SCALE_4 questions.
var scale4Options = []string{"Definitely not", "Probably not", "Probably", "Definitely"}

var yesNoOptions = []string{"Yes", "No"}

// Library is a static question source used as the deterministic fallback.
// It filters by the family-friendly flag, skips questions already used by
// id or text, and when every candidate is spent it reshuffles and starts
// the history over rather than failing.
type Library struct {
	mu        sync.Mutex
	questions []models.Question
	rng       *rand.Rand
}

var _ Provider = (*Library)(nil)

// NewLibrary creates a fallback library over the built-in questions.
func NewLibrary(rng *rand.Rand) *Library {
	return &Library{questions: builtinQuestions, rng: rng}
}

// NewLibraryWith creates a fallback library over a custom question set.
func NewLibraryWith(questions []models.Question, rng *rand.Rand) *Library {
	return &Library{questions: questions, rng: rng}
}

// Generate implements Provider.
func (l *Library) Generate(ctx context.Context, snap Snapshot) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	usedIDs := make(map[string]bool, len(snap.UsedIDs))
	for _, id := range snap.UsedIDs {
		usedIDs[id] = true
	}
	usedTexts := make(map[string]bool, len(snap.UsedTexts))
	for _, text := range snap.UsedTexts {
		usedTexts[text] = true
	}

	candidates := l.eligible(snap, usedIDs, usedTexts)
	if len(candidates) == 0 {
		// Library exhausted: reshuffle by dropping the history and
		// drawing from the full filtered set again.
		candidates = l.eligible(snap, nil, nil)
		if len(candidates) == 0 {
			return Result{}, ErrExhausted
		}
		snap.UsedIDs = nil
		snap.UsedTexts = nil
	}

	q := candidates[l.rng.Intn(len(candidates))]
	switch q.Type {
	case models.QuestionPlayers:
		q.AnswerOptions = append([]string(nil), snap.ActiveNames...)
	case models.QuestionScale4:
		q.AnswerOptions = append([]string(nil), scale4Options...)
	case models.QuestionYesNo:
		q.AnswerOptions = append([]string(nil), yesNoOptions...)
	}

	return Result{
		Question:  q,
		UsedIDs:   append(append([]string(nil), snap.UsedIDs...), q.ID),
		UsedTexts: append(append([]string(nil), snap.UsedTexts...), q.Text),
	}, nil
}

func (l *Library) eligible(snap Snapshot, usedIDs, usedTexts map[string]bool) []models.Question {
	var out []models.Question
	for _, q := range l.questions {
		if snap.Settings.FamilyFriendly && !q.FamilyFriendly {
			continue
		}
		if usedIDs[q.ID] || usedTexts[q.Text] {
			continue
		}
		if q.Type == models.QuestionPlayers && len(snap.ActiveNames) == 0 {
			continue
		}
		out = append(out, q)
	}
	return out
}
