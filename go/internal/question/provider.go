// Package question provides round questions: an interface for the external
// generator plus a deterministic local fallback library.
package question

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/models"
)

var (
	// ErrExhausted reports that no unused question is available. The host
	// reacts by ending the game in the players' favor.
	ErrExhausted = errors.New("question: no question available")

	// ErrUnavailable reports a transient provider failure. Never fatal;
	// callers fall back and surface a warning.
	ErrUnavailable = errors.New("question: provider unavailable")
)

// Snapshot is the slice of room state a provider needs: settings, the
// dedup history, and the names PLAYERS-type questions choose from.
type Snapshot struct {
	Settings    models.RoomSettings
	UsedIDs     []string
	UsedTexts   []string
	ActiveNames []string
}

// Result is a provisioned question together with the updated dedup history
// the host writes back to the room.
type Result struct {
	Question  models.Question
	UsedIDs   []string
	UsedTexts []string
}

// Provider produces the next round's question.
type Provider interface {
	Generate(ctx context.Context, snap Snapshot) (Result, error)
}

// WithFallback wraps a primary provider with a fallback consulted whenever
// the primary fails. Primary failures are logged as warnings, not
// surfaced; only the fallback's exhaustion propagates.
type WithFallback struct {
	Primary  Provider
	Fallback Provider
}

// Generate implements Provider.
func (w WithFallback) Generate(ctx context.Context, snap Snapshot) (Result, error) {
	if w.Primary != nil {
		res, err := w.Primary.Generate(ctx, snap)
		if err == nil {
			return res, nil
		}
		log.Warn().Err(err).Msg("question provider failed, using fallback")
	}
	return w.Fallback.Generate(ctx, snap)
}
