// Package engine holds the deterministic core of the game: phase
// transition rules, spy assignment, vote tallying, win evaluation and the
// consensus predicates that gate auto-advance. Everything here is pure;
// the orchestrator decides when to apply it and writes the results.
package engine

import "github.com/suslab/spyroom/go/internal/models"

var validTransitions = map[models.GamePhase][]models.GamePhase{
	models.PhaseSetup:             {models.PhaseRoleReveal},
	models.PhaseRoleReveal:        {models.PhaseAnswering, models.PhaseGameOver},
	models.PhaseAnswering:         {models.PhaseResultsDiscussion},
	models.PhaseResultsDiscussion: {models.PhaseVoteReveal},
	models.PhaseVoteReveal:        {models.PhaseSyncingNextRound, models.PhaseGameOver},
	models.PhaseSyncingNextRound:  {models.PhaseRoleReveal, models.PhaseGameOver},
	models.PhaseGameOver:          {models.PhaseSetup},
}

// CanTransition reports whether moving from one phase to another is legal.
func CanTransition(from, to models.GamePhase) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
