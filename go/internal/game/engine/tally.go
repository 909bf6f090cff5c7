package engine

import (
	"sort"

	"github.com/suslab/spyroom/go/internal/models"
)

// TallyResult is the deterministic outcome of counting a round's votes.
type TallyResult struct {
	// Counts maps candidate id to vote count. Abstentions consume the
	// voter's slot but count toward nobody.
	Counts map[string]int
	// Leaders are the ids that reached the highest count, sorted for
	// stable output.
	Leaders []string
	// Quorum is the minimum count required to eliminate.
	Quorum int
	// EliminatedID is set iff exactly one leader reached quorum.
	EliminatedID string
}

// Quorum returns the minimum vote count needed to eliminate a player:
// ceil(activeCount / 2).
func Quorum(activeCount int) int {
	return (activeCount + 1) / 2
}

// TallyVotes counts votes and decides elimination. Votes whose voter or
// (non-abstain) target no longer reference a present player are discarded,
// which handles kicks racing with votes. Only each voter's first vote
// counts, so the result is invariant under vote order and duplicates.
// Elimination requires a single leader at or above quorum; a tie, or a
// lone leader short of quorum, eliminates nobody.
func TallyVotes(votes []models.Vote, present map[string]bool, activeCount int) TallyResult {
	result := TallyResult{
		Counts: make(map[string]int),
		Quorum: Quorum(activeCount),
	}

	voted := make(map[string]bool, len(votes))
	for _, v := range votes {
		if !present[v.VoterID] || voted[v.VoterID] {
			continue
		}
		if v.VotedForID != nil && !present[*v.VotedForID] {
			continue
		}
		voted[v.VoterID] = true
		if v.VotedForID != nil {
			result.Counts[*v.VotedForID]++
		}
	}

	max := 0
	for _, count := range result.Counts {
		if count > max {
			max = count
		}
	}
	if max == 0 {
		return result
	}
	for id, count := range result.Counts {
		if count == max {
			result.Leaders = append(result.Leaders, id)
		}
	}
	sort.Strings(result.Leaders)

	if len(result.Leaders) == 1 && max >= result.Quorum {
		result.EliminatedID = result.Leaders[0]
	}
	return result
}

// EvaluateWin determines whether the game has ended. Among non-eliminated
// players: PLAYERS win when no spy remains, SPIES win when spies equal or
// outnumber the remaining innocents. With the round limit enabled, spies
// surviving round totalPlayers-1 win by default.
func EvaluateWin(players []models.Player, roundLimit bool, round int) (models.Winner, bool) {
	var spies, innocents int
	for _, p := range players {
		if p.IsEliminated {
			continue
		}
		if p.IsSpy {
			spies++
		} else {
			innocents++
		}
	}

	if spies == 0 {
		return models.WinnerPlayers, true
	}
	if spies >= innocents {
		return models.WinnerSpies, true
	}
	if roundLimit && round >= len(players)-1 {
		return models.WinnerSpies, true
	}
	return "", false
}
