package engine

import "github.com/suslab/spyroom/go/internal/models"

// gated reports whether a player participates in consensus gates: bots and
// eliminated players never hold up a phase.
func gated(p models.Player) bool {
	return !p.IsBot && !p.IsEliminated
}

// AllRolesAcknowledged reports whether every connected, non-eliminated
// player has confirmed seeing their role.
func AllRolesAcknowledged(players []models.Player) bool {
	for _, p := range players {
		if gated(p) && p.ConnectionStatus == models.StatusConnected && !p.RoleAcknowledged {
			return false
		}
	}
	return true
}

// AllAnswered reports whether every connected, non-eliminated player has
// an answer on record.
func AllAnswered(players []models.Player, answers []models.Answer) bool {
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		answered[a.PlayerID] = true
	}
	for _, p := range players {
		if gated(p) && p.ConnectionStatus == models.StatusConnected && !answered[p.PlayerID] {
			return false
		}
	}
	return true
}

// AllVoted reports whether every connected, non-eliminated player has a
// vote on record (abstentions included).
func AllVoted(players []models.Player, votes []models.Vote) bool {
	voted := make(map[string]bool, len(votes))
	for _, v := range votes {
		voted[v.VoterID] = true
	}
	for _, p := range players {
		if gated(p) && p.ConnectionStatus == models.StatusConnected && !voted[p.PlayerID] {
			return false
		}
	}
	return true
}

// NextRoundConsensus reports readiness for the next round. ready means
// every connected non-eliminated player flagged ready; blocked means a
// disconnected non-eliminated player is holding up auto-advance, leaving
// only the host's manual override.
func NextRoundConsensus(players []models.Player) (ready, blocked bool) {
	ready = true
	for _, p := range players {
		if !gated(p) {
			continue
		}
		if p.ConnectionStatus != models.StatusConnected {
			blocked = true
			continue
		}
		if !p.ReadyForNextRound {
			ready = false
		}
	}
	return ready, blocked
}
