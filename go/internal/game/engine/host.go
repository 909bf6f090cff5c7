package engine

import "github.com/suslab/spyroom/go/internal/models"

// ElectHost deterministically picks a replacement host: the connected,
// non-bot player with the smallest join order, skipping the excluded ids
// (the departing or disconnected host). Returns false when no candidate
// exists, in which case the room stays host-less until a human reconnects.
func ElectHost(players []models.Player, exclude ...string) (string, bool) {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	best := ""
	bestOrder := -1
	for _, p := range players {
		if excluded[p.PlayerID] || p.IsBot || p.ConnectionStatus != models.StatusConnected {
			continue
		}
		if bestOrder == -1 || p.JoinOrder < bestOrder {
			best = p.PlayerID
			bestOrder = p.JoinOrder
		}
	}
	return best, best != ""
}
