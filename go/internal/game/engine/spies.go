package engine

import "math/rand"

// AssignSpies picks which player ids become spies. The host-curated forced
// set is taken first (capped at spyCount, ignoring ids not present); the
// remainder is filled by a Fisher-Yates shuffle of the remaining ids.
// Deterministic for a given rng.
func AssignSpies(playerIDs []string, forced []string, spyCount int, rng *rand.Rand) map[string]bool {
	if spyCount > len(playerIDs) {
		spyCount = len(playerIDs)
	}
	spies := make(map[string]bool, spyCount)

	present := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		present[id] = true
	}
	for _, id := range forced {
		if len(spies) == spyCount {
			break
		}
		if present[id] {
			spies[id] = true
		}
	}

	rest := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if !spies[id] {
			rest = append(rest, id)
		}
	}
	rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	for _, id := range rest {
		if len(spies) == spyCount {
			break
		}
		spies[id] = true
	}
	return spies
}
