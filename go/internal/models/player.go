package models

import "sort"

// ConnectionStatus reflects a player's transport liveness.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// PlayerIdentity is the stable part of a player record. AccountID is the
// durable cross-session identity used for rejoin matching. Identity is
// mutated only by its owning client (profile edits) or by the host (kick).
type PlayerIdentity struct {
	PlayerID    string `json:"player_id"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	IsBot       bool   `json:"is_bot,omitempty"`
}

// PlayerRoundState is the per-round mutable part of a player record.
// Game-logic fields are host-owned; ConnectionStatus, RoleAcknowledged and
// ReadyForNextRound are owned by the individual client.
type PlayerRoundState struct {
	IsSpy             bool             `json:"is_spy"`
	IsEliminated      bool             `json:"is_eliminated"`
	IsHost            bool             `json:"is_host"`
	ConnectionStatus  ConnectionStatus `json:"connection_status"`
	RoleAcknowledged  bool             `json:"role_acknowledged"`
	ReadyForNextRound bool             `json:"ready_for_next_round"`
	JoinOrder         int              `json:"join_order"`
}

// PlayerRecord is how a player is stored: identity and round state kept
// side by side under the player's id.
type PlayerRecord struct {
	Identity   PlayerIdentity   `json:"identity"`
	RoundState PlayerRoundState `json:"round_state"`
}

// Player is the joined view of identity and round state that the rest of
// the system works with.
type Player struct {
	PlayerID          string
	AccountID         string
	DisplayName       string
	Avatar            string
	IsBot             bool
	IsSpy             bool
	IsEliminated      bool
	IsHost            bool
	ConnectionStatus  ConnectionStatus
	RoleAcknowledged  bool
	ReadyForNextRound bool
	JoinOrder         int
}

// ProjectPlayers joins identities with round states into the combined view,
// sorted by join order. It is a pure projection recomputed on every state
// change; nothing caches its result.
func ProjectPlayers(records map[string]PlayerRecord) []Player {
	players := make([]Player, 0, len(records))
	for id, rec := range records {
		players = append(players, Player{
			PlayerID:          id,
			AccountID:         rec.Identity.AccountID,
			DisplayName:       rec.Identity.DisplayName,
			Avatar:            rec.Identity.Avatar,
			IsBot:             rec.Identity.IsBot,
			IsSpy:             rec.RoundState.IsSpy,
			IsEliminated:      rec.RoundState.IsEliminated,
			IsHost:            rec.RoundState.IsHost,
			ConnectionStatus:  rec.RoundState.ConnectionStatus,
			RoleAcknowledged:  rec.RoundState.RoleAcknowledged,
			ReadyForNextRound: rec.RoundState.ReadyForNextRound,
			JoinOrder:         rec.RoundState.JoinOrder,
		})
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinOrder < players[j].JoinOrder
	})
	return players
}
