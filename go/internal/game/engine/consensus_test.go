package engine

import (
	"testing"

	"github.com/suslab/spyroom/go/internal/models"
)

func TestAllRolesAcknowledged(t *testing.T) {
	tests := []struct {
		name    string
		players []models.Player
		want    bool
	}{
		{
			name: "everyone acknowledged",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, RoleAcknowledged: true},
				{PlayerID: "b", ConnectionStatus: models.StatusConnected, RoleAcknowledged: true},
			},
			want: true,
		},
		{
			name: "one pending",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, RoleAcknowledged: true},
				{PlayerID: "b", ConnectionStatus: models.StatusConnected},
			},
			want: false,
		},
		{
			name: "disconnected player does not block",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, RoleAcknowledged: true},
				{PlayerID: "b", ConnectionStatus: models.StatusDisconnected},
			},
			want: true,
		},
		{
			name: "bot does not block",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, RoleAcknowledged: true},
				{PlayerID: "b", IsBot: true, ConnectionStatus: models.StatusConnected},
			},
			want: true,
		},
		{
			name: "eliminated player does not block",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, RoleAcknowledged: true},
				{PlayerID: "b", IsEliminated: true, ConnectionStatus: models.StatusConnected},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllRolesAcknowledged(tt.players); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAllAnswered(t *testing.T) {
	players := []models.Player{
		{PlayerID: "a", ConnectionStatus: models.StatusConnected},
		{PlayerID: "b", ConnectionStatus: models.StatusConnected},
		{PlayerID: "c", ConnectionStatus: models.StatusDisconnected},
	}

	if AllAnswered(players, []models.Answer{{PlayerID: "a", AnswerText: "Yes"}}) {
		t.Fatal("b has not answered yet")
	}
	answers := []models.Answer{
		{PlayerID: "a", AnswerText: "Yes"},
		{PlayerID: "b", AnswerText: "No"},
	}
	if !AllAnswered(players, answers) {
		t.Fatal("disconnected c should not block answering consensus")
	}
}

func TestAllVoted(t *testing.T) {
	players := []models.Player{
		{PlayerID: "a", ConnectionStatus: models.StatusConnected},
		{PlayerID: "b", ConnectionStatus: models.StatusConnected},
	}

	if AllVoted(players, []models.Vote{{VoterID: "a", VotedForID: ref("b")}}) {
		t.Fatal("b has not voted yet")
	}
	votes := []models.Vote{
		{VoterID: "a", VotedForID: ref("b")},
		{VoterID: "b", VotedForID: nil},
	}
	if !AllVoted(players, votes) {
		t.Fatal("an abstention should satisfy the voting gate")
	}
}

func TestNextRoundConsensus(t *testing.T) {
	tests := []struct {
		name        string
		players     []models.Player
		wantReady   bool
		wantBlocked bool
	}{
		{
			name: "everyone ready",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, ReadyForNextRound: true},
				{PlayerID: "b", ConnectionStatus: models.StatusConnected, ReadyForNextRound: true},
			},
			wantReady: true,
		},
		{
			name: "one not ready",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, ReadyForNextRound: true},
				{PlayerID: "b", ConnectionStatus: models.StatusConnected},
			},
			wantReady: false,
		},
		{
			name: "disconnected active player blocks",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, ReadyForNextRound: true},
				{PlayerID: "b", ConnectionStatus: models.StatusDisconnected},
			},
			wantReady:   true,
			wantBlocked: true,
		},
		{
			name: "disconnected eliminated player does not block",
			players: []models.Player{
				{PlayerID: "a", ConnectionStatus: models.StatusConnected, ReadyForNextRound: true},
				{PlayerID: "b", IsEliminated: true, ConnectionStatus: models.StatusDisconnected},
			},
			wantReady: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready, blocked := NextRoundConsensus(tt.players)
			if ready != tt.wantReady || blocked != tt.wantBlocked {
				t.Fatalf("expected ready=%v blocked=%v, got ready=%v blocked=%v",
					tt.wantReady, tt.wantBlocked, ready, blocked)
			}
		})
	}
}
