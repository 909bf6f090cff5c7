package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

func newTestStore(t *testing.T) statestore.Store {
	t.Helper()
	return statestore.NewMemoryBackend().Connect("actions-test")
}

func seedRoom(t *testing.T, store statestore.Store, r models.Room) {
	t.Helper()
	if err := store.Set(context.Background(), models.RoomKey(r.RoomID), r); err != nil {
		t.Fatalf("seed room: %v", err)
	}
}

func getRoom(t *testing.T, store statestore.Store, roomID string) *models.Room {
	t.Helper()
	raw, err := store.Get(context.Background(), models.RoomKey(roomID))
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	r, err := models.DecodeRoom(raw)
	if err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if r == nil {
		t.Fatalf("room %s missing", roomID)
	}
	return r
}

func roomInPhase(phase models.GamePhase) models.Room {
	return models.Room{
		RoomID:    "ROOM01",
		HostID:    "p1",
		GamePhase: phase,
		Round:     1,
		Players: map[string]models.PlayerRecord{
			"p1": {Identity: models.PlayerIdentity{PlayerID: "p1", DisplayName: "Ada"}},
			"p2": {Identity: models.PlayerIdentity{PlayerID: "p2", DisplayName: "Bo"}},
		},
	}
}

func TestSubmitAnswer(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, roomInPhase(models.PhaseAnswering))
	client := NewClient(store, "ROOM01", "p1")

	if err := client.SubmitAnswer(context.Background(), "Yes"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	r := getRoom(t, store, "ROOM01")
	if len(r.Answers) != 1 || r.Answers[0].PlayerID != "p1" || r.Answers[0].AnswerText != "Yes" {
		t.Fatalf("answers = %+v, want single answer by p1", r.Answers)
	}

	// Second submission is a no-op, not an error.
	if err := client.SubmitAnswer(context.Background(), "No"); err != nil {
		t.Fatalf("repeat SubmitAnswer: %v", err)
	}
	r = getRoom(t, store, "ROOM01")
	if len(r.Answers) != 1 || r.Answers[0].AnswerText != "Yes" {
		t.Fatalf("answers = %+v, want first answer kept", r.Answers)
	}
}

func TestSubmitAnswerWrongPhase(t *testing.T) {
	phases := []models.GamePhase{
		models.PhaseSetup,
		models.PhaseRoleReveal,
		models.PhaseResultsDiscussion,
		models.PhaseGameOver,
	}
	for _, phase := range phases {
		t.Run(string(phase), func(t *testing.T) {
			store := newTestStore(t)
			seedRoom(t, store, roomInPhase(phase))
			client := NewClient(store, "ROOM01", "p1")

			err := client.SubmitAnswer(context.Background(), "Yes")
			if !errors.Is(err, ErrWrongPhase) {
				t.Fatalf("err = %v, want ErrWrongPhase", err)
			}
		})
	}
}

func TestSubmitAnswerMissingRoom(t *testing.T) {
	store := newTestStore(t)
	client := NewClient(store, "ZZZZZ2", "p1")
	if err := client.SubmitAnswer(context.Background(), "Yes"); err != nil {
		t.Fatalf("SubmitAnswer on missing room: %v", err)
	}
}

func TestSubmitVote(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, roomInPhase(models.PhaseResultsDiscussion))
	target := "p2"

	if err := NewClient(store, "ROOM01", "p1").SubmitVote(context.Background(), &target); err != nil {
		t.Fatalf("SubmitVote: %v", err)
	}
	// Abstention is a recorded vote with a nil target.
	if err := NewClient(store, "ROOM01", "p2").SubmitVote(context.Background(), nil); err != nil {
		t.Fatalf("abstain SubmitVote: %v", err)
	}

	r := getRoom(t, store, "ROOM01")
	if len(r.Votes) != 2 {
		t.Fatalf("votes = %+v, want 2", r.Votes)
	}
	if r.Votes[0].VotedForID == nil || *r.Votes[0].VotedForID != "p2" {
		t.Fatalf("vote[0] = %+v, want target p2", r.Votes[0])
	}
	if r.Votes[1].VotedForID != nil {
		t.Fatalf("vote[1] = %+v, want abstention", r.Votes[1])
	}

	// Changing a cast vote is a no-op.
	other := "p1"
	if err := NewClient(store, "ROOM01", "p1").SubmitVote(context.Background(), &other); err != nil {
		t.Fatalf("repeat SubmitVote: %v", err)
	}
	r = getRoom(t, store, "ROOM01")
	if len(r.Votes) != 2 || *r.Votes[0].VotedForID != "p2" {
		t.Fatalf("votes = %+v, want first vote kept", r.Votes)
	}
}

func TestSubmitVoteWrongPhase(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, roomInPhase(models.PhaseAnswering))
	target := "p2"

	err := NewClient(store, "ROOM01", "p1").SubmitVote(context.Background(), &target)
	if !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("err = %v, want ErrWrongPhase", err)
	}
}

func TestAcknowledgeRole(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, roomInPhase(models.PhaseRoleReveal))
	client := NewClient(store, "ROOM01", "p1")

	if err := client.AcknowledgeRole(context.Background()); err != nil {
		t.Fatalf("AcknowledgeRole: %v", err)
	}
	r := getRoom(t, store, "ROOM01")
	if !r.Players["p1"].RoundState.RoleAcknowledged {
		t.Fatal("role not acknowledged")
	}
	if r.Players["p2"].RoundState.RoleAcknowledged {
		t.Fatal("acknowledged the wrong player")
	}

	if err := client.AcknowledgeRole(context.Background()); err != nil {
		t.Fatalf("repeat AcknowledgeRole: %v", err)
	}
}

func TestSetReadyForNextRound(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, roomInPhase(models.PhaseSyncingNextRound))
	client := NewClient(store, "ROOM01", "p1")

	if err := client.SetReadyForNextRound(context.Background(), true); err != nil {
		t.Fatalf("SetReadyForNextRound: %v", err)
	}
	if r := getRoom(t, store, "ROOM01"); !r.Players["p1"].RoundState.ReadyForNextRound {
		t.Fatal("ready flag not set")
	}

	// Unready works too.
	if err := client.SetReadyForNextRound(context.Background(), false); err != nil {
		t.Fatalf("unready SetReadyForNextRound: %v", err)
	}
	if r := getRoom(t, store, "ROOM01"); r.Players["p1"].RoundState.ReadyForNextRound {
		t.Fatal("ready flag not cleared")
	}
}

func TestOwnFlagForMissingPlayer(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, roomInPhase(models.PhaseRoleReveal))

	// A kicked player's flag write lands on nothing and is swallowed.
	if err := NewClient(store, "ROOM01", "ghost").AcknowledgeRole(context.Background()); err != nil {
		t.Fatalf("AcknowledgeRole for absent player: %v", err)
	}
}
