package models

import (
	"testing"
	"time"
)

func TestPartialRoomPatchApply(t *testing.T) {
	base := Room{
		RoomID:    "ROOM01",
		HostID:    "p1",
		GamePhase: PhaseAnswering,
		Round:     2,
		CurrentQuestion: &Question{
			ID: "q1", Text: "Do you snore?", Type: QuestionYesNo,
		},
		LastEliminatedPlayerID: "p3",
	}

	phase := PhaseResultsDiscussion
	round := 3
	deadline := time.Date(2025, 4, 12, 10, 0, 30, 0, time.UTC)

	got := PartialRoomPatch{
		GamePhase:    &phase,
		Round:        &round,
		VoteDeadline: &deadline,
	}.Apply(base)

	if got.GamePhase != PhaseResultsDiscussion || got.Round != 3 {
		t.Fatalf("phase/round = %s/%d, want RESULTS_DISCUSSION/3", got.GamePhase, got.Round)
	}
	if got.VoteDeadline == nil || !got.VoteDeadline.Equal(deadline) {
		t.Fatalf("VoteDeadline = %v, want %v", got.VoteDeadline, deadline)
	}
	// Untouched fields survive.
	if got.HostID != "p1" || got.CurrentQuestion == nil || got.LastEliminatedPlayerID != "p3" {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	// The input is not mutated.
	if base.GamePhase != PhaseAnswering || base.Round != 2 {
		t.Fatalf("Apply mutated its input: %+v", base)
	}
}

func TestPartialRoomPatchClearWins(t *testing.T) {
	deadline := time.Date(2025, 4, 12, 10, 0, 30, 0, time.UTC)
	w := WinnerSpies
	base := Room{
		CurrentQuestion:        &Question{ID: "q1"},
		Winner:                 &w,
		AnswerDeadline:         &deadline,
		VoteDeadline:           &deadline,
		LastEliminatedPlayerID: "p3",
	}

	other := WinnerPlayers
	got := PartialRoomPatch{
		CurrentQuestion:             &Question{ID: "q2"},
		ClearQuestion:               true,
		Winner:                      &other,
		ClearWinner:                 true,
		ClearAnswerDeadline:         true,
		ClearVoteDeadline:           true,
		ClearLastEliminatedPlayerID: true,
	}.Apply(base)

	if got.CurrentQuestion != nil {
		t.Fatalf("CurrentQuestion = %+v, want cleared over set", got.CurrentQuestion)
	}
	if got.Winner != nil {
		t.Fatalf("Winner = %v, want cleared over set", got.Winner)
	}
	if got.AnswerDeadline != nil || got.VoteDeadline != nil {
		t.Fatal("deadlines not cleared")
	}
	if got.LastEliminatedPlayerID != "" {
		t.Fatalf("LastEliminatedPlayerID = %q, want cleared", got.LastEliminatedPlayerID)
	}
}

func TestProjectPlayersSortsByJoinOrder(t *testing.T) {
	records := map[string]PlayerRecord{
		"c": {Identity: PlayerIdentity{PlayerID: "c", DisplayName: "Cy"}, RoundState: PlayerRoundState{JoinOrder: 2}},
		"a": {Identity: PlayerIdentity{PlayerID: "a", DisplayName: "Ada"}, RoundState: PlayerRoundState{JoinOrder: 0, IsHost: true}},
		"b": {Identity: PlayerIdentity{PlayerID: "b", DisplayName: "Bo"}, RoundState: PlayerRoundState{JoinOrder: 1, IsSpy: true}},
	}

	players := ProjectPlayers(records)
	if len(players) != 3 {
		t.Fatalf("projected %d players, want 3", len(players))
	}
	for i, want := range []string{"a", "b", "c"} {
		if players[i].PlayerID != want {
			t.Fatalf("players[%d] = %s, want %s", i, players[i].PlayerID, want)
		}
	}
	if !players[0].IsHost || !players[1].IsSpy {
		t.Fatal("projection dropped round-state flags")
	}
}

func TestDecodeRoom(t *testing.T) {
	r, err := DecodeRoom(nil)
	if err != nil || r != nil {
		t.Fatalf("DecodeRoom(nil) = (%v, %v), want (nil, nil)", r, err)
	}
	r, err = DecodeRoom([]byte("null"))
	if err != nil || r != nil {
		t.Fatalf("DecodeRoom(null) = (%v, %v), want (nil, nil)", r, err)
	}
	r, err = DecodeRoom([]byte(`{"room_id":"ROOM01","game_phase":"SETUP"}`))
	if err != nil {
		t.Fatalf("DecodeRoom: %v", err)
	}
	if r.RoomID != "ROOM01" || r.GamePhase != PhaseSetup {
		t.Fatalf("decoded %+v", r)
	}
	if _, err := DecodeRoom([]byte("{broken")); err == nil {
		t.Fatal("DecodeRoom accepted malformed JSON")
	}
}
