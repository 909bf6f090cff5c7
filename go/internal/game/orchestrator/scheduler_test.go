package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// waitForPhase polls until the room reaches the wanted phase. The fake
// clock makes deadlines fire instantly, so this only waits out goroutine
// scheduling.
func waitForPhase(t *testing.T, store statestore.Store, roomID string, want models.GamePhase) *models.Room {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r := getRoom(t, store, roomID)
		if r.GamePhase == want {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room never reached phase %s (still %s)", want, getRoom(t, store, roomID).GamePhase)
	return nil
}

func startScheduler(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSchedulerFiresAnswerDeadline(t *testing.T) {
	o, store, clock := newTestOrchestrator(t, "p1")
	r := fourPlayerRoom(models.PhaseAnswering)
	r.Settings.TimersEnabled = true
	at := clock.Now().UTC().Add(AnswerWindow)
	r.AnswerDeadline = &at
	seedRoom(t, store, r)

	startScheduler(t, o)
	clock.Advance(AnswerWindow + time.Second)

	got := waitForPhase(t, store, "ROOM01", models.PhaseResultsDiscussion)
	if got.VoteDeadline == nil {
		t.Fatal("no vote deadline after deadline-driven advance")
	}
}

func TestSchedulerFiresOnAllAnswered(t *testing.T) {
	o, store, clock := newTestOrchestrator(t, "p1")
	r := fourPlayerRoom(models.PhaseAnswering)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		r.Answers = append(r.Answers, models.Answer{PlayerID: id, AnswerText: "Yes"})
	}
	seedRoom(t, store, r)

	startScheduler(t, o)
	// The grace wait is relative to the clock at computation time, so the
	// scheduler must arm its timer before the fake clock advances.
	time.Sleep(100 * time.Millisecond)
	clock.Advance(answerGrace + time.Second)

	waitForPhase(t, store, "ROOM01", models.PhaseResultsDiscussion)
}

func TestSchedulerRevealsOnAllVoted(t *testing.T) {
	o, store, clock := newTestOrchestrator(t, "p1")
	r := fourPlayerRoom(models.PhaseResultsDiscussion)
	p2 := "p2"
	for _, id := range []string{"p1", "p3", "p4"} {
		r.Votes = append(r.Votes, models.Vote{VoterID: id, VotedForID: &p2})
	}
	r.Votes = append(r.Votes, models.Vote{VoterID: "p2", VotedForID: nil})
	seedRoom(t, store, r)

	startScheduler(t, o)
	clock.Advance(time.Second)

	got := waitForPhase(t, store, "ROOM01", models.PhaseVoteReveal)
	if !got.Players["p2"].RoundState.IsEliminated {
		t.Fatal("p2 not eliminated after scheduled reveal")
	}
}

func TestSchedulerSkipsRevealWhenVotingDisabled(t *testing.T) {
	o, store, clock := newTestOrchestrator(t, "p1")
	r := fourPlayerRoom(models.PhaseResultsDiscussion)
	r.Settings.VotingEnabled = false
	at := clock.Now().UTC().Add(time.Minute)
	r.VoteDeadline = &at
	seedRoom(t, store, r)

	startScheduler(t, o)
	clock.Advance(5 * time.Minute)

	// Manual-advance mode: the room stays put no matter how late it gets.
	time.Sleep(50 * time.Millisecond)
	if got := getRoom(t, store, "ROOM01"); got.GamePhase != models.PhaseResultsDiscussion {
		t.Fatalf("phase = %s, want RESULTS_DISCUSSION untouched", got.GamePhase)
	}
}

func TestSchedulerAdvancesRoundAfterConsensus(t *testing.T) {
	o, store, clock := newTestOrchestrator(t, "p1")
	r := fourPlayerRoom(models.PhaseSyncingNextRound)
	spy := r.Players["p2"]
	spy.RoundState.IsSpy = true
	r.Players["p2"] = spy
	for id, rec := range r.Players {
		rec.RoundState.ReadyForNextRound = true
		r.Players[id] = rec
	}
	seedRoom(t, store, r)

	startScheduler(t, o)
	// The settle wait is relative to the clock at computation time, so the
	// scheduler must arm its timer before the fake clock advances.
	time.Sleep(100 * time.Millisecond)
	clock.Advance(nextRoundSettle + time.Second)

	got := waitForPhase(t, store, "ROOM01", models.PhaseRoleReveal)
	if got.Round != 2 {
		t.Fatalf("round = %d, want 2", got.Round)
	}
}

func TestSchedulerStartsRoundWhenRolesAcknowledged(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, "p1")
	r := fourPlayerRoom(models.PhaseRoleReveal)
	spy := r.Players["p2"]
	spy.RoundState.IsSpy = true
	r.Players["p2"] = spy
	for id, rec := range r.Players {
		rec.RoundState.RoleAcknowledged = true
		r.Players[id] = rec
	}
	seedRoom(t, store, r)

	startScheduler(t, o)

	got := waitForPhase(t, store, "ROOM01", models.PhaseAnswering)
	if got.CurrentQuestion == nil {
		t.Fatal("no question after scheduled round start")
	}
}

func TestSchedulerIdlesForNonHost(t *testing.T) {
	o, store, clock := newTestOrchestrator(t, "p2")
	r := fourPlayerRoom(models.PhaseAnswering)
	r.Settings.TimersEnabled = true
	at := clock.Now().UTC().Add(AnswerWindow)
	r.AnswerDeadline = &at
	seedRoom(t, store, r)

	startScheduler(t, o)
	clock.Advance(AnswerWindow + time.Minute)

	time.Sleep(50 * time.Millisecond)
	if got := getRoom(t, store, "ROOM01"); got.GamePhase != models.PhaseAnswering {
		t.Fatalf("phase = %s, non-host scheduler must not act", got.GamePhase)
	}
}

func TestSchedulerTakesOverAfterMigration(t *testing.T) {
	o, store, clock := newTestOrchestrator(t, "p2")
	r := fourPlayerRoom(models.PhaseAnswering)
	r.Settings.TimersEnabled = true
	at := clock.Now().UTC().Add(AnswerWindow)
	r.AnswerDeadline = &at
	seedRoom(t, store, r)

	startScheduler(t, o)
	clock.Advance(AnswerWindow + time.Second)
	time.Sleep(50 * time.Millisecond)

	// Hand p2 host authority mid-phase; the idle scheduler must pick the
	// overdue deadline up from the snapshot alone.
	if err := store.Set(context.Background(), models.RoomKey("ROOM01")+"/host_id", "p2"); err != nil {
		t.Fatalf("set host: %v", err)
	}

	waitForPhase(t, store, "ROOM01", models.PhaseResultsDiscussion)
}
