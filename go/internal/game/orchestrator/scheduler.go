package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/game/engine"
	"github.com/suslab/spyroom/go/internal/models"
)

// retryBackoff spaces out re-evaluation after an action hit a stale
// precondition, until the subscription delivers the fresher snapshot.
const retryBackoff = 100 * time.Millisecond

// Run drives the room's automatic transitions until ctx is cancelled.
// It subscribes to the room, recomputes the next due action on every
// state change, and sleeps on a single timer until the earliest absolute
// deadline. Every fired action re-validates its precondition inside its
// transaction, so a stale timer is harmless.
//
// Run is a no-op while the local player is not host; it starts acting
// the moment an observed snapshot hands it host authority.
func (o *Orchestrator) Run(ctx context.Context) error {
	unsubscribe, err := o.store.Subscribe(models.RoomKey(o.roomID), func(snapshot json.RawMessage) {
		r, err := models.DecodeRoom(snapshot)
		if err != nil {
			log.Error().Err(err).Str("room_id", o.roomID).Msg("failed to decode room snapshot")
			return
		}
		o.mu.Lock()
		o.latest = r
		o.mu.Unlock()
		select {
		case o.wakeCh <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	timer := o.clock.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		action, wait := o.nextAction()
		if action == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.wakeCh:
				continue
			}
		}

		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.wakeCh:
				// State changed before the deadline: recompute. The
				// deadline is absolute, so if it still applies the next
				// wait just shrinks.
				continue
			case <-timer.Chan():
			}
		}

		if err := action(ctx); err != nil {
			if benign(err) {
				// Lost the race to a manual override or a fresher write.
				// Back off briefly so we recompute from the snapshot that
				// beat us once it arrives.
				timer.Reset(retryBackoff)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-o.wakeCh:
				case <-timer.Chan():
				}
				continue
			}
			log.Warn().Err(err).Str("room_id", o.roomID).Msg("scheduled transition failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.wakeCh:
		}
	}
}

// Wake forces the scheduler to re-evaluate, used after out-of-band writes
// the subscription might deliver late.
func (o *Orchestrator) Wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

// nextAction derives the next automatic transition from the latest
// observed snapshot, and how long to wait before firing it. A nil action
// means nothing is scheduled for the current state.
func (o *Orchestrator) nextAction() (func(context.Context) error, time.Duration) {
	o.mu.Lock()
	r := o.latest
	o.mu.Unlock()

	if r == nil || r.HostID != o.playerID {
		return nil, 0
	}

	now := o.clock.Now()
	players := models.ProjectPlayers(r.Players)

	switch r.GamePhase {
	case models.PhaseRoleReveal:
		if engine.AllRolesAcknowledged(players) {
			return o.StartRound, 0
		}

	case models.PhaseAnswering:
		at, ok := earliest(now, engine.AllAnswered(players, r.Answers), answerGrace, r.AnswerDeadline)
		if ok {
			return o.AdvanceToDiscussion, at.Sub(now)
		}

	case models.PhaseResultsDiscussion:
		if !r.Settings.VotingEnabled {
			// Without voting the host advances manually.
			return nil, 0
		}
		at, ok := earliest(now, engine.AllVoted(players, r.Votes), 0, r.VoteDeadline)
		if ok {
			return o.RevealVotes, at.Sub(now)
		}

	case models.PhaseSyncingNextRound:
		if ready, blocked := engine.NextRoundConsensus(players); ready && !blocked {
			return o.NextRound, nextRoundSettle
		}
	}
	return nil, 0
}

// earliest picks the sooner of a consensus trigger (now plus grace) and
// an absolute deadline, whichever applies.
func earliest(now time.Time, consensus bool, grace time.Duration, deadline *time.Time) (time.Time, bool) {
	var at time.Time
	ok := false
	if consensus {
		at = now.Add(grace)
		ok = true
	}
	if deadline != nil && (!ok || deadline.Before(at)) {
		at = *deadline
		ok = true
	}
	return at, ok
}

// benign reports whether a transition error is an expected race rather
// than a fault worth logging.
func benign(err error) bool {
	return errors.Is(err, ErrWrongPhase) || errors.Is(err, ErrNotHost) || errors.Is(err, ErrRoomGone)
}
