// Package orchestrator drives a room through its phase lifecycle. Exactly
// one client — the host — runs these transitions; everyone else only
// observes. Host authority is a trusted-peers convention: non-host clients
// never issue these writes, and every write re-validates its precondition
// inside an optimistic transaction so stale timers and racing overrides
// collapse into no-ops.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/game/engine"
	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/question"
	"github.com/suslab/spyroom/go/internal/statestore"
)

const (
	// MinPlayers is required to start a game.
	MinPlayers = 3

	// AnswerWindow is the answering deadline when timers are on.
	AnswerWindow = 30 * time.Second

	// VoteWindowPerPlayer scales the discussion deadline by active player
	// count.
	VoteWindowPerPlayer = 10 * time.Second

	// answerGrace lets clients show the all-answered state briefly before
	// the phase moves on.
	answerGrace = 1500 * time.Millisecond

	// nextRoundSettle delays the round flip after consensus.
	nextRoundSettle = 2 * time.Second
)

var (
	// ErrNotHost reports a transition attempted by a non-host client.
	ErrNotHost = errors.New("orchestrator: local player is not host")

	// ErrWrongPhase reports a transition whose phase precondition failed.
	// Usually benign: a manual override or another timer got there first.
	ErrWrongPhase = errors.New("orchestrator: room is not in the expected phase")

	// ErrRoomGone reports the room vanished mid-session.
	ErrRoomGone = errors.New("orchestrator: room no longer exists")

	// ErrNotEnoughPlayers reports a game start below the minimum.
	ErrNotEnoughPlayers = errors.New("orchestrator: not enough players")
)

// Clock is the subset of clockwork this package uses. Production passes
// clockwork.NewRealClock(); tests pass a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Orchestrator computes and writes phase transitions for one room on
// behalf of the local player, which must hold host authority for any
// write to land.
type Orchestrator struct {
	store     statestore.Store
	provider  question.Provider
	publisher events.Publisher
	clock     Clock
	rng       *rand.Rand
	roomID    string
	playerID  string

	wakeCh chan struct{}

	mu     sync.Mutex
	latest *models.Room
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithRand overrides the randomness source for spy assignment.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// New creates an orchestrator for the local player in the given room.
func New(store statestore.Store, provider question.Provider, publisher events.Publisher, roomID, playerID string, opts ...Option) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	o := &Orchestrator{
		store:     store,
		provider:  provider,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		roomID:    roomID,
		playerID:  playerID,
		wakeCh:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// transition runs one host transition as an optimistic transaction:
// re-read the room, re-validate hostship and the expected phase, apply.
// mutate may set precondErr (captured by reference) to fail without
// writing.
func (o *Orchestrator) transition(ctx context.Context, expect models.GamePhase, mutate func(r *models.Room) error) error {
	var precondErr error
	now := o.clock.Now().UTC()
	err := o.store.Transaction(ctx, models.RoomKey(o.roomID), func(current json.RawMessage) (any, error) {
		precondErr = nil
		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			precondErr = ErrRoomGone
			return nil, statestore.ErrAborted
		}
		if r.HostID != o.playerID {
			precondErr = ErrNotHost
			return nil, statestore.ErrAborted
		}
		if r.GamePhase != expect {
			precondErr = ErrWrongPhase
			return nil, statestore.ErrAborted
		}
		if err := mutate(r); err != nil {
			precondErr = err
			return nil, statestore.ErrAborted
		}
		if r.GamePhase != expect && !engine.CanTransition(expect, r.GamePhase) {
			precondErr = fmt.Errorf("%w: %s -> %s is not a legal transition", ErrWrongPhase, expect, r.GamePhase)
			return nil, statestore.ErrAborted
		}
		r.LastActivity = now
		return *r, nil
	})
	if precondErr != nil {
		return precondErr
	}
	if err != nil {
		return fmt.Errorf("phase transition from %s: %w", expect, err)
	}
	return nil
}

// StartGame moves SETUP to ROLE_REVEAL: assigns spies (forced set first,
// then a uniform shuffle fill) and resets every player's round flags.
func (o *Orchestrator) StartGame(ctx context.Context, forcedSpyIDs []string) error {
	var toPhase models.GamePhase
	err := o.transition(ctx, models.PhaseSetup, func(r *models.Room) error {
		if len(r.Players) < MinPlayers {
			return ErrNotEnoughPlayers
		}
		players := models.ProjectPlayers(r.Players)
		ids := make([]string, 0, len(players))
		for _, p := range players {
			ids = append(ids, p.PlayerID)
		}
		forced := forcedSpyIDs
		if len(forced) > r.Settings.SpyCount {
			forced = forced[:r.Settings.SpyCount]
		}
		spies := engine.AssignSpies(ids, forced, r.Settings.SpyCount, o.rng)

		for id, rec := range r.Players {
			rec.RoundState.IsSpy = spies[id]
			rec.RoundState.IsEliminated = false
			rec.RoundState.RoleAcknowledged = false
			rec.RoundState.ReadyForNextRound = false
			r.Players[id] = rec
		}
		r.Round = 1
		r.GamePhase = models.PhaseRoleReveal
		clearRoundScoped(r)
		r.Winner = nil
		toPhase = r.GamePhase
		return nil
	})
	if err != nil {
		return err
	}
	o.publishPhase(ctx, models.PhaseSetup, toPhase, 1)
	return nil
}

// StartRound provisions a question and moves ROLE_REVEAL to ANSWERING.
// The provider call happens outside the transaction; the commit
// re-validates that the phase and round are still the ones the question
// was provisioned for. Question exhaustion ends the game in the players'
// favor.
func (o *Orchestrator) StartRound(ctx context.Context) error {
	raw, err := o.store.Get(ctx, models.RoomKey(o.roomID))
	if err != nil {
		return fmt.Errorf("read room: %w", err)
	}
	r, err := models.DecodeRoom(raw)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrRoomGone
	}
	if r.GamePhase != models.PhaseRoleReveal {
		return ErrWrongPhase
	}
	round := r.Round

	var activeNames []string
	for _, p := range r.ActivePlayers() {
		activeNames = append(activeNames, p.DisplayName)
	}
	res, err := o.provider.Generate(ctx, question.Snapshot{
		Settings:    r.Settings,
		UsedIDs:     r.UsedQuestionIDs,
		UsedTexts:   r.UsedQuestionTexts,
		ActiveNames: activeNames,
	})
	if errors.Is(err, question.ErrExhausted) {
		log.Info().Str("room_id", o.roomID).Msg("question source exhausted, ending game")
		return o.endGame(ctx, models.PhaseRoleReveal, models.WinnerPlayers)
	}
	if err != nil {
		return fmt.Errorf("provision question: %w", err)
	}

	var deadline *time.Time
	err = o.transition(ctx, models.PhaseRoleReveal, func(r *models.Room) error {
		if r.Round != round {
			return ErrWrongPhase
		}
		q := res.Question
		clearRoundScoped(r)
		r.CurrentQuestion = &q
		r.UsedQuestionIDs = res.UsedIDs
		r.UsedQuestionTexts = res.UsedTexts
		if r.Settings.TimersEnabled {
			at := o.clock.Now().UTC().Add(AnswerWindow)
			r.AnswerDeadline = &at
			deadline = &at
		}
		r.GamePhase = models.PhaseAnswering
		return nil
	})
	if err != nil {
		return err
	}

	o.publishEvent(ctx, events.TypeRoundStarted, events.RoundStartedPayload{
		Round:          round,
		QuestionID:     res.Question.ID,
		AnswerDeadline: deadline,
	})
	o.publishPhase(ctx, models.PhaseRoleReveal, models.PhaseAnswering, round)
	return nil
}

// AdvanceToDiscussion moves ANSWERING to RESULTS_DISCUSSION: fired by the
// answer deadline, by everyone having answered, or by host override.
func (o *Orchestrator) AdvanceToDiscussion(ctx context.Context) error {
	var round int
	err := o.transition(ctx, models.PhaseAnswering, func(r *models.Room) error {
		r.Votes = nil
		if r.Settings.TimersEnabled {
			window := time.Duration(len(r.ActivePlayers())) * VoteWindowPerPlayer
			at := o.clock.Now().UTC().Add(window)
			r.VoteDeadline = &at
		}
		r.GamePhase = models.PhaseResultsDiscussion
		round = r.Round
		return nil
	})
	if err != nil {
		return err
	}
	o.publishPhase(ctx, models.PhaseAnswering, models.PhaseResultsDiscussion, round)
	return nil
}

// RevealVotes tallies the votes and moves RESULTS_DISCUSSION to
// VOTE_REVEAL, applying an elimination when a single leader reached
// quorum.
func (o *Orchestrator) RevealVotes(ctx context.Context) error {
	var (
		round      int
		eliminated string
		votes      int
	)
	err := o.transition(ctx, models.PhaseResultsDiscussion, func(r *models.Room) error {
		present := make(map[string]bool, len(r.Players))
		for id := range r.Players {
			present[id] = true
		}
		tally := engine.TallyVotes(r.Votes, present, len(r.ActivePlayers()))
		if tally.EliminatedID != "" {
			rec := r.Players[tally.EliminatedID]
			rec.RoundState.IsEliminated = true
			r.Players[tally.EliminatedID] = rec
			r.LastEliminatedPlayerID = tally.EliminatedID
			eliminated = tally.EliminatedID
			votes = tally.Counts[tally.EliminatedID]
		}
		r.GamePhase = models.PhaseVoteReveal
		round = r.Round
		return nil
	})
	if err != nil {
		return err
	}
	if eliminated != "" {
		o.publishEvent(ctx, events.TypePlayerEliminated, events.PlayerEliminatedPayload{
			PlayerID:  eliminated,
			VoteCount: votes,
			Round:     round,
		})
	}
	o.publishPhase(ctx, models.PhaseResultsDiscussion, models.PhaseVoteReveal, round)
	return nil
}

// ResolveRound evaluates win conditions after the reveal and moves
// VOTE_REVEAL to GAME_OVER or SYNCING_NEXT_ROUND.
func (o *Orchestrator) ResolveRound(ctx context.Context) error {
	var (
		round  int
		winner *models.Winner
	)
	err := o.transition(ctx, models.PhaseVoteReveal, func(r *models.Room) error {
		round = r.Round
		if w, over := engine.EvaluateWin(models.ProjectPlayers(r.Players), r.Settings.RoundLimit, r.Round); over {
			r.Winner = &w
			r.GamePhase = models.PhaseGameOver
			winner = &w
			return nil
		}
		for id, rec := range r.Players {
			rec.RoundState.ReadyForNextRound = false
			r.Players[id] = rec
		}
		r.GamePhase = models.PhaseSyncingNextRound
		return nil
	})
	if err != nil {
		return err
	}
	if winner != nil {
		o.publishEvent(ctx, events.TypeGameOver, events.GameOverPayload{Winner: string(*winner), Rounds: round})
		o.publishPhase(ctx, models.PhaseVoteReveal, models.PhaseGameOver, round)
		return nil
	}
	o.publishPhase(ctx, models.PhaseVoteReveal, models.PhaseSyncingNextRound, round)
	return nil
}

// NextRound moves SYNCING_NEXT_ROUND to the next ROLE_REVEAL, re-checking
// win conditions first in case departures settled the game meanwhile.
func (o *Orchestrator) NextRound(ctx context.Context) error {
	var (
		round  int
		winner *models.Winner
	)
	err := o.transition(ctx, models.PhaseSyncingNextRound, func(r *models.Room) error {
		if w, over := engine.EvaluateWin(models.ProjectPlayers(r.Players), r.Settings.RoundLimit, r.Round); over {
			r.Winner = &w
			r.GamePhase = models.PhaseGameOver
			winner = &w
			round = r.Round
			return nil
		}
		r.Round++
		round = r.Round
		clearRoundScoped(r)
		for id, rec := range r.Players {
			rec.RoundState.RoleAcknowledged = false
			rec.RoundState.ReadyForNextRound = false
			r.Players[id] = rec
		}
		r.GamePhase = models.PhaseRoleReveal
		return nil
	})
	if err != nil {
		return err
	}
	if winner != nil {
		o.publishEvent(ctx, events.TypeGameOver, events.GameOverPayload{Winner: string(*winner), Rounds: round})
		o.publishPhase(ctx, models.PhaseSyncingNextRound, models.PhaseGameOver, round)
		return nil
	}
	o.publishPhase(ctx, models.PhaseSyncingNextRound, models.PhaseRoleReveal, round)
	return nil
}

// ResetToSetup replays: GAME_OVER back to SETUP, keeping identities and
// the dedup history but clearing every round-scoped field and per-player
// round flag.
func (o *Orchestrator) ResetToSetup(ctx context.Context) error {
	err := o.transition(ctx, models.PhaseGameOver, func(r *models.Room) error {
		r.Round = 1
		r.Winner = nil
		clearRoundScoped(r)
		for id, rec := range r.Players {
			rec.RoundState.IsSpy = false
			rec.RoundState.IsEliminated = false
			rec.RoundState.RoleAcknowledged = false
			rec.RoundState.ReadyForNextRound = false
			r.Players[id] = rec
		}
		r.GamePhase = models.PhaseSetup
		return nil
	})
	if err != nil {
		return err
	}
	o.publishPhase(ctx, models.PhaseGameOver, models.PhaseSetup, 1)
	return nil
}

func (o *Orchestrator) endGame(ctx context.Context, from models.GamePhase, winner models.Winner) error {
	var round int
	err := o.transition(ctx, from, func(r *models.Room) error {
		r.Winner = &winner
		r.GamePhase = models.PhaseGameOver
		round = r.Round
		return nil
	})
	if err != nil {
		return err
	}
	o.publishEvent(ctx, events.TypeGameOver, events.GameOverPayload{Winner: string(winner), Rounds: round})
	o.publishPhase(ctx, from, models.PhaseGameOver, round)
	return nil
}

// clearRoundScoped resets the fields every round starts fresh with.
func clearRoundScoped(r *models.Room) {
	r.CurrentQuestion = nil
	r.Answers = nil
	r.Votes = nil
	r.LastEliminatedPlayerID = ""
	r.AnswerDeadline = nil
	r.VoteDeadline = nil
}

func (o *Orchestrator) publishPhase(ctx context.Context, from, to models.GamePhase, round int) {
	o.publishEvent(ctx, events.TypePhaseChanged, events.PhaseChangedPayload{
		From:  string(from),
		To:    string(to),
		Round: round,
	})
}

func (o *Orchestrator) publishEvent(ctx context.Context, eventType events.Type, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
		return
	}
	if err := o.publisher.Publish(ctx, events.Event{
		ID:        uuid.New().String(),
		RoomID:    o.roomID,
		Type:      eventType,
		Timestamp: o.clock.Now().UTC(),
		Payload:   data,
	}); err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Str("room_id", o.roomID).Msg("failed to publish event")
	}
}
