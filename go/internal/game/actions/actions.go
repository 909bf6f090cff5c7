// Package actions holds the writes any client issues for its own player:
// answers, votes, role acknowledgement and next-round readiness. Each is a
// guarded optimistic transaction whose precondition failing means the
// intent was already satisfied, so aborts are swallowed.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// ErrWrongPhase reports a fact submitted while the room is not accepting
// it (for example an answer outside ANSWERING).
var ErrWrongPhase = errors.New("actions: wrong phase for this action")

// Client issues a single player's own writes against a room.
type Client struct {
	store    statestore.Store
	roomID   string
	playerID string
}

// NewClient creates an action client for one player in one room.
func NewClient(store statestore.Store, roomID, playerID string) *Client {
	return &Client{store: store, roomID: roomID, playerID: playerID}
}

// SubmitAnswer appends the player's answer for the current round. At most
// one per player; a second submission is a no-op.
func (c *Client) SubmitAnswer(ctx context.Context, answerText string) error {
	var phaseErr error
	err := c.store.Transaction(ctx, models.RoomKey(c.roomID), func(current json.RawMessage) (any, error) {
		phaseErr = nil
		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, statestore.ErrAborted
		}
		if r.GamePhase != models.PhaseAnswering {
			phaseErr = ErrWrongPhase
			return nil, statestore.ErrAborted
		}
		for _, a := range r.Answers {
			if a.PlayerID == c.playerID {
				// Already answered; intent satisfied.
				return nil, statestore.ErrAborted
			}
		}
		r.Answers = append(r.Answers, models.Answer{PlayerID: c.playerID, AnswerText: answerText})
		return *r, nil
	})
	if phaseErr != nil {
		return phaseErr
	}
	if errors.Is(err, statestore.ErrAborted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}
	return nil
}

// SubmitVote appends the player's vote. A nil votedForID abstains. At most
// one per player; duplicates are no-ops.
func (c *Client) SubmitVote(ctx context.Context, votedForID *string) error {
	var phaseErr error
	err := c.store.Transaction(ctx, models.RoomKey(c.roomID), func(current json.RawMessage) (any, error) {
		phaseErr = nil
		r, err := models.DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, statestore.ErrAborted
		}
		if r.GamePhase != models.PhaseResultsDiscussion {
			phaseErr = ErrWrongPhase
			return nil, statestore.ErrAborted
		}
		for _, v := range r.Votes {
			if v.VoterID == c.playerID {
				return nil, statestore.ErrAborted
			}
		}
		r.Votes = append(r.Votes, models.Vote{VoterID: c.playerID, VotedForID: votedForID})
		return *r, nil
	})
	if phaseErr != nil {
		return phaseErr
	}
	if errors.Is(err, statestore.ErrAborted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("submit vote: %w", err)
	}
	return nil
}

// AcknowledgeRole flags that the player has seen their role this round.
func (c *Client) AcknowledgeRole(ctx context.Context) error {
	return c.setOwnFlag(ctx, "role_acknowledged", func(rs *models.PlayerRoundState) bool {
		if rs.RoleAcknowledged {
			return false
		}
		rs.RoleAcknowledged = true
		return true
	})
}

// SetReadyForNextRound flags the player ready to move on.
func (c *Client) SetReadyForNextRound(ctx context.Context, ready bool) error {
	return c.setOwnFlag(ctx, "ready_for_next_round", func(rs *models.PlayerRoundState) bool {
		if rs.ReadyForNextRound == ready {
			return false
		}
		rs.ReadyForNextRound = ready
		return true
	})
}

func (c *Client) setOwnFlag(ctx context.Context, name string, mutate func(*models.PlayerRoundState) bool) error {
	err := c.store.Transaction(ctx, models.PlayerRoundStateKey(c.roomID, c.playerID), func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, statestore.ErrAborted
		}
		var rs models.PlayerRoundState
		if err := json.Unmarshal(current, &rs); err != nil {
			return nil, fmt.Errorf("decode round state: %w", err)
		}
		if !mutate(&rs) {
			return nil, statestore.ErrAborted
		}
		return rs, nil
	})
	if errors.Is(err, statestore.ErrAborted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}
