package session

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/room"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// Resume validates a saved membership against the live room and returns
// it when still usable: the room exists and our record is still in it.
// A stale record is cleared so the next launch starts fresh. Reattaching
// is then just Start with the returned ids; presence flips the record
// back to connected.
func Resume(ctx context.Context, store statestore.Store, sessions *room.ResumeFile) (roomID, playerID string, ok bool, err error) {
	resume, found, err := sessions.Load()
	if err != nil {
		return "", "", false, err
	}
	if !found {
		return "", "", false, nil
	}

	raw, err := store.Get(ctx, models.RoomKey(resume.RoomID))
	if err != nil {
		return "", "", false, err
	}
	r, err := models.DecodeRoom(raw)
	if err != nil {
		return "", "", false, err
	}
	if r == nil {
		staleResume(sessions, resume.RoomID)
		return "", "", false, nil
	}
	if _, present := r.Player(resume.PlayerID); !present {
		staleResume(sessions, resume.RoomID)
		return "", "", false, nil
	}
	return resume.RoomID, resume.PlayerID, true, nil
}

func staleResume(sessions *room.ResumeFile, roomID string) {
	log.Debug().Str("room_id", roomID).Msg("clearing stale session resume record")
	if err := sessions.Clear(); err != nil {
		log.Warn().Err(err).Msg("failed to clear session resume record")
	}
}
