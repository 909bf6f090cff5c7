package room

import "errors"

var (
	// ErrRoomNotFound reports a join against a missing (or ghost) room.
	ErrRoomNotFound = errors.New("room: not found")

	// ErrNameTaken reports a display name collision with another identity
	// in the room.
	ErrNameTaken = errors.New("room: display name taken")

	// ErrGameAlreadyStarted reports a new join after the room left SETUP.
	ErrGameAlreadyStarted = errors.New("room: game already started")

	// ErrRoomFull reports a join against a room at the player cap.
	ErrRoomFull = errors.New("room: full")

	// ErrNotHost reports a host-only room operation from a non-host.
	ErrNotHost = errors.New("room: player is not host")
)
