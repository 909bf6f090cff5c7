package models

// Store path builders. Every component addresses the shared state store
// through these so the room layout is defined in exactly one place.

const roomsRoot = "rooms"

// RoomKey is the path of a room document.
func RoomKey(roomID string) string {
	return roomsRoot + "/" + roomID
}

// RoomsKey is the path of the root holding every room.
func RoomsKey() string {
	return roomsRoot
}

// PlayerKey is the path of a player record inside a room.
func PlayerKey(roomID, playerID string) string {
	return RoomKey(roomID) + "/players/" + playerID
}

// PlayerIdentityKey is the path of a player's stable identity.
func PlayerIdentityKey(roomID, playerID string) string {
	return PlayerKey(roomID, playerID) + "/identity"
}

// PlayerRoundStateKey is the path of a player's per-round state.
func PlayerRoundStateKey(roomID, playerID string) string {
	return PlayerKey(roomID, playerID) + "/round_state"
}

// ConnectionStatusKey is the path of a player's liveness flag. This is the
// path disconnect hooks write to.
func ConnectionStatusKey(roomID, playerID string) string {
	return PlayerRoundStateKey(roomID, playerID) + "/connection_status"
}

// ChatKey is the path of a room's chat list.
func ChatKey(roomID string) string {
	return RoomKey(roomID) + "/chat"
}
