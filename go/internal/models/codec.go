package models

import (
	"encoding/json"
	"fmt"
)

// DecodeRoom unmarshals a room snapshot from the store. A nil snapshot or
// JSON null (absent path) decodes to nil without error.
func DecodeRoom(raw json.RawMessage) (*Room, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var room Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if room.Players == nil {
		room.Players = make(map[string]PlayerRecord)
	}
	return &room, nil
}
