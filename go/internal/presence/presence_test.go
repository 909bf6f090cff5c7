package presence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

func fixedClock() time.Time {
	return time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC)
}

func seedRoom(t *testing.T, store statestore.Store, r models.Room) {
	t.Helper()
	if err := store.Set(context.Background(), models.RoomKey(r.RoomID), r); err != nil {
		t.Fatalf("seed room: %v", err)
	}
}

func record(id string, joinOrder int, status models.ConnectionStatus, isHost, isBot bool) models.PlayerRecord {
	return models.PlayerRecord{
		Identity: models.PlayerIdentity{PlayerID: id, DisplayName: id, IsBot: isBot},
		RoundState: models.PlayerRoundState{
			ConnectionStatus: status,
			IsHost:           isHost,
			JoinOrder:        joinOrder,
		},
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
	return r
}

func TestAnnounceSetsConnectedAndArmsHook(t *testing.T) {
	backend := statestore.NewMemoryBackend()
	client := backend.Connect("player-1")
	tracker := NewTracker(client, events.NopPublisher{}, fixedClock)

	seedRoom(t, client, models.Room{
		RoomID: "ROOM01",
		HostID: "p1",
		Players: map[string]models.PlayerRecord{
			"p1": record("p1", 0, models.StatusDisconnected, true, false),
		},
	})

	hook, err := tracker.Announce(context.Background(), "ROOM01", "p1")
	if err != nil {
		t.Fatalf("Announce: %v", err)
	}
	defer hook.Cancel()

	raw, err := client.Get(context.Background(), models.ConnectionStatusKey("ROOM01", "p1"))
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	var status models.ConnectionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status != models.StatusConnected {
		t.Fatalf("status = %q, want %q", status, models.StatusConnected)
	}
}

func TestDisconnectHookFlipsStatusOnClose(t *testing.T) {
	backend := statestore.NewMemoryBackend()
	playerClient := backend.Connect("player-1")
	observer := backend.Connect("observer")
	tracker := NewTracker(playerClient, events.NopPublisher{}, fixedClock)

	seedRoom(t, observer, models.Room{
		RoomID: "ROOM01",
		HostID: "p1",
		Players: map[string]models.PlayerRecord{
			"p1": record("p1", 0, models.StatusDisconnected, true, false),
		},
	})

	if _, err := tracker.Announce(context.Background(), "ROOM01", "p1"); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	// Simulated transport loss: the client goes away without a clean leave.
	if err := playerClient.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := getRoom(t, observer, "ROOM01")
	if got := r.Players["p1"].RoundState.ConnectionStatus; got != models.StatusDisconnected {
		t.Fatalf("status after close = %q, want %q", got, models.StatusDisconnected)
	}
}

func TestAnnounceAgainAfterCancelRearms(t *testing.T) {
	backend := statestore.NewMemoryBackend()
	playerClient := backend.Connect("player-1")
	observer := backend.Connect("observer")
	tracker := NewTracker(playerClient, events.NopPublisher{}, fixedClock)

	seedRoom(t, observer, models.Room{
		RoomID: "ROOM01",
		HostID: "p1",
		Players: map[string]models.PlayerRecord{
			"p1": record("p1", 0, models.StatusDisconnected, true, false),
		},
	})

	hook, err := tracker.Announce(context.Background(), "ROOM01", "p1")
	if err != nil {
		t.Fatalf("first Announce: %v", err)
	}
	if err := hook.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := tracker.Announce(context.Background(), "ROOM01", "p1"); err != nil {
		t.Fatalf("second Announce: %v", err)
	}

	if err := playerClient.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	r := getRoom(t, observer, "ROOM01")
	if got := r.Players["p1"].RoundState.ConnectionStatus; got != models.StatusDisconnected {
		t.Fatalf("status after close = %q, want %q", got, models.StatusDisconnected)
	}
}

func TestMigrateHostPromotesEarliestConnectedHuman(t *testing.T) {
	backend := statestore.NewMemoryBackend()
	client := backend.Connect("migrator")
	tracker := NewTracker(client, events.NopPublisher{}, fixedClock)

	seedRoom(t, client, models.Room{
		RoomID: "ROOM01",
		HostID: "p1",
		Players: map[string]models.PlayerRecord{
			"p1": record("p1", 0, models.StatusDisconnected, true, false),
			"p2": record("p2", 1, models.StatusDisconnected, false, false),
			"b1": record("b1", 2, models.StatusConnected, false, true),
			"p3": record("p3", 3, models.StatusConnected, false, false),
			"p4": record("p4", 4, models.StatusConnected, false, false),
		},
	})

	newHostID, migrated, err := tracker.MigrateHost(context.Background(), "ROOM01")
	if err != nil {
		t.Fatalf("MigrateHost: %v", err)
	}
	if !migrated {
		t.Fatal("migrated = false, want true")
	}
	if newHostID != "p3" {
		t.Fatalf("newHostID = %q, want %q", newHostID, "p3")
	}

	r := getRoom(t, client, "ROOM01")
	if r.HostID != "p3" {
		t.Fatalf("HostID = %q, want %q", r.HostID, "p3")
	}
	if r.Players["p1"].RoundState.IsHost {
		t.Fatal("old host still flagged IsHost")
	}
	if !r.Players["p3"].RoundState.IsHost {
		t.Fatal("new host not flagged IsHost")
	}
	if !r.LastActivity.Equal(fixedClock()) {
		t.Fatalf("LastActivity = %v, want %v", r.LastActivity, fixedClock())
	}
}

func TestMigrateHostAbortsWhenHostConnected(t *testing.T) {
	backend := statestore.NewMemoryBackend()
	client := backend.Connect("migrator")
	tracker := NewTracker(client, events.NopPublisher{}, fixedClock)

	seedRoom(t, client, models.Room{
		RoomID: "ROOM01",
		HostID: "p1",
		Players: map[string]models.PlayerRecord{
			"p1": record("p1", 0, models.StatusConnected, true, false),
			"p2": record("p2", 1, models.StatusConnected, false, false),
		},
	})

	newHostID, migrated, err := tracker.MigrateHost(context.Background(), "ROOM01")
	if err != nil {
		t.Fatalf("MigrateHost: %v", err)
	}
	if migrated || newHostID != "" {
		t.Fatalf("got (%q, %v), want no migration", newHostID, migrated)
	}

	r := getRoom(t, client, "ROOM01")
	if r.HostID != "p1" {
		t.Fatalf("HostID = %q, want unchanged %q", r.HostID, "p1")
	}
}

func TestMigrateHostAbortsWithoutCandidate(t *testing.T) {
	backend := statestore.NewMemoryBackend()
	client := backend.Connect("migrator")
	tracker := NewTracker(client, events.NopPublisher{}, fixedClock)

	seedRoom(t, client, models.Room{
		RoomID: "ROOM01",
		HostID: "p1",
		Players: map[string]models.PlayerRecord{
			"p1": record("p1", 0, models.StatusDisconnected, true, false),
			"b1": record("b1", 1, models.StatusConnected, false, true),
		},
	})

	_, migrated, err := tracker.MigrateHost(context.Background(), "ROOM01")
	if err != nil {
		t.Fatalf("MigrateHost: %v", err)
	}
	if migrated {
		t.Fatal("migrated = true, want false with only a bot connected")
	}
}

func TestMigrateHostMissingRoom(t *testing.T) {
	backend := statestore.NewMemoryBackend()
	client := backend.Connect("migrator")
	tracker := NewTracker(client, events.NopPublisher{}, fixedClock)

	_, migrated, err := tracker.MigrateHost(context.Background(), "ZZZZZ2")
	if err != nil {
		t.Fatalf("MigrateHost: %v", err)
	}
	if migrated {
		t.Fatal("migrated = true for a room that does not exist")
	}
}
