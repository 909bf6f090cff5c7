package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/models"
	"github.com/suslab/spyroom/go/internal/statestore"
)

func newTestService(t *testing.T) (*Service, statestore.Store) {
	t.Helper()
	client := statestore.NewMemoryBackend().Connect("chat-test")
	svc := NewService(client, events.NopPublisher{})
	svc.clock = func() time.Time { return time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC) }
	nextID := 0
	svc.newID = func() string {
		nextID++
		return fmt.Sprintf("msg-%d", nextID)
	}
	return svc, client
}

func seedRoom(t *testing.T, store statestore.Store, r models.Room) {
	t.Helper()
	if err := store.Set(context.Background(), models.RoomKey(r.RoomID), r); err != nil {
		t.Fatalf("seed room: %v", err)
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
	if r == nil {
		t.Fatalf("room %s missing", roomID)
	}
	return r
}

func roomWithSender() models.Room {
	return models.Room{
		RoomID: "ROOM01",
		HostID: "p1",
		Players: map[string]models.PlayerRecord{
			"p1": {
				Identity:   models.PlayerIdentity{PlayerID: "p1", DisplayName: "Ada", Avatar: "cat"},
				RoundState: models.PlayerRoundState{IsHost: true, ConnectionStatus: models.StatusConnected},
			},
		},
	}
}

func TestSendDenormalizesSender(t *testing.T) {
	svc, store := newTestService(t)
	seedRoom(t, store, roomWithSender())

	msgID, err := svc.Send(context.Background(), "ROOM01", "p1", "  hello there  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msgID != "msg-1" {
		t.Fatalf("msgID = %q, want msg-1", msgID)
	}

	r := getRoom(t, store, "ROOM01")
	if len(r.Chat) != 1 {
		t.Fatalf("chat has %d messages, want 1", len(r.Chat))
	}
	msg := r.Chat[0]
	if msg.Text != "hello there" {
		t.Fatalf("text = %q, want trimmed %q", msg.Text, "hello there")
	}
	if msg.SenderName != "Ada" || msg.SenderAvatar != "cat" {
		t.Fatalf("sender = %q/%q, want Ada/cat", msg.SenderName, msg.SenderAvatar)
	}
	if msg.ReadStatus {
		t.Fatal("new message already marked read")
	}
	if !r.LastActivity.Equal(msg.Timestamp) {
		t.Fatalf("LastActivity = %v, want bumped to %v", r.LastActivity, msg.Timestamp)
	}
}

func TestSendTruncatesLongMessage(t *testing.T) {
	svc, store := newTestService(t)
	seedRoom(t, store, roomWithSender())

	if _, err := svc.Send(context.Background(), "ROOM01", "p1", strings.Repeat("x", MaxMessageLength+50)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	r := getRoom(t, store, "ROOM01")
	if got := len(r.Chat[0].Text); got != MaxMessageLength {
		t.Fatalf("stored length = %d, want %d", got, MaxMessageLength)
	}
}

func TestSendTruncationKeepsValidUTF8(t *testing.T) {
	svc, store := newTestService(t)
	seedRoom(t, store, roomWithSender())

	// Three-byte runes do not divide the cap evenly, so a byte-index cut
	// would land inside a character.
	long := strings.Repeat("語", MaxMessageLength)
	if _, err := svc.Send(context.Background(), "ROOM01", "p1", long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	r := getRoom(t, store, "ROOM01")
	got := r.Chat[0].Text
	if len(got) > MaxMessageLength {
		t.Fatalf("stored length = %d, want <= %d", len(got), MaxMessageLength)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncated message is not valid UTF-8")
	}
	if !strings.HasPrefix(long, got) {
		t.Fatal("truncated message must be a prefix of the original")
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	svc, store := newTestService(t)
	seedRoom(t, store, roomWithSender())

	if _, err := svc.Send(context.Background(), "ROOM01", "p1", "   "); err == nil {
		t.Fatal("Send accepted a blank message")
	}
}

func TestSendFromUnknownSender(t *testing.T) {
	svc, store := newTestService(t)
	seedRoom(t, store, roomWithSender())

	_, err := svc.Send(context.Background(), "ROOM01", "ghost", "hi")
	if !errors.Is(err, ErrSenderGone) {
		t.Fatalf("err = %v, want ErrSenderGone", err)
	}
	if r := getRoom(t, store, "ROOM01"); len(r.Chat) != 0 {
		t.Fatalf("chat has %d messages, want none", len(r.Chat))
	}
}

func TestSendToMissingRoom(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Send(context.Background(), "ZZZZZ2", "p1", "hi")
	if !errors.Is(err, ErrSenderGone) {
		t.Fatalf("err = %v, want ErrSenderGone", err)
	}
}

func TestMarkRead(t *testing.T) {
	svc, store := newTestService(t)
	seedRoom(t, store, roomWithSender())

	first, err := svc.Send(context.Background(), "ROOM01", "p1", "one")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	second, err := svc.Send(context.Background(), "ROOM01", "p1", "two")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := svc.MarkRead(context.Background(), "ROOM01", first); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	r := getRoom(t, store, "ROOM01")
	if !r.Chat[0].ReadStatus {
		t.Fatalf("message %s not marked read", first)
	}
	if r.Chat[1].ReadStatus {
		t.Fatalf("message %s marked read without being asked", second)
	}

	// Duplicate and unknown ids are no-ops.
	if err := svc.MarkRead(context.Background(), "ROOM01", first, "missing"); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
	if err := svc.MarkRead(context.Background(), "ROOM01"); err != nil {
		t.Fatalf("empty MarkRead: %v", err)
	}
}

func TestMarkReadMissingRoom(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.MarkRead(context.Background(), "ZZZZZ2", "msg-1"); err != nil {
		t.Fatalf("MarkRead on missing room: %v", err)
	}
}
