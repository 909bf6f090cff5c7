package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJoinURL(t *testing.T) {
	h := NewInviteHandler("https://play.example.com/join")
	if got, want := h.JoinURL("ABCD23"), "https://play.example.com/join?room=ABCD23"; got != want {
		t.Fatalf("JoinURL = %q, want %q", got, want)
	}
}

func TestHandleInviteQR(t *testing.T) {
	h := NewInviteHandler("http://localhost:3000/join")

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "valid code", target: "/invite/qr?room=ABCD23", wantStatus: http.StatusOK},
		{name: "lowercase normalized", target: "/invite/qr?room=abcd23", wantStatus: http.StatusOK},
		{name: "custom size", target: "/invite/qr?room=ABCD23&size=512", wantStatus: http.StatusOK},
		{name: "missing code", target: "/invite/qr", wantStatus: http.StatusBadRequest},
		{name: "invalid code", target: "/invite/qr?room=O0O0O0", wantStatus: http.StatusBadRequest},
		{name: "size too small", target: "/invite/qr?room=ABCD23&size=16", wantStatus: http.StatusBadRequest},
		{name: "size not a number", target: "/invite/qr?room=ABCD23&size=big", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleInviteQR(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
					t.Fatalf("Content-Type = %q, want image/png", ct)
				}
				if rec.Body.Len() == 0 {
					t.Fatal("empty PNG body")
				}
			}
		})
	}
}

func TestHandleConnectionStatsEmpty(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	h := NewWebSocketHandler(cm, nil)

	rec := httptest.NewRecorder()
	h.HandleConnectionStats(rec, httptest.NewRequest(http.MethodGet, "/ws/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalConnections != 0 || stats.ActiveRooms != 0 {
		t.Fatalf("stats = %+v, want empty", stats)
	}
}

func TestHandleRoomConnectionRejectsBadCode(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	h := NewWebSocketHandler(cm, nil)

	rec := httptest.NewRecorder()
	h.HandleRoomConnection(rec, httptest.NewRequest(http.MethodGet, "/ws/room?room=nope", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for invalid room code", rec.Code)
	}
}
