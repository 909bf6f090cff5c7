package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/suslab/spyroom/go/internal/room"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// InviteHandler renders join links and QR codes for room invites.
type InviteHandler struct {
	// baseURL is the public join page, e.g. https://play.example.com/join.
	baseURL string
}

// NewInviteHandler creates an invite handler pointing at the public join
// page.
func NewInviteHandler(baseURL string) *InviteHandler {
	return &InviteHandler{baseURL: baseURL}
}

// JoinURL builds the join link for a room code.
func (h *InviteHandler) JoinURL(code string) string {
	return fmt.Sprintf("%s?room=%s", h.baseURL, url.QueryEscape(code))
}

// HandleInviteQR serves a PNG QR code encoding the join link for the
// room named by the "room" query parameter.
func (h *InviteHandler) HandleInviteQR(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeCode(r.URL.Query().Get("room"))
	if !room.ValidCode(code) {
		http.Error(w, "valid room code is required", http.StatusBadRequest)
		return
	}

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > maxQRSize {
			http.Error(w, "size must be between 64 and 1024", http.StatusBadRequest)
			return
		}
		size = n
	}

	png, err := qrcode.Encode(h.JoinURL(code), qrcode.Medium, size)
	if err != nil {
		log.Error().Err(err).Str("room_id", code).Msg("failed to encode invite QR")
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

// RegisterRoutes registers invite routes with an HTTP mux.
func (h *InviteHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/invite/qr", h.HandleInviteQR)
}
