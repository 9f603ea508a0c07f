package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/ashureev/companion/internal/bot"
	"github.com/ashureev/companion/internal/dispatch"
	"github.com/ashureev/companion/internal/identity"
)

// Inbound frame types.
const (
	FrameText     = "text"
	FrameCallback = "callback"
	FrameLocation = "location"
	FrameVoice    = "voice"
	FramePing     = "ping"
)

// Outbound frame types.
const (
	FrameReply = "reply"
	FramePong  = "pong"
	FrameError = "error"
)

// maxFrameBytes bounds inbound frames; voice notes arrive base64 encoded.
const maxFrameBytes = 8 << 20

// inbound is a client frame. Audio is base64 in JSON.
type inbound struct {
	ID    string  `json:"id,omitempty"`
	Type  string  `json:"type"`
	Text  string  `json:"text,omitempty"`
	Data  string  `json:"data,omitempty"`
	Lat   float64 `json:"lat,omitempty"`
	Lon   float64 `json:"lon,omitempty"`
	Audio []byte  `json:"audio,omitempty"`
}

// outbound is a server frame.
type outbound struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	InReplyTo string        `json:"in_reply_to,omitempty"`
	Text      string        `json:"text,omitempty"`
	Keyboard  *bot.Keyboard `json:"keyboard,omitempty"`
}

// Controller is the subset of *bot.Controller the web chat drives.
type Controller interface {
	HandleText(ctx context.Context, userID, text string) bot.Reply
	HandleCallback(ctx context.Context, userID, data string) bot.Reply
	HandleVoice(ctx context.Context, userID string, audio []byte) bot.Reply
	HandleLocation(ctx context.Context, userID string, lat, lon float64) bot.Reply
}

// Dispatcher runs jobs in per-user order.
type Dispatcher interface {
	Submit(userID string, job dispatch.Job) error
}

// Handler upgrades /ws/chat requests and relays frames.
type Handler struct {
	controller    Controller
	dispatcher    Dispatcher
	sm            *SessionManager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a web chat handler.
func NewHandler(c Controller, d Dispatcher, sm *SessionManager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		controller:    c,
		dispatcher:    d,
		sm:            sm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(maxFrameBytes)

	connID := uuid.NewString()
	h.sm.Register(userID, connID, ws)
	defer h.sm.Unregister(userID, connID, ws)

	h.readLoop(r.Context(), ws, userID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(ctx, ws, outbound{Type: FrameError, Text: "malformed frame"})
			continue
		}

		if msg.Type == FramePing {
			h.reply(ctx, ws, outbound{Type: FramePong, InReplyTo: msg.ID})
			continue
		}

		job := h.job(userID, msg)
		if job == nil {
			h.reply(ctx, ws, outbound{Type: FrameError, InReplyTo: msg.ID, Text: "unknown frame type"})
			continue
		}
		if err := h.dispatcher.Submit(userID, job); err != nil {
			slog.Warn("Web chat event not dispatched", "user_id", userID, "error", err)
			h.reply(ctx, ws, outbound{Type: FrameError, InReplyTo: msg.ID, Text: "busy, try again"})
		}
	}
}

// job turns a frame into a dispatched controller call whose reply goes to
// every open tab of the user.
func (h *Handler) job(userID string, msg inbound) dispatch.Job {
	var handle func(ctx context.Context) bot.Reply
	switch msg.Type {
	case FrameText:
		handle = func(ctx context.Context) bot.Reply { return h.controller.HandleText(ctx, userID, msg.Text) }
	case FrameCallback:
		handle = func(ctx context.Context) bot.Reply { return h.controller.HandleCallback(ctx, userID, msg.Data) }
	case FrameLocation:
		handle = func(ctx context.Context) bot.Reply { return h.controller.HandleLocation(ctx, userID, msg.Lat, msg.Lon) }
	case FrameVoice:
		handle = func(ctx context.Context) bot.Reply { return h.controller.HandleVoice(ctx, userID, msg.Audio) }
	default:
		return nil
	}

	return func(ctx context.Context) {
		reply := handle(ctx)
		frame := outbound{
			ID:        uuid.NewString(),
			Type:      FrameReply,
			InReplyTo: msg.ID,
			Text:      reply.Text,
			Keyboard:  reply.Keyboard,
		}
		if h.sm.Broadcast(ctx, userID, frame) == 0 {
			slog.Debug("Reply dropped, no open connection", "user_id", userID)
		}
	}
}

func (h *Handler) reply(ctx context.Context, ws *websocket.Conn, frame outbound) {
	frame.ID = uuid.NewString()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, ws, frame); err != nil {
		slog.Debug("Failed to write frame", "type", frame.Type, "error", err)
	}
}
