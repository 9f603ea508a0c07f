package webchat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/companion/internal/bot"
	"github.com/ashureev/companion/internal/dispatch"
	"github.com/ashureev/companion/internal/identity"
)

type echoController struct{}

func (echoController) HandleText(_ context.Context, userID, text string) bot.Reply {
	return bot.Reply{Text: userID + " said " + text, Keyboard: &bot.Keyboard{Kind: bot.KeyboardRemove}}
}

func (echoController) HandleCallback(_ context.Context, _, data string) bot.Reply {
	return bot.Reply{Text: "pressed " + data}
}

func (echoController) HandleVoice(_ context.Context, _ string, audio []byte) bot.Reply {
	return bot.Reply{Text: fmt.Sprintf("heard %d bytes", len(audio))}
}

func (echoController) HandleLocation(_ context.Context, _ string, lat, lon float64) bot.Reply {
	return bot.Reply{Text: fmt.Sprintf("at %.1f,%.1f", lat, lon)}
}

type frame struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	InReplyTo string        `json:"in_reply_to"`
	Text      string        `json:"text"`
	Keyboard  *bot.Keyboard `json:"keyboard"`
}

func newServer(t *testing.T, userID string) (*httptest.Server, *SessionManager) {
	t.Helper()
	d := dispatch.New(dispatch.Config{}, nil, nil)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	sm := NewSessionManager()
	h := NewHandler(echoController{}, d, sm, "", false)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != "" {
			r = r.WithContext(identity.WithUserID(r.Context(), userID))
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, sm
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, in any) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, in))
	var out frame
	require.NoError(t, wsjson.Read(ctx, conn, &out))
	return out
}

func TestChatFrames(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, "web:anon_1")
	conn := dial(t, srv)

	out := exchange(t, conn, map[string]any{"id": "c1", "type": "text", "text": "hello"})
	assert.Equal(t, FrameReply, out.Type)
	assert.Equal(t, "c1", out.InReplyTo)
	assert.Equal(t, "web:anon_1 said hello", out.Text)
	assert.NotEmpty(t, out.ID)
	require.NotNil(t, out.Keyboard)
	assert.Equal(t, bot.KeyboardRemove, out.Keyboard.Kind)

	out = exchange(t, conn, map[string]any{"type": "callback", "data": "lang:de"})
	assert.Equal(t, "pressed lang:de", out.Text)

	out = exchange(t, conn, map[string]any{"type": "location", "lat": 41.3, "lon": 69.2})
	assert.Equal(t, "at 41.3,69.2", out.Text)

	out = exchange(t, conn, map[string]any{"type": "voice", "audio": []byte("OggS")})
	assert.Equal(t, "heard 4 bytes", out.Text)
}

func TestControlFrames(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, "web:anon_2")
	conn := dial(t, srv)

	out := exchange(t, conn, map[string]any{"id": "p", "type": "ping"})
	assert.Equal(t, FramePong, out.Type)
	assert.Equal(t, "p", out.InReplyTo)

	out = exchange(t, conn, map[string]any{"type": "sticker"})
	assert.Equal(t, FrameError, out.Type)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	var bad frame
	require.NoError(t, wsjson.Read(ctx, conn, &bad))
	assert.Equal(t, FrameError, bad.Type)
	assert.Equal(t, "malformed frame", bad.Text)
}

func TestReplyReachesEveryTab(t *testing.T) {
	t.Parallel()
	srv, sm := newServer(t, "web:anon_3")
	first := dial(t, srv)
	second := dial(t, srv)
	require.Eventually(t, func() bool { return sm.Connections("web:anon_3") == 2 }, 2*time.Second, 5*time.Millisecond)

	out := exchange(t, first, map[string]any{"type": "text", "text": "hi"})
	assert.Equal(t, "web:anon_3 said hi", out.Text)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var mirrored frame
	require.NoError(t, wsjson.Read(ctx, second, &mirrored))
	assert.Equal(t, out.ID, mirrored.ID)
}

func TestUnregisterOnDisconnect(t *testing.T) {
	t.Parallel()
	srv, sm := newServer(t, "web:anon_4")
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return sm.Connections("web:anon_4") == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return sm.Connections("web:anon_4") == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestRejectsMissingIdentity(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, "")
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()
	h := NewHandler(nil, nil, NewSessionManager(), "https://chat.example", false)

	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	req.Header.Set("Origin", "https://chat.example")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))

	h.isDev = true
	assert.True(t, h.checkOrigin(req))
}
