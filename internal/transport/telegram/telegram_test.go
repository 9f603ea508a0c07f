package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/companion/internal/bot"
	"github.com/ashureev/companion/internal/dispatch"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	fileURL  string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

type fakeController struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeController) record(s string) bot.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, s)
	return bot.Reply{Text: "ok: " + s}
}

func (f *fakeController) HandleText(_ context.Context, userID, text string) bot.Reply {
	return f.record(userID + " text " + text)
}

func (f *fakeController) HandleCallback(_ context.Context, userID, data string) bot.Reply {
	return f.record(userID + " callback " + data)
}

func (f *fakeController) HandleVoice(_ context.Context, userID string, audio []byte) bot.Reply {
	return f.record(fmt.Sprintf("%s voice %q", userID, audio))
}

func (f *fakeController) HandleLocation(_ context.Context, userID string, lat, lon float64) bot.Reply {
	return f.record(fmt.Sprintf("%s location %.2f,%.2f", userID, lat, lon))
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeController, *dispatch.Dispatcher) {
	t.Helper()
	api := &fakeAPI{}
	ctrl := &fakeController{}
	d := dispatch.New(dispatch.Config{}, nil, nil)
	return NewWithAPI(api, Config{}, ctrl, d, nil), api, ctrl, d
}

func message(userID int64, chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{From: &tgbotapi.User{ID: userID}, Chat: &tgbotapi.Chat{ID: chatID}}
}

func TestDispatchText(t *testing.T) {
	t.Parallel()
	b, api, ctrl, d := newTestBot(t)

	for i := 0; i < 5; i++ {
		m := message(7, 99)
		m.Text = fmt.Sprintf("msg %d", i)
		b.Dispatch(tgbotapi.Update{Message: m})
	}
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, ctrl.events, 5)
	for i, ev := range ctrl.events {
		assert.Equal(t, fmt.Sprintf("tg:7 text msg %d", i), ev)
	}
	require.Len(t, api.sent, 5)
	assert.Equal(t, int64(99), api.sent[0].ChatID)
	assert.Equal(t, "ok: tg:7 text msg 0", api.sent[0].Text)

	var typing int
	for _, r := range api.requests {
		if a, ok := r.(tgbotapi.ChatActionConfig); ok && a.Action == tgbotapi.ChatTyping {
			typing++
		}
	}
	assert.Equal(t, 5, typing)
}

func TestDispatchCallbackAnswersQuery(t *testing.T) {
	t.Parallel()
	b, api, ctrl, d := newTestBot(t)

	b.Dispatch(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 8},
		Message: message(8, 100),
		Data:    "lang:de",
	}})
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, []string{"tg:8 callback lang:de"}, ctrl.events)
	require.NotEmpty(t, api.requests)
	cb, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-1", cb.CallbackQueryID)
	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(100), api.sent[0].ChatID)
}

func TestDispatchLocationAndVoice(t *testing.T) {
	t.Parallel()
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OggS"))
	}))
	defer files.Close()

	b, api, ctrl, d := newTestBot(t)
	api.fileURL = files.URL + "/voice.oga"

	loc := message(9, 9)
	loc.Location = &tgbotapi.Location{Latitude: 41.31, Longitude: 69.24}
	b.Dispatch(tgbotapi.Update{Message: loc})

	voice := message(9, 9)
	voice.Voice = &tgbotapi.Voice{FileID: "file-1"}
	b.Dispatch(tgbotapi.Update{Message: voice})
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, []string{"tg:9 location 41.31,69.24", `tg:9 voice "OggS"`}, ctrl.events)
}

func TestDispatchIgnoresUnsupportedUpdates(t *testing.T) {
	t.Parallel()
	b, api, ctrl, d := newTestBot(t)

	b.Dispatch(tgbotapi.Update{})
	b.Dispatch(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "channel post"}})
	b.Dispatch(tgbotapi.Update{Message: message(1, 1)})
	b.Dispatch(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "x", From: &tgbotapi.User{ID: 1}}})
	require.NoError(t, d.Close(context.Background()))

	assert.Empty(t, ctrl.events)
	assert.Empty(t, api.sent)
}

func TestWebhookHandler(t *testing.T) {
	t.Parallel()
	b, _, ctrl, d := newTestBot(t)
	h := b.WebhookHandler()

	rec := httptest.NewRecorder()
	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":5,"is_bot":false,"first_name":"A"},"chat":{"id":5,"type":"private"},"date":0,"text":"/start"}}`
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"tg:5 text /start"}, ctrl.events)
}

func TestRender(t *testing.T) {
	t.Parallel()

	msg := render(1, bot.Reply{Text: "plain"})
	assert.Nil(t, msg.ReplyMarkup)

	msg = render(1, bot.Reply{Text: "menu", Keyboard: &bot.Keyboard{
		Kind: bot.KeyboardReply,
		Rows: [][]bot.Button{
			{{Text: "📍 Send my location", RequestLocation: true}},
			{{Text: "🏠 Main menu"}},
		},
	}})
	reply, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, reply.ResizeKeyboard)
	require.Len(t, reply.Keyboard, 2)
	assert.True(t, reply.Keyboard[0][0].RequestLocation)
	assert.Equal(t, "🏠 Main menu", reply.Keyboard[1][0].Text)

	msg = render(1, bot.Reply{Text: "pick", Keyboard: &bot.Keyboard{
		Kind: bot.KeyboardInline,
		Rows: [][]bot.Button{{{Text: "Deutsch", Data: "lang:de"}, {Text: "English", Data: "lang:en"}}},
	}})
	inline, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, inline.InlineKeyboard[0], 2)
	require.NotNil(t, inline.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "lang:de", *inline.InlineKeyboard[0][0].CallbackData)

	msg = render(1, bot.Reply{Text: "bye", Keyboard: &bot.Keyboard{Kind: bot.KeyboardRemove}})
	_, ok = msg.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
	assert.True(t, ok)

	msg = render(1, bot.Reply{Text: "empty", Keyboard: &bot.Keyboard{Kind: bot.KeyboardInline}})
	assert.Nil(t, msg.ReplyMarkup)

	long := strings.Repeat("é", maxMessageRunes+10)
	assert.Len(t, []rune(render(1, bot.Reply{Text: long}).Text), maxMessageRunes)
}
