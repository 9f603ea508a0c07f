package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/companion/internal/bot"
	"github.com/ashureev/companion/internal/dispatch"
)

type recordingConversation struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingConversation) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recordingConversation) HandleText(_ context.Context, userID, text string) bot.Reply {
	r.record(userID + " text " + text)
	return bot.Reply{
		Text: "echo: " + text,
		Keyboard: &bot.Keyboard{Kind: bot.KeyboardReply, Rows: [][]bot.Button{
			{{Text: "Translate"}, {Text: "Send location", RequestLocation: true}},
		}},
	}
}

func (r *recordingConversation) HandleCallback(_ context.Context, userID, data string) bot.Reply {
	r.record(userID + " callback " + data)
	return bot.Reply{
		Text: "picked " + data,
		Keyboard: &bot.Keyboard{Kind: bot.KeyboardInline, Rows: [][]bot.Button{
			{{Text: "Done", Data: "task:done:0"}},
		}},
	}
}

func (r *recordingConversation) HandleLocation(_ context.Context, userID string, lat, lon float64) bot.Reply {
	r.record(fmt.Sprintf("%s location %.2f %.2f", userID, lat, lon))
	return bot.Reply{Text: "located"}
}

func newConsoleDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	d := dispatch.New(dispatch.Config{}, nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d
}

func TestRunConsole(t *testing.T) {
	conv := &recordingConversation{}
	in := strings.NewReader("hello\n\n:cb lang:de\n:loc 52.52 13.40\n:loc nowhere\n:quit\nignored\n")
	var out bytes.Buffer

	err := runConsole(context.Background(), conv, newConsoleDispatcher(t), in, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"console text hello",
		"console callback lang:de",
		"console location 52.52 13.40",
	}, conv.events)

	got := out.String()
	assert.Contains(t, got, "echo: hello")
	assert.Contains(t, got, "[Translate] [Send location] (:loc <lat> <lon>)")
	assert.Contains(t, got, "picked lang:de")
	assert.Contains(t, got, "[Done] (:cb task:done:0)")
	assert.Contains(t, got, "located")
	assert.Contains(t, got, "usage: :loc <lat> <lon>")
	assert.NotContains(t, got, "ignored")
}

func TestRunConsoleEndOfInput(t *testing.T) {
	conv := &recordingConversation{}
	var out bytes.Buffer

	err := runConsole(context.Background(), conv, newConsoleDispatcher(t), strings.NewReader(":help\nhi"), &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"console text hi"}, conv.events)
	assert.Equal(t, 2, strings.Count(out.String(), ":quit"))
}

func TestRunConsoleStopsOnCancel(t *testing.T) {
	conv := &recordingConversation{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runConsole(ctx, conv, newConsoleDispatcher(t), strings.NewReader("hello\n"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, conv.events)
}

func TestRunConsoleClosedDispatcher(t *testing.T) {
	d := dispatch.New(dispatch.Config{}, nil, nil)
	require.NoError(t, d.Close(context.Background()))

	err := runConsole(context.Background(), &recordingConversation{}, d, strings.NewReader("hello\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, dispatch.ErrClosed)
}

func TestParseLatLon(t *testing.T) {
	lat, lon, err := parseLatLon(" -33.86  151.21 ")
	require.NoError(t, err)
	assert.InDelta(t, -33.86, lat, 1e-9)
	assert.InDelta(t, 151.21, lon, 1e-9)

	for _, bad := range []string{"", "1", "1 2 3", "x 2", "1 y"} {
		_, _, err := parseLatLon(bad)
		assert.Error(t, err, bad)
	}
}
