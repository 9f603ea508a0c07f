package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/companion/internal/domain"
	"github.com/ashureev/companion/internal/metrics"
	"github.com/ashureev/companion/internal/store"
)

type downStore struct{ store.Store }

func (downStore) Ping(context.Context) error { return errors.New("disk I/O error") }

func TestJSON(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "bar", got["foo"])
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := store.NewMemory()
	_, err := s.GetOrCreate(context.Background(), "tg:1")
	require.NoError(t, err)

	rec, body := get(t, NewRouter(NewHandler(s, false), "", Routes{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["sessions"])

	rec, body = get(t, NewRouter(NewHandler(downStore{s}, false), "", Routes{}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestHeartbeatAndMetrics(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	m.Event("text", 0)
	r := NewRouter(NewHandler(store.NewMemory(), false), "", Routes{Metrics: m.Handler()})

	rec, _ := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `companion_events_total{kind="text"} 1`)
}

func TestGetSession(t *testing.T) {
	t.Parallel()
	s := store.NewMemory()
	require.NoError(t, s.Update(context.Background(), "tg:42", func(sess *domain.Session) error {
		sess.Profile = &domain.Profile{
			Gender: domain.GenderMale, WeightKg: 70, HeightCm: 175, Age: 30,
			ActivityLevel: domain.ActivityModerate, Goal: domain.GoalMaintain,
		}
		sess.AddTask("walk")
		return nil
	}))

	dev := NewRouter(NewHandler(s, true), "", Routes{})
	rec, body := get(t, dev, "/api/sessions/tg:42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tg:42", body["user_id"])
	assert.Equal(t, "MAIN_MENU", body["stage"])
	assert.Equal(t, 22.86, body["bmi"])
	assert.Equal(t, "normal", body["bmi_category"])
	assert.EqualValues(t, 2555, body["daily_calories"])
	assert.Equal(t, []any{"walk"}, body["daily_tasks"])

	rec, _ = get(t, dev, "/api/sessions/tg:missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	prod := NewRouter(NewHandler(s, false), "", Routes{})
	rec, _ = get(t, prod, "/api/sessions/tg:42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMeUsesCookieIdentity(t *testing.T) {
	t.Parallel()
	r := NewRouter(NewHandler(store.NewMemory(), true), "", Routes{})

	rec, _ := get(t, r, "/api/me")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestOptionalRoutes(t *testing.T) {
	t.Parallel()
	hit := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(name))
		})
	}
	r := NewRouter(NewHandler(store.NewMemory(), false), "", Routes{
		Webhook:  hit("webhook"),
		WebChat:  hit("ws"),
		Frontend: hit("spa"),
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, WebhookPath, nil))
	assert.Equal(t, "webhook", rec.Body.String())

	rec, _ = get(t, r, "/ws/chat")
	assert.Equal(t, "ws", rec.Body.String())

	rec, _ = get(t, r, "/some/client/route")
	assert.Equal(t, "spa", rec.Body.String())

	rec, _ = get(t, NewRouter(NewHandler(store.NewMemory(), false), "", Routes{}), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
