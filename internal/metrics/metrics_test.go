package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Event("text", time.Millisecond)
		m.Transition("MAIN_MENU", "TASK_INPUT")
		m.Collaborator("ai", nil)
		m.WorkerStarted()
		m.WorkerStopped()
		m.Rejected()
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestCounters(t *testing.T) {
	t.Parallel()
	m := New()

	m.Collaborator("ai", nil)
	m.Collaborator("ai", errors.New("down"))
	m.Collaborator("ai", errors.New("down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collaborators.WithLabelValues("ai", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.collaborators.WithLabelValues("ai", "error")))

	m.Transition("MAIN_MENU", "MAIN_MENU")
	m.Transition("MAIN_MENU", "TASK_INPUT")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("MAIN_MENU", "TASK_INPUT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.transitions.WithLabelValues("MAIN_MENU", "MAIN_MENU")))

	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerStopped()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workers))
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()
	m := New()
	m.Event("text", 10*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `companion_events_total{kind="text"} 1`)
	assert.Contains(t, string(body), "companion_event_duration_seconds_bucket")
}
