package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSPAHandlerFallsBackToIndex(t *testing.T) {
	t.Parallel()
	h := SPAHandler()

	for _, path := range []string{"/", "/chat/history"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "/ws/chat", path)
	}
}
