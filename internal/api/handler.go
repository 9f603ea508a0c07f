// Package api provides the HTTP surface of the companion service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/companion/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	store store.Store
	dev   bool
}

// NewHandler creates a Handler. Session inspection is only served when dev is true.
func NewHandler(s store.Store, dev bool) *Handler {
	return &Handler{store: s, dev: dev}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
