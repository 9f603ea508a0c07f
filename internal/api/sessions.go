package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/companion/internal/domain"
	"github.com/ashureev/companion/internal/identity"
)

// sessionView is a session snapshot plus the derived profile metrics.
type sessionView struct {
	*domain.Session
	BMI           float64 `json:"bmi,omitempty"`
	BMICategory   string  `json:"bmi_category,omitempty"`
	DailyCalories int     `json:"daily_calories"`
}

func newSessionView(s *domain.Session) sessionView {
	bmi := domain.BMI(s.Profile)
	return sessionView{
		Session:       s,
		BMI:           bmi,
		BMICategory:   domain.BMICategory(bmi),
		DailyCalories: domain.DailyCalories(s.Profile),
	}
}

// GetSession returns any user's session. Development only.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if !h.dev {
		Error(w, http.StatusNotFound, "not found")
		return
	}
	h.writeSession(w, r, chi.URLParam(r, "userID"))
}

// GetMe returns the calling web chat user's session.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.writeSession(w, r, userID)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, userID string) {
	sess, err := h.store.Get(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load session", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, newSessionView(sess))
}
