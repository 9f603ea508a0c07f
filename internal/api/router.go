package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/companion/internal/identity"
	"github.com/ashureev/companion/internal/middleware"
)

// WebhookPath is where Telegram delivers updates in webhook mode.
const WebhookPath = "/telegram/webhook"

// Routes are the optional handlers mounted next to the built-in endpoints.
// Nil handlers are not mounted.
type Routes struct {
	Metrics  http.Handler
	Webhook  http.Handler
	WebChat  http.Handler
	Frontend http.Handler
}

// NewRouter builds the chi router.
func NewRouter(h *Handler, frontendURL string, routes Routes) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(middleware.Origins(frontendURL)))

	r.Get("/healthz", h.Healthz)
	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics)
	}
	if routes.Webhook != nil {
		r.Post(WebhookPath, routes.Webhook.ServeHTTP)
	}

	// Browser-facing routes carry the anonymous web identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(h.dev))
		r.Route("/api", func(r chi.Router) {
			r.Get("/me", h.GetMe)
			r.Get("/sessions/{userID}", h.GetSession)
		})
		if routes.WebChat != nil {
			r.Get("/ws/chat", routes.WebChat.ServeHTTP)
		}
		if routes.Frontend != nil {
			r.Handle("/*", routes.Frontend)
		}
	})

	return r
}
