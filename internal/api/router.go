package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/inbox"
)

// RouterConfig carries the optional parts of the API.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// MaxBodyBytes caps JSON and upload bodies.
	MaxBodyBytes int64
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Inbox, if non-nil, enables PUT /inbox/{question}/{file}.
	Inbox *inbox.Inbox
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *gradingservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.Inbox, cfg.MaxBodyBytes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Post("/evaluate", h.Evaluate)
	r.Post("/preview/midi", h.PreviewMIDI)

	// Gradebook.
	r.Get("/grades", h.ListGrades)
	r.Post("/grades", h.CreateGrade)
	r.Get("/grades/{id}", h.GetGrade)
	r.Delete("/grades/{id}", h.DeleteGrade)

	r.Put("/inbox/{question}/{file}", h.SubmitToInbox)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
