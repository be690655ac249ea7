package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/practice-hub/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/practice-hub/internal/http/middleware"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Health         *handlers.HealthHandler
	Drafts         *handlers.DraftHandler
	GHL            *handlers.GHLHandler
	Notes          *handlers.NoteHandler
	MetricsHandler http.Handler

	// StaffAuthSecret enables HS256 staff tokens on /api. Empty leaves /api open.
	StaffAuthSecret    string
	CORSAllowedOrigins []string

	// RateLimiter throttles /api per staff subject or client address. Optional.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Method(http.MethodGet, "/health", cfg.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.StaffAuthSecret != "" {
			api.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))
		}
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}

		if cfg.GHL != nil {
			api.Get("/ghl/{resource}", cfg.GHL.HandleResource)
		}
		if cfg.Drafts != nil {
			api.Route("/drafts/{key}", func(d chi.Router) {
				d.Get("/", cfg.Drafts.GetDraft)
				d.Head("/", cfg.Drafts.HeadDraft)
				d.Put("/", cfg.Drafts.PutDraft)
				d.Delete("/", cfg.Drafts.DeleteDraft)
				d.Get("/ws", cfg.Drafts.HandleEditor)
			})
		}
		if cfg.Notes != nil {
			api.Get("/notes/{id}", cfg.Notes.GetNote)
			api.Get("/notes/{id}/audit", cfg.Notes.GetNoteAudit)
		}
	})

	return r
}
