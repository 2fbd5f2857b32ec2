package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/api/middleware"
	"github.com/eldtechnologies/carebot/internal/handlers"
)

// Options configures the router's middleware.
type Options struct {
	AllowedOrigins     []string
	APITokenHash       string // bcrypt hash; empty leaves the API open
	RateLimitWhitelist []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(32 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	limiter := middleware.NewRateLimiter(logger, middleware.RateLimiterConfig{
		Whitelist: opts.RateLimitWhitelist,
	})
	r.Use(limiter.Middleware)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := middleware.NewTokenAuth(opts.APITokenHash, logger)
	if auth.Enabled() {
		logger.Info().Msg("local API token auth enabled")
	}

	// Public routes
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", h.Root)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)

	// Conversation routes (token required when configured)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken)

		r.Get("/conversation", h.GetConversation)
		r.Delete("/conversation", h.ResetConversation)
		r.Post("/messages", h.PostMessage)
		r.Get("/queue", h.GetQueue)
		r.Get("/stats", h.Stats)
		r.Get("/connectivity", h.GetConnectivity)
		r.Put("/connectivity", h.PutConnectivity)
		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.PutPreferences)
		r.Post("/voice/listen", h.Listen)
		r.Get("/events", h.Events)
	})

	return r
}
