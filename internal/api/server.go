package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/TimurManjosov/konditional/codec"
	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/internal/auth"
	"github.com/TimurManjosov/konditional/internal/store"
	"github.com/TimurManjosov/konditional/internal/telemetry"
	"github.com/TimurManjosov/konditional/registry"
)

// Server wires the namespace schema, registry, and snapshot store into
// HTTP handlers.
type Server struct {
	ns        *feature.Namespace
	registry  *registry.Registry
	store     store.Store
	auth      *auth.Authenticator
	rateLimit int
	codecOpts codec.Options
}

// Config collects Server dependencies.
type Config struct {
	Namespace *feature.Namespace
	Registry  *registry.Registry
	Store     store.Store
	// AdminKey is the legacy plaintext admin key; may be empty when
	// AdminKeyHashes is set.
	AdminKey string
	// AdminKeyHashes are bcrypt hashes of issued admin keys.
	AdminKeyHashes []string
	// RateLimitPerIP caps requests per IP per minute to the public read
	// endpoints (evaluate, flags, snapshot GET); zero disables rate
	// limiting.
	RateLimitPerIP int
	// CodecOptions apply to snapshot PUT and patch decode.
	CodecOptions codec.Options
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	return &Server{
		ns:        cfg.Namespace,
		registry:  cfg.Registry,
		store:     cfg.Store,
		auth:      auth.NewAuthenticator(cfg.AdminKey, cfg.AdminKeyHashes),
		rateLimit: cfg.RateLimitPerIP,
		codecOpts: cfg.CodecOptions,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.rateLimit > 0 {
				r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
			}
			r.Post("/evaluate", s.handleEvaluate)
			r.Get("/flags", s.handleListFlags)
			r.Get("/snapshot", s.handleGetSnapshot)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Put("/snapshot", s.handlePutSnapshot)
			r.Post("/snapshot/patch", s.handlePatchSnapshot)
			r.Post("/rollback", s.handleRollback)
			r.Get("/history", s.handleHistory)
			r.Post("/kill", s.handleKill)
			r.Delete("/kill", s.handleUnkill)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"namespace": s.registry.Namespace(),
		"version":   s.registry.Version(),
		"flags":     s.registry.Current().Len(),
		"disabled":  s.registry.Disabled(),
	})
}
