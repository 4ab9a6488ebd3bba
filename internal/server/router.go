package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/careset/fhirstore/internal/events"
	"github.com/careset/fhirstore/internal/resource"
)

// Config bundles everything NewRouter needs to wire the CRUD surface.
type Config struct {
	Repo      *resource.Repository
	Hub       *events.Hub
	Publisher events.Publisher
	Auth      *AuthService
	Logger    *zap.Logger
	APIPrefix string
}

// NewRouter builds the chi router for the resource CRUD surface plus a
// WebSocket subscription endpoint.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(recovery(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := NewResourceHandler(cfg.Repo, cfg.Publisher, logger)

	r.Route(prefix, func(api chi.Router) {
		if cfg.Auth != nil {
			api.Use(requireAuth(cfg.Auth))
		}

		api.Route("/{resourceType}", func(rt chi.Router) {
			rt.Post("/", h.Create)
			rt.Get("/", h.Search)
			rt.Get("/{id}", h.Read)
			rt.Put("/{id}", h.Update)
			rt.Delete("/{id}", h.Delete)
		})
	})

	if cfg.Hub != nil {
		r.Get("/ws/{resourceType}", newWebSocketHandler(cfg.Hub))
	}

	return r
}
