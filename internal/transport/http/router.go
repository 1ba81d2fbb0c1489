// Package httptransport is the thin HTTP layer. Handlers delegate to the
// domain services so transport concerns stay isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vitalia/internal/listings"
	"vitalia/internal/oplog"
	"vitalia/internal/platform/metrics"
	"vitalia/internal/profiles"
)

// Handler holds the services the HTTP layer fronts.
type Handler struct {
	listings *listings.Service
	profiles *profiles.Service
	journal  *oplog.Publisher
	health   func(r *http.Request) error
	logger   *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHealthCheck adds a dependency probe to /healthz.
func WithHealthCheck(check func(r *http.Request) error) Option {
	return func(h *Handler) {
		h.health = check
	}
}

// NewHandler wires the HTTP layer over the domain services.
func NewHandler(listingSvc *listings.Service, profileSvc *profiles.Service, journal *oplog.Publisher, opts ...Option) *Handler {
	h := &Handler{listings: listingSvc, profiles: profileSvc, journal: journal}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", h.handleCategories)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.handleBrowseListings)
			r.Post("/", h.handleCreateListing)
			r.Get("/{id}", h.handleGetListing)
			r.Post("/{id}/respond", h.handleRespond)
			r.Post("/{id}/resolve", h.handleResolve)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.handleProfileDirectory)
			r.Get("/{address}", h.handleGetProfile)
			r.Post("/{address}", h.handleCreateProfile)
			r.Put("/{address}", h.handleUpdateProfile)
			r.Delete("/{address}", h.handleDeactivateProfile)
		})

		r.Route("/operations", func(r chi.Router) {
			r.Get("/", h.handleListOperations)
			r.Get("/{id}", h.handleGetOperation)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
