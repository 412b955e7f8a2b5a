package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Public routes
	r.Get("/api/v1/health", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.apiKey))

		// Storage layer protocol
		r.Get("/data/load", h.LoadData)
		r.Post("/data/save", h.SaveData)
		r.Route("/cost-classification/{orgId}", func(r chi.Router) {
			r.Use(OrganizationMiddleware)
			r.Get("/", h.GetCostClassification)
			r.Put("/", h.PutCostClassification)
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/orgs", h.ListOrganizations)
			r.Route("/orgs/{orgId}", func(r chi.Router) {
				r.Use(OrganizationMiddleware)
				r.Get("/defaults", h.GetDefaults)
				r.Put("/defaults", h.PutDefaults)
			})

			r.Post("/roi/compute", h.Compute)

			if h.session != nil {
				r.Route("/session", func(r chi.Router) {
					r.Get("/", h.SessionStatus)
					r.Post("/organization", h.SelectOrganization)
					r.Post("/reload", h.ReloadSession)
					r.Put("/horizon", h.SetHorizon)
					r.Put("/selection", h.SetSelection)
					r.Get("/results", h.SessionResults)
					if h.stream != nil {
						r.Handle("/ws", h.stream)
					}
				})
			}
		})
	})

	return r
}
