package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tools", h.ListTools)

		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			if h.SessionLimiter != nil {
				r.Use(h.SessionLimiter)
			}
			r.Get("/", h.GetSession)
			r.Post("/prompt", h.Prompt)
			r.Post("/continue", h.Continue)
			r.Post("/reset", h.ResetSession)
			r.Get("/audit", h.GetAudit)

			r.Get("/pending", h.GetPending)
			r.Post("/pending/{toolUseId}/preview", h.PreviewEdit)
			r.Post("/pending/{toolUseId}/approve", h.Approve)
			r.Post("/pending/{toolUseId}/reject", h.Reject)
		})
	})
}
