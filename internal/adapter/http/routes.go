package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.hub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		// Agents
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents/{id}/capabilities", h.GetCapabilities)
		r.Post("/agents/{id}/confidence", h.ApplyDelta)
		r.Post("/agents/{id}/promote", h.ConfirmPromotion)
		r.Get("/agents/{id}/audit", h.AgentAuditTrail)

		// Decisions
		r.Post("/decisions", h.Decide)

		// Training
		r.Post("/proposals", h.CreateProposal)
		r.Post("/proposals/{id}/approve", h.ApproveProposal)
		r.Post("/sessions/{id}/complete", h.CompleteSession)
		r.Post("/estimates", h.EstimateDuration)

		// Interventions
		r.Post("/interventions", h.SubmitIntervention)
		r.Get("/interventions", h.ListInterventions)
		r.Post("/interventions/{id}/approve", h.ApproveIntervention)
		r.Post("/interventions/{id}/reject", h.RejectIntervention)
	})
}
