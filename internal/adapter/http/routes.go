package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Turns (saga)
		r.Post("/turns", h.SubmitTurn)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Post("/agents/eloise", h.Orchestrate)
		r.Post("/agents/{agent}", h.Decide)

		// One-shot chat
		r.Post("/chat", h.CompleteChat)

		// Audit archive
		r.Get("/sessions/{id}/audit", h.SessionAudit)

		// LLM proxy
		r.Get("/llm/health", h.LLMHealth)
	})
}
