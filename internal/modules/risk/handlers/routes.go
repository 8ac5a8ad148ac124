package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk engine routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/var", h.HandleGetVaR)
		r.Post("/var/incremental", h.HandleIncrementalVaR)
		r.Get("/factors", h.HandleGetFactors)
		r.Get("/exposures", h.HandleGetExposures)
		r.Get("/concentration", h.HandleGetConcentration)
		r.Get("/margin", h.HandleGetMargin)
		r.Get("/limits", h.HandleGetLimits)
		r.Get("/hedges", h.HandleGetHedges)
	})
}
