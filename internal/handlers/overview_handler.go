package handlers

import (
	"net/http"

	"billing-backend/internal/services"
)

type OverviewHandler struct {
	Service *services.OverviewService
}

func NewOverviewHandler(s *services.OverviewService) *OverviewHandler {
	return &OverviewHandler{Service: s}
}

func (h *OverviewHandler) BusinessOverview(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}
	year := queryInt(r, "year", 0)

	overview, err := h.Service.BusinessOverview(r.Context(), businessID, year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
