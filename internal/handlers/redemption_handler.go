package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/services"
)

// RedemptionHandler serves the customer redeem endpoint.
type RedemptionHandler struct {
	Accounts AccountLookup
	Engine   *services.RedemptionEngine
	Logger   *slog.Logger
}

// Redeem handles POST /api/v1/rewards/{id}/redeem.
func (h *RedemptionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	rewardID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid reward id")
		return
	}
	acc, err := CurrentAccount(r, h.Accounts)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	red, err := h.Engine.Redeem(r.Context(), acc.ID, rewardID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, red)
}
