// Package dashboard serves the signed-in customer's loyalty card screens.
package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/emberloaf/loyalty/internal/handlers"
	"github.com/emberloaf/loyalty/internal/middleware"
	"github.com/emberloaf/loyalty/internal/services"
)

type Handler struct {
	store    services.Store
	accounts *services.Accounts
	ledger   *services.Ledger
	catalog  *services.Catalog
	engine   *services.RedemptionEngine
	log      *slog.Logger
}

func NewHandler(
	store services.Store,
	accounts *services.Accounts,
	ledger *services.Ledger,
	catalog *services.Catalog,
	engine *services.RedemptionEngine,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:    store,
		accounts: accounts,
		ledger:   ledger,
		catalog:  catalog,
		engine:   engine,
		log:      log,
	}
}

// GET /api/v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		handlers.WriteErrorMessage(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	view, err := h.accounts.GetAccountViewForUser(r.Context(), id.UserID)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, view)
}

// GET /api/v1/me/ledger?limit=
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			handlers.WriteErrorMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	acc, err := handlers.CurrentAccount(r, h.store)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	entries, err := h.ledger.History(r.Context(), acc.ID, limit)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type cardResponse struct {
	*services.IdentityPayload
	// QR is the exact string to render as the QR code.
	QR string `json:"qr"`
}

// GET /api/v1/me/card
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	acc, err := handlers.CurrentAccount(r, h.store)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	p, err := h.accounts.IdentityPayload(r.Context(), acc.ID)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	qr, err := p.Encode()
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, cardResponse{IdentityPayload: p, QR: qr})
}

// GET /api/v1/rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	acc, err := handlers.CurrentAccount(r, h.store)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	opts, err := h.catalog.ListRewardsFor(r.Context(), acc.ID)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"rewards": opts})
}

// GET /api/v1/me/redemptions
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	acc, err := handlers.CurrentAccount(r, h.store)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	reds, err := h.engine.ListRedemptions(r.Context(), acc.ID)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"redemptions": reds})
}
