package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/middleware"
	"github.com/emberloaf/loyalty/internal/schema"
	"github.com/emberloaf/loyalty/internal/services"
)

const maxBodyBytes = 16 << 10

// POSHandler serves /v1/pos endpoints for point-of-sale terminals.
type POSHandler struct {
	Accounts *services.Accounts
	Earner   *services.Earner
	Engine   *services.RedemptionEngine
	Schemas  *schema.Validator
	Logger   *slog.Logger
	// DefaultBonus is awarded when a bonus request omits points (referrals).
	DefaultBonus int64
}

// --- POST /v1/pos/earn ---

type earnRequest struct {
	// Payload is the scanned loyalty card; AccountID is accepted when the
	// terminal already knows the account.
	Payload     string `json:"payload"`
	AccountID   string `json:"account_id"`
	AmountCents int64  `json:"amount_cents"`
	OrderRef    string `json:"order_ref"`
}

type earnResponse struct {
	Earned  *services.EarnResult  `json:"earned"`
	Account *services.AccountView `json:"account"`
}

func (h *POSHandler) Earn(w http.ResponseWriter, r *http.Request) {
	var req earnRequest
	if !h.decode(w, r, schema.POSEarn, &req) {
		return
	}
	accountID, err := h.resolveEarnAccount(req)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	res, err := h.Earner.Earn(r.Context(), accountID, req.AmountCents, req.OrderRef, actor(r))
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	view, err := h.Accounts.GetAccountView(r.Context(), accountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	h.Logger.Info("points earned", "account_id", accountID, "order_ref", req.OrderRef, "points", res.PointsAwarded, "actor", actor(r))
	WriteJSON(w, http.StatusCreated, earnResponse{Earned: res, Account: view})
}

func (h *POSHandler) resolveEarnAccount(req earnRequest) (uuid.UUID, error) {
	if req.Payload != "" {
		if err := h.Schemas.Validate(schema.LoyaltyCard, []byte(req.Payload)); err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", services.ErrInvalidPayload, err)
		}
		p, err := services.ParseIdentityPayload([]byte(req.Payload))
		if err != nil {
			return uuid.Nil, err
		}
		return p.AccountID, nil
	}
	id, err := uuid.Parse(req.AccountID)
	if err != nil {
		return uuid.Nil, services.ErrInvalidPayload
	}
	return id, nil
}

// --- POST /v1/pos/accounts/{id}/bonus ---

type bonusRequest struct {
	Points      int64  `json:"points"`
	Description string `json:"description"`
}

func (h *POSHandler) AwardBonus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathAccountID(w, r)
	if !ok {
		return
	}
	var req bonusRequest
	if !h.decode(w, r, schema.POSBonus, &req) {
		return
	}
	if req.Points == 0 {
		req.Points = h.DefaultBonus
	}
	if req.Description == "" {
		req.Description = "Referral bonus"
	}
	entry, err := h.Earner.AwardBonus(r.Context(), accountID, req.Points, req.Description, actor(r))
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

// --- POST /v1/pos/accounts/{id}/adjust ---

type adjustRequest struct {
	Delta       int64  `json:"delta"`
	Description string `json:"description"`
}

func (h *POSHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathAccountID(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if !h.decode(w, r, schema.POSAdjust, &req) {
		return
	}
	entry, err := h.Earner.Adjust(r.Context(), accountID, req.Delta, req.Description, actor(r))
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	h.Logger.Info("points adjusted", "account_id", accountID, "delta", req.Delta, "actor", actor(r))
	WriteJSON(w, http.StatusCreated, entry)
}

// --- POST /v1/pos/redemptions/{code}/use ---

func (h *POSHandler) UseRedemption(w http.ResponseWriter, r *http.Request) {
	red, err := h.Engine.MarkUsedByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	h.Logger.Info("redemption used", "redemption_id", red.ID, "account_id", red.AccountID, "actor", actor(r))
	WriteJSON(w, http.StatusOK, red)
}

// --- GET /v1/pos/accounts/{id} ---

func (h *POSHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathAccountID(w, r)
	if !ok {
		return
	}
	view, err := h.Accounts.GetAccountView(r.Context(), accountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

func pathAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, false
	}
	return id, true
}

// actor names the staff key behind the request for the ledger's created_by.
func actor(r *http.Request) string {
	if k := middleware.StaffKeyFromCtx(r.Context()); k != nil {
		return "staff:" + k.Name
	}
	return ""
}

// decode reads a bounded body, checks it against the named schema and
// unmarshals it into v. It writes the 400 itself and reports false on failure.
func (h *POSHandler) decode(w http.ResponseWriter, r *http.Request, name string, v any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "request body too large")
		return false
	}
	if err := h.Schemas.Validate(name, raw); err != nil {
		if errors.Is(err, schema.ErrValidation) {
			WriteErrorMessage(w, http.StatusBadRequest, err.Error())
			return false
		}
		WriteError(w, h.Logger, err)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}
