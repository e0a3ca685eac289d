package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/emberloaf/loyalty/internal/handlers"
	"github.com/emberloaf/loyalty/internal/middleware"
	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/services"
)

// Enroller creates the loyalty account on first sign-in.
type Enroller interface {
	Enroll(ctx context.Context, id models.Identity) (*services.AccountView, bool, error)
}

type Handler struct {
	accounts Enroller
	log      *slog.Logger
}

func NewHandler(accounts Enroller, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accounts: accounts, log: log}
}

// Enroll handles POST /api/v1/me/enroll. It is idempotent: 201 when the
// account was created, 200 when it already existed.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		handlers.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, created, err := h.accounts.Enroll(r.Context(), *id)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.Info("account enrolled", "account_id", view.AccountID, "user_id", id.UserID)
	}
	handlers.WriteJSON(w, status, view)
}
