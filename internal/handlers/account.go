package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/emberloaf/loyalty/internal/middleware"
	"github.com/emberloaf/loyalty/internal/models"
)

var errUnauthenticated = errors.New("unauthenticated")

// AccountLookup resolves an identity-provider user to its loyalty account.
type AccountLookup interface {
	GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error)
}

// CurrentAccount returns the account of the signed-in customer. A customer
// who has not enrolled yet gets services.ErrAccountNotFound.
func CurrentAccount(r *http.Request, lookup AccountLookup) (*models.Account, error) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		return nil, errUnauthenticated
	}
	return lookup.GetAccountByUserID(r.Context(), id.UserID)
}
