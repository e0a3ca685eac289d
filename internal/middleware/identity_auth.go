package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/emberloaf/loyalty/internal/models"
)

type contextKey string

const (
	ctxIdentityKey contextKey = "identity"
	ctxStaffKey    contextKey = "staff_key"
)

// TokenValidator verifies a customer's bearer token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.Identity, error)
}

// IdentityAuth verifies the identity-provider Bearer token and stores the
// resulting identity in the request context.
func IdentityAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			id, err := v.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// IdentityFromCtx returns the authenticated customer or nil.
func IdentityFromCtx(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(ctxIdentityKey).(*models.Identity)
	return id
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
