package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/emberloaf/loyalty/internal/models"
)

// StaffKeyLookup is the interface used by staff key auth middleware.
type StaffKeyLookup interface {
	FindActiveByPrefix(ctx context.Context, prefix string) (*models.StaffKey, error)
}

// StaffAuth authenticates point-of-sale requests carrying
// "Bearer pos_<prefix>_<secret>". The prefix selects the key row and the
// secret is checked against its bcrypt hash.
func StaffAuth(keys StaffKeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prefix, secret, ok := splitStaffKey(extractBearer(r))
			if !ok {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			key, err := keys.FindActiveByPrefix(r.Context(), prefix)
			if err != nil || key == nil || !key.IsActive {
				http.Error(w, `{"error":"invalid staff key"}`, http.StatusUnauthorized)
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(secret)) != nil {
				http.Error(w, `{"error":"invalid staff key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithStaffKey(r.Context(), key)))
		})
	}
}

// StaffKeyFromCtx returns the authenticated staff key or nil.
func StaffKeyFromCtx(ctx context.Context) *models.StaffKey {
	k, _ := ctx.Value(ctxStaffKey).(*models.StaffKey)
	return k
}

// WithStaffKey returns a context carrying the given staff key.
func WithStaffKey(ctx context.Context, k *models.StaffKey) context.Context {
	return context.WithValue(ctx, ctxStaffKey, k)
}

func splitStaffKey(raw string) (prefix, secret string, ok bool) {
	rest, found := strings.CutPrefix(raw, "pos_")
	if !found {
		return "", "", false
	}
	prefix, secret, found = strings.Cut(rest, "_")
	if !found || prefix == "" || secret == "" {
		return "", "", false
	}
	return prefix, secret, true
}
