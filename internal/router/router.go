package router

import (
	"net/http"

	"github.com/emberloaf/loyalty/internal/auth"
	"github.com/emberloaf/loyalty/internal/dashboard"
	"github.com/emberloaf/loyalty/internal/handlers"
	"github.com/emberloaf/loyalty/internal/middleware"
)

// New registers the customer API under /api/v1 on mux. Every route requires
// an identity token; redeem is additionally rate limited per customer.
func New(
	mux *http.ServeMux,
	tokens middleware.TokenValidator,
	authHandler *auth.Handler,
	dashHandler *dashboard.Handler,
	redeemHandler *handlers.RedemptionHandler,
	redeemLimiter *middleware.RateLimiter,
) {
	identity := middleware.IdentityAuth(tokens)
	base := "/api/v1"

	mux.Handle("POST "+base+"/me/enroll", identity(http.HandlerFunc(authHandler.Enroll)))
	mux.Handle("GET "+base+"/me", identity(http.HandlerFunc(dashHandler.GetMe)))
	mux.Handle("GET "+base+"/me/ledger", identity(http.HandlerFunc(dashHandler.ListLedger)))
	mux.Handle("GET "+base+"/me/card", identity(http.HandlerFunc(dashHandler.GetCard)))
	mux.Handle("GET "+base+"/me/redemptions", identity(http.HandlerFunc(dashHandler.ListRedemptions)))
	mux.Handle("GET "+base+"/rewards", identity(http.HandlerFunc(dashHandler.ListRewards)))

	// Identity first so the limiter keys on the customer, not the address.
	mux.Handle("POST "+base+"/rewards/{id}/redeem",
		identity(redeemLimiter.Middleware(http.HandlerFunc(redeemHandler.Redeem))))
}
