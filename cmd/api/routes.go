package main

import (
	"net/http"

	"github.com/emberloaf/loyalty/internal/handlers"
	"github.com/emberloaf/loyalty/internal/middleware"
)

// RegisterPOSRoutes adds the /v1/pos endpoints to the given mux.
// Middleware chain: StaffAuth -> handler.
func RegisterPOSRoutes(mux *http.ServeMux, keys middleware.StaffKeyLookup, pos *handlers.POSHandler) {
	staff := middleware.StaffAuth(keys)

	mux.Handle("POST /v1/pos/earn", staff(http.HandlerFunc(pos.Earn)))
	mux.Handle("POST /v1/pos/accounts/{id}/bonus", staff(http.HandlerFunc(pos.AwardBonus)))
	mux.Handle("POST /v1/pos/accounts/{id}/adjust", staff(http.HandlerFunc(pos.Adjust)))
	mux.Handle("GET /v1/pos/accounts/{id}", staff(http.HandlerFunc(pos.GetAccount)))
	mux.Handle("POST /v1/pos/redemptions/{code}/use", staff(http.HandlerFunc(pos.UseRedemption)))
}
