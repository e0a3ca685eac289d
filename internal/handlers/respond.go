package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/emberloaf/loyalty/internal/services"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorMessage writes {"error": msg}.
func WriteErrorMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrRewardNotFound),
		errors.Is(err, services.ErrRedemptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInsufficientPoints):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrConcurrencyConflict),
		errors.Is(err, services.ErrDuplicateOrder),
		errors.Is(err, services.ErrRedemptionNotActive):
		return http.StatusConflict
	case errors.Is(err, services.ErrRedemptionExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrInvalidDelta),
		errors.Is(err, services.ErrInvalidKind),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrActorRequired),
		errors.Is(err, services.ErrInvalidPayload),
		errors.Is(err, services.ErrPointsOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var publicMessages = []error{
	errUnauthenticated,
	services.ErrAccountNotFound,
	services.ErrRewardNotFound,
	services.ErrRedemptionNotFound,
	services.ErrInsufficientPoints,
	services.ErrConcurrencyConflict,
	services.ErrDuplicateOrder,
	services.ErrRedemptionNotActive,
	services.ErrRedemptionExpired,
	services.ErrInvalidDelta,
	services.ErrInvalidKind,
	services.ErrInvalidAmount,
	services.ErrActorRequired,
	services.ErrInvalidPayload,
	services.ErrPointsOutOfRange,
	services.ErrBackendUnavailable,
}

// WriteError writes the mapped status with the sentinel's message, so
// internal wrapping never leaks. 5xx responses are logged.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusFor(err)
	msg := "internal error"
	for _, sentinel := range publicMessages {
		if errors.Is(err, sentinel) {
			msg = sentinel.Error()
			break
		}
	}
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", "status", status, "error", err)
	}
	WriteErrorMessage(w, status, msg)
}
