package middleware

import (
	"net/http"
	"time"

	"github.com/emberloaf/loyalty/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument records request latency under the route pattern that matched.
// It must wrap the ServeMux directly so the mux's pattern is visible here.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.Loyalty().ObserveHTTP(route, rec.status, time.Since(start))
	})
}
