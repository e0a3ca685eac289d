// Package metrics holds the Prometheus collectors for the loyalty service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type loyaltyMetrics struct {
	entries     *prometheus.CounterVec
	points      *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	expired     prometheus.Counter
	httpLatency *prometheus.HistogramVec
}

var (
	loyaltyOnce     sync.Once
	loyaltyRegistry *loyaltyMetrics
)

// Loyalty returns the lazily-initialised collectors registered on the default registry.
func Loyalty() *loyaltyMetrics {
	loyaltyOnce.Do(func() {
		loyaltyRegistry = &loyaltyMetrics{
			entries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loyalty",
				Subsystem: "ledger",
				Name:      "entries_total",
				Help:      "Ledger entries appended, by kind.",
			}, []string{"kind"}),
			points: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loyalty",
				Subsystem: "ledger",
				Name:      "points_total",
				Help:      "Absolute points moved through the ledger, by direction.",
			}, []string{"direction"}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loyalty",
				Subsystem: "redemption",
				Name:      "attempts_total",
				Help:      "Redemption attempts by outcome.",
			}, []string{"outcome"}),
			expired: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loyalty",
				Subsystem: "redemption",
				Name:      "expired_total",
				Help:      "Redemptions moved to expired by the sweeper.",
			}),
			httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "loyalty",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency of HTTP handlers by route and status.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(
			loyaltyRegistry.entries,
			loyaltyRegistry.points,
			loyaltyRegistry.redemptions,
			loyaltyRegistry.expired,
			loyaltyRegistry.httpLatency,
		)
	})
	return loyaltyRegistry
}

// ObserveEntry records one appended ledger entry.
func (m *loyaltyMetrics) ObserveEntry(kind string, delta int64) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(kind).Inc()
	if delta >= 0 {
		m.points.WithLabelValues("credit").Add(float64(delta))
	} else {
		m.points.WithLabelValues("debit").Add(float64(-delta))
	}
}

// ObserveRedemption records a redemption outcome such as "success" or "insufficient_points".
func (m *loyaltyMetrics) ObserveRedemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

func (m *loyaltyMetrics) ObserveExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

// ObserveHTTP records handler latency.
func (m *loyaltyMetrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
