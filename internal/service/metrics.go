package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's counters on a service-owned registry so tests
// and parallel service instances never trip the default registry's
// duplicate-registration panic.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	cacheHits     prometheus.Counter
	fallbacks     prometheus.Counter
	fetchDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the service metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingot_ticket_requests_total",
			Help: "Ticket requests by platform and outcome.",
		}, []string{"platform", "outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingot_cache_hits_total",
			Help: "Requests served from the ticket cache.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingot_fetch_fallbacks_total",
			Help: "Primary fetch failures recovered by the fallback fetcher.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingot_fetch_duration_seconds",
			Help:    "Raw fetch latency by fetcher family.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"fetcher"}),
	}
	m.registry.MustRegister(m.requests, m.cacheHits, m.fallbacks, m.fetchDuration)
	return m
}

// Registry exposes the underlying registry for scraping or test assertions.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
