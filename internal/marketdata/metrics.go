package marketdata

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attempt outcomes recorded in metrics.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// Metrics holds the Prometheus collectors of the fetch path. A nil *Metrics
// records nothing.
type Metrics struct {
	attempts     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	exhausted    *prometheus.CounterVec
	reportsBuilt *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_analyst_provider_attempts_total",
				Help: "Provider fetch attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "price_analyst_provider_latency_seconds",
				Help:    "Latency of provider fetch attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "price_analyst_cache_hits_total",
			Help: "Series served from the freshness cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "price_analyst_cache_misses_total",
			Help: "Series fetches that missed the freshness cache",
		}),
		exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_analyst_all_sources_failed_total",
				Help: "Fetches where every provider failed",
			},
			[]string{"range"},
		),
		reportsBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_analyst_reports_total",
				Help: "Analysis reports produced by signal",
			},
			[]string{"signal", "live"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.latency, m.cacheHits, m.cacheMisses, m.exhausted, m.reportsBuilt)
	}
	return m
}

func (m *Metrics) observeAttempt(provider ProviderID, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(provider), outcome).Inc()
	if outcome != OutcomeSkipped {
		m.latency.WithLabelValues(string(provider)).Observe(d.Seconds())
	}
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) observeExhausted(tag string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(tag).Inc()
}

// ObserveReport counts a produced report.
func (m *Metrics) ObserveReport(signal string, live bool) {
	if m == nil {
		return
	}
	l := "false"
	if live {
		l = "true"
	}
	m.reportsBuilt.WithLabelValues(signal, l).Inc()
}
