package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the studio API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	subscribeEvents    *prometheus.CounterVec
	subscribeErrors    *prometheus.CounterVec
	messagesNormalized prometheus.Counter
	sessionTransitions *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studio_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		subscribeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_subscribe_events_total",
				Help: "Total change events delivered to subscribers.",
			},
			[]string{"path"},
		),
		subscribeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_subscribe_errors_total",
				Help: "Total subscription stream errors.",
			},
			[]string{"path"},
		),
		messagesNormalized: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "studio_messages_normalized_total",
				Help: "Total conversation messages normalized from keyed records.",
			},
		),
		sessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_session_transitions_total",
				Help: "Total session state transitions.",
			},
			[]string{"transition"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSubscribeEvent increments the delivered-event counter for a watched path.
func (m *Metrics) IncrSubscribeEvent(path string) {
	m.subscribeEvents.WithLabelValues(path).Inc()
}

// IncrSubscribeError increments the stream-error counter for a watched path.
func (m *Metrics) IncrSubscribeError(path string) {
	m.subscribeErrors.WithLabelValues(path).Inc()
}

// AddMessagesNormalized records how many messages a normalization pass produced.
func (m *Metrics) AddMessagesNormalized(n int) {
	m.messagesNormalized.Add(float64(n))
}

// IncrSessionTransition increments the session transition counter
// (sign_in, sign_out, ban_detected, ban_acknowledged).
func (m *Metrics) IncrSessionTransition(transition string) {
	m.sessionTransitions.WithLabelValues(transition).Inc()
}

// SessionSnapshot is a point-in-time read of the session and cache
// counters, served on the admin metrics endpoint.
type SessionSnapshot struct {
	SignIns          float64 `json:"signIns"`
	SignOuts         float64 `json:"signOuts"`
	BansDetected     float64 `json:"bansDetected"`
	BansAcknowledged float64 `json:"bansAcknowledged"`
	EmailCacheHits   float64 `json:"emailCacheHits"`
	EmailCacheMisses float64 `json:"emailCacheMisses"`
}

// GetSessionSnapshot reads the current session transition and email
// cache counters.
func (m *Metrics) GetSessionSnapshot() SessionSnapshot {
	return SessionSnapshot{
		SignIns:          getCounterValue(m.sessionTransitions, "sign_in"),
		SignOuts:         getCounterValue(m.sessionTransitions, "sign_out"),
		BansDetected:     getCounterValue(m.sessionTransitions, "ban_detected"),
		BansAcknowledged: getCounterValue(m.sessionTransitions, "ban_acknowledged"),
		EmailCacheHits:   getCounterValue(m.cacheHits, "user_emails"),
		EmailCacheMisses: getCounterValue(m.cacheMisses, "user_emails"),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
