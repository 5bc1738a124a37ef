package observability

import (
	"time"

	"github.com/granaapp/grana-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the finance engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration      *prometheus.HistogramVec
	mutationsTotal       *prometheus.CounterVec
	persistenceErrors    *prometheus.CounterVec
	cacheHits            *prometheus.CounterVec
	cacheMisses          *prometheus.CounterVec
	achievementsUnlocked prometheus.Counter
	goalsCompleted       prometheus.Counter
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
				Name:    "grana_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		mutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grana_mutations_total",
				Help: "Total store mutations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		persistenceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grana_persistence_errors_total",
				Help: "Total errors from the persistence backend.",
			},
			[]string{"collection"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grana_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grana_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		achievementsUnlocked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "grana_achievements_unlocked_total",
				Help: "Total achievement unlock transitions.",
			},
		),
		goalsCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "grana_goals_completed_total",
				Help: "Total goal completion transitions.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrMutation counts one mutation attempt. outcome is "success" or "error".
func (m *Metrics) IncrMutation(operation, outcome string) {
	m.mutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// IncrPersistenceError increments the persistence error counter.
func (m *Metrics) IncrPersistenceError(collection string) {
	m.persistenceErrors.WithLabelValues(collection).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrAchievementUnlocked counts one unlock transition.
func (m *Metrics) IncrAchievementUnlocked() {
	m.achievementsUnlocked.Inc()
}

// IncrGoalCompleted counts one goal completion transition.
func (m *Metrics) IncrGoalCompleted() {
	m.goalsCompleted.Inc()
}

// mutationOps enumerates the operation labels used by the services, so the
// stats snapshot can sum across them.
var mutationOps = []string{
	"transaction.add", "transaction.edit", "transaction.delete",
	"account.add", "account.update", "account.remove",
	"category.add", "category.update", "category.remove",
	"budget.set", "goal.add", "goal.fund",
	"profile.onboarding", "profile.update", "profile.pin",
	"data.import", "data.reset",
}

// EngineSnapshot returns a snapshot of engine metrics suitable for the
// GET /v1/stats/engine endpoint.
func (m *Metrics) EngineSnapshot() *domain.EngineStats {
	// Prometheus counters expose cumulative values; sum the outcome labels
	// across all mutation operations.
	var success, failed float64
	for _, op := range mutationOps {
		success += getCounterValue(m.mutationsTotal, op, "success")
		failed += getCounterValue(m.mutationsTotal, op, "error")
	}

	hits := getCounterValue(m.cacheHits, "persistence")
	misses := getCounterValue(m.cacheMisses, "persistence")

	total := success + failed
	errorRate := float64(0)
	if total > 0 {
		errorRate = failed / total
	}
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.EngineStats{
		MutationsTotal:       int64(total),
		MutationErrors:       int64(failed),
		ErrorRate:            errorRate,
		AchievementsUnlocked: int64(getPlainCounterValue(m.achievementsUnlocked)),
		GoalsCompleted:       int64(getPlainCounterValue(m.goalsCompleted)),
		CacheHitRate:         cacheHitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for
// the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
