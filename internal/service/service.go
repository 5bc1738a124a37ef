// Package service provides the business logic layer (use cases) of the
// finance engine: ledger mutations, budgets, goals, derived analytics,
// suggestions, achievements, profile and backup operations.
package service

import (
	"sync"
	"time"

	"github.com/granaapp/grana-go/internal/infra/observability"
	"github.com/granaapp/grana-go/internal/store"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/finance")

// Finance orchestrates every operation against the entity store.
//
// Mutations are serialized by mu: a single-writer discipline so no two
// mutations interleave against the same collections, even under a
// concurrent HTTP server. Reads take consistent copies from the store and
// do not block behind mu.
type Finance struct {
	mu      sync.Mutex
	store   *store.Store
	metrics *observability.Metrics
	logger  *zap.Logger

	jwtSecret []byte
	unlockTTL time.Duration
}

// NewFinance creates the finance service. jwtSecret signs PIN unlock
// tokens; unlockTTL bounds their lifetime.
func NewFinance(st *store.Store, metrics *observability.Metrics, logger *zap.Logger, jwtSecret string, unlockTTL time.Duration) *Finance {
	return &Finance{
		store:     st,
		metrics:   metrics,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		unlockTTL: unlockTTL,
	}
}

// observe records the metrics for one mutation attempt.
func (s *Finance) observe(operation string, start time.Time, err error) {
	s.metrics.RecordRequestDuration(operation, time.Since(start))
	if err != nil {
		s.metrics.IncrMutation(operation, "error")
		return
	}
	s.metrics.IncrMutation(operation, "success")
}
