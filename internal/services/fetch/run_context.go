package fetch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

// RunContext carries the call counters for exactly one refresh run. One
// instance is created at run start, passed along the call chain, and
// discarded after reporting; it is never shared across runs. Counters only
// ever increase within a run.
type RunContext struct {
	RunID     string
	StartedAt time.Time

	mu           sync.Mutex
	apiCallsMade int
	cacheHits    int
}

// NewRunContext creates the counter context for a new run.
func NewRunContext() *RunContext {
	return &RunContext{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
}

// RecordAPICall increments the external-call counter.
func (r *RunContext) RecordAPICall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiCallsMade++
}

// RecordCacheHit increments the cache-hit counter.
func (r *RunContext) RecordCacheHit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheHits++
}

// Usage returns a snapshot of the counters.
func (r *RunContext) Usage() models.UsageStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.UsageStats{
		APICallsMade: r.apiCallsMade,
		CacheHits:    r.cacheHits,
	}
}
