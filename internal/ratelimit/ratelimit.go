// Package ratelimit implements the per-upstream token-bucket admission
// control described in the aggregator's design: Acquire never blocks,
// it either grants a permit or reports how long the caller would have
// to wait.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawpanic/aggrun/internal/domain"
)

// Config configures one upstream's bucket: points permits refilled
// linearly over duration, e.g. (300, 60s) == 5 req/s with a burst of
// 300.
type Config struct {
	Points   int
	Duration time.Duration
}

// Limiter holds one token bucket per upstream tag.
type Limiter struct {
	mu       sync.RWMutex
	buckets  map[string]*rate.Limiter
}

// New builds a Limiter from a tag -> Config map. Tags not present in
// configs will cause Acquire to return a ConfigError.
func New(configs map[string]Config) *Limiter {
	l := &Limiter{buckets: make(map[string]*rate.Limiter, len(configs))}
	for tag, cfg := range configs {
		l.buckets[tag] = newBucket(cfg)
	}
	return l
}

func newBucket(cfg Config) *rate.Limiter {
	perSecond := float64(cfg.Points) / cfg.Duration.Seconds()
	return rate.NewLimiter(rate.Limit(perSecond), cfg.Points)
}

// AddProvider registers (or replaces) the bucket for tag.
func (l *Limiter) AddProvider(tag string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[tag] = newBucket(cfg)
}

// Acquire consumes one permit for tag. It never blocks: on success it
// returns nil, on an empty bucket it returns *domain.RateLimited with
// the wait until the next permit, on an unknown tag it returns a
// *domain.ConfigError.
func (l *Limiter) Acquire(tag string) error {
	l.mu.RLock()
	bucket, ok := l.buckets[tag]
	l.mu.RUnlock()
	if !ok {
		return domain.NewConfigError("unknown rate limit tag %q", tag)
	}

	now := time.Now()
	if bucket.AllowN(now, 1) {
		return nil
	}

	// Reserve only to learn the wait time, then cancel it immediately so
	// we don't consume a future permit we're not actually going to use.
	reservation := bucket.ReserveN(now, 1)
	wait := reservation.DelayFrom(now)
	reservation.CancelAt(now)

	return &domain.RateLimited{Tag: tag, RetryAfter: wait}
}
