// Package scheduler drives the periodic tick that fans out to every
// Upstream Adapter, merges the results, writes the new snapshot, and
// hands the diff to the change detector and broadcaster.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/aggrun/internal/broadcast"
	"github.com/sawpanic/aggrun/internal/changes"
	"github.com/sawpanic/aggrun/internal/domain"
	"github.com/sawpanic/aggrun/internal/health"
	"github.com/sawpanic/aggrun/internal/merge"
	"github.com/sawpanic/aggrun/internal/metrics"
	"github.com/sawpanic/aggrun/internal/ratelimit"
	"github.com/sawpanic/aggrun/internal/retry"
	"github.com/sawpanic/aggrun/internal/store"
	"github.com/sawpanic/aggrun/internal/upstream"
)

// StartupDelay is how long after Run is called the first tick fires.
const StartupDelay = 1 * time.Second

// Config controls tick cadence and per-tick limits.
type Config struct {
	UpdateInterval time.Duration
	MaxTokens      int
	RetryConfig    retry.Config
}

// DefaultConfig matches spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		UpdateInterval: 10 * time.Second,
		MaxTokens:      1000,
		RetryConfig:    retry.DefaultConfig(),
	}
}

// Scheduler owns the single periodic loop driving the aggregation
// pipeline.
type Scheduler struct {
	cfg       Config
	adapters  []upstream.Adapter
	limiter   *ratelimit.Limiter
	store     *store.Store
	broadcast *broadcast.Broadcaster
	health    *health.Tracker
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	// ticking guards against overlapping ticks: if a tick is still
	// running when the next one is due, the next one is skipped.
	ticking sync.Mutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a Scheduler. adapters are fanned out to concurrently on
// every tick. healthTracker and m may be nil.
func New(cfg Config, adapters []upstream.Adapter, limiter *ratelimit.Limiter, snapshotStore *store.Store, bcast *broadcast.Broadcaster, healthTracker *health.Tracker, m *metrics.Metrics, logger zerolog.Logger) *Scheduler {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultConfig().UpdateInterval
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if healthTracker == nil {
		healthTracker = health.NewTracker()
	}
	return &Scheduler{
		cfg:       cfg,
		adapters:  adapters,
		limiter:   limiter,
		store:     snapshotStore,
		broadcast: bcast,
		health:    healthTracker,
		metrics:   m,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Run blocks, ticking every UpdateInterval (first tick after
// StartupDelay) until ctx is cancelled or Stop is called. A tick already
// running when the next one is due is allowed to finish; the overlapping
// tick is skipped.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	defer cancel()
	defer close(s.done)

	startupTimer := time.NewTimer(StartupDelay)
	defer startupTimer.Stop()

	select {
	case <-startupTimer.C:
		s.tryTick(ctx)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tryTick(ctx)
		}
	}
}

// tryTick runs one tick unless a prior tick is still in flight, in
// which case it is skipped and logged.
func (s *Scheduler) tryTick(ctx context.Context) {
	if !s.ticking.TryLock() {
		s.logger.Warn().Msg("tick skipped: previous tick still running")
		return
	}
	defer s.ticking.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("tick aborted: recovered from panic")
		}
	}()

	s.tick(ctx)
}

type fetchResult struct {
	tag    string
	tokens []domain.Token
	err    error
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()

	results := s.fetchAll(ctx)

	var successful [][]domain.Token
	var failedTags []string
	for _, r := range results {
		if r.err != nil {
			s.logger.Warn().Str("upstream", r.tag).Err(r.err).Msg("upstream fetch failed for this tick")
			failedTags = append(failedTags, r.tag)
			s.health.RecordFailure(r.tag, "unknown", r.err, start)
			s.recordOutcome(r.tag, "failure")
			continue
		}
		successful = append(successful, r.tokens)
		s.health.RecordSuccess(r.tag, "closed", start)
		s.recordOutcome(r.tag, "success")
	}

	if len(successful) == 0 {
		s.logger.Error().Msg("tick aborted: all upstreams failed")
		return
	}
	if len(failedTags) > 0 {
		s.logger.Warn().Strs("failed_upstreams", failedTags).Msg("tick proceeding with partial upstream failure")
	}

	merged := merge.Merge(successful, start, s.cfg.MaxTokens)
	current := domain.Snapshot{Tokens: merged, CreatedAt: start}

	previous, _ := s.store.Get(ctx)

	if err := s.store.Put(ctx, current); err != nil {
		s.logger.Error().Err(err).Msg("tick aborted after merge: snapshot store put failed, previous snapshot remains authoritative")
		return
	}

	events := changes.Detect(previous, current, start)
	events = append(events, domain.Event{
		Kind:      domain.EventBatchUpdate,
		Payload:   domain.BatchUpdatePayload{Snapshot: current},
		Timestamp: start,
	})

	s.broadcast.Broadcast(events)
	s.health.RecordTick(start)

	if s.metrics != nil {
		s.metrics.ObserveTick(time.Since(start))
		s.metrics.ActiveSubscribers.Set(float64(s.broadcast.SubscriberCount()))
		for _, e := range events {
			s.metrics.EventsEmitted.WithLabelValues(string(e.Kind)).Inc()
		}
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tokens", len(current.Tokens)).
		Int("events", len(events)).
		Msg("tick completed")
}

func (s *Scheduler) recordOutcome(tag, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.UpstreamOutcomes.WithLabelValues(tag, outcome).Inc()
}

// Stop cancels the ticker, lets an in-flight tick finish, then returns
// once Run has exited or ctx expires first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancelMu.Lock()
	cancel := s.cancel
	s.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health returns the underlying health tracker for read-only snapshots.
func (s *Scheduler) Health() *health.Tracker {
	return s.health
}

// fetchAll launches every adapter concurrently, each wrapped in its own
// rate-limit acquire + retry/backoff, and waits for all to settle.
func (s *Scheduler) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(s.adapters))

	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(i int, adapter upstream.Adapter) {
			defer wg.Done()
			tag := adapter.Tag()

			err := retry.Do(ctx, s.cfg.RetryConfig, s.logger, func(ctx context.Context) error {
				if limitErr := s.limiter.Acquire(tag); limitErr != nil {
					return limitErr
				}
				tokens, fetchErr := adapter.Fetch(ctx)
				if fetchErr != nil {
					return fetchErr
				}
				results[i].tokens = tokens
				return nil
			})

			results[i].tag = tag
			results[i].err = err
		}(i, adapter)
	}
	wg.Wait()

	return results
}
