// Package store holds the authoritative short-TTL snapshot behind a
// Redis-compatible cache. Writers are single-flight (the Scheduler);
// readers obtain immutable Snapshot values.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sawpanic/aggrun/internal/domain"
	"github.com/sawpanic/aggrun/internal/metrics"
)

const (
	allTokensKey  = "tokens:all"
	tokenKeyPrefix = "token:"
	// perTokenCacheLimit caps how many of a snapshot's records also get
	// an individual token:<address> key, per spec.md's "first 100"
	// resolution of the per-token cache coverage open question.
	perTokenCacheLimit = 100
)

// Store is the Snapshot Store: a single-writer/many-reader holder of the
// current snapshot, backed by a Redis-compatible TTL cache.
type Store struct {
	client  redis.Cmdable
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New builds a Store over client with the given default TTL. m may be
// nil.
func New(client redis.Cmdable, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{client: client, ttl: ttl, logger: logger, metrics: m}
}

// Put serializes snapshot and writes tokens:all plus per-token keys for
// the first 100 records, each with the Store's TTL. A failure here is
// fatal for the tick: the previous snapshot remains authoritative.
func (s *Store) Put(ctx context.Context, snapshot domain.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, allTokensKey, payload, s.ttl).Err(); err != nil {
		return &domain.CacheUnavailable{Op: "put", Err: err}
	}

	limit := perTokenCacheLimit
	if limit > len(snapshot.Tokens) {
		limit = len(snapshot.Tokens)
	}
	for _, tok := range snapshot.Tokens[:limit] {
		tokPayload, err := json.Marshal(tok)
		if err != nil {
			s.logger.Warn().Err(err).Str("address", tok.Address).Msg("failed to marshal token for per-token cache")
			continue
		}
		key := tokenKeyPrefix + tok.NormalizedAddress()
		if err := s.client.Set(ctx, key, tokPayload, s.ttl).Err(); err != nil {
			return &domain.CacheUnavailable{Op: "put token", Err: err}
		}
	}

	return nil
}

// Get returns the current snapshot if present and not expired. Read
// errors other than a plain miss, and decode failures, are logged; every
// failure (including miss and expiry) is treated as a miss.
func (s *Store) Get(ctx context.Context) (*domain.Snapshot, bool) {
	raw, err := s.client.Get(ctx, allTokensKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug().Err(err).Msg("snapshot cache read failed, treating as miss")
		}
		s.recordCacheResult("miss")
		return nil, false
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode cached snapshot")
		s.recordCacheResult("miss")
		return nil, false
	}

	s.recordCacheResult("hit")
	return &snapshot, true
}

func (s *Store) recordCacheResult(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.CacheHits.WithLabelValues(result).Inc()
}

// GetToken looks up a single token by address, case-insensitively,
// preferring the per-token key and falling back to a scan of the full
// snapshot. A miss at both levels returns (nil, false).
func (s *Store) GetToken(ctx context.Context, address string) (*domain.Token, bool) {
	normalized := domain.Token{Address: address}.NormalizedAddress()
	if normalized == "" {
		return nil, false
	}

	raw, err := s.client.Get(ctx, tokenKeyPrefix+normalized).Bytes()
	if err == nil {
		var tok domain.Token
		if err := json.Unmarshal(raw, &tok); err == nil {
			return &tok, true
		}
	}

	snapshot, ok := s.Get(ctx)
	if !ok {
		return nil, false
	}
	for i := range snapshot.Tokens {
		if snapshot.Tokens[i].NormalizedAddress() == normalized {
			return &snapshot.Tokens[i], true
		}
	}

	return nil, false
}
