// Package upstream defines the contract both concrete upstream adapters
// (dex, market) implement.
package upstream

import (
	"context"

	"github.com/sawpanic/aggrun/internal/domain"
)

// Adapter fetches one upstream's listing snapshot and maps it to
// canonical tokens. A single Fetch call is one attempt; callers are
// expected to wrap it in retry.Do and gate it with a rate limiter.
type Adapter interface {
	// Tag identifies the upstream for rate limiting, provenance tagging
	// and logging, e.g. "dex" or "market".
	Tag() string
	Fetch(ctx context.Context) ([]domain.Token, error)
}
