// Package readapi implements the filter/sort/paginate read path over
// the Snapshot Store. The HTTP binding (query-param parsing, status
// codes) lives in internal/transport/http; this package is the pure
// contract it calls into.
package readapi

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sawpanic/aggrun/internal/domain"
	"github.com/sawpanic/aggrun/internal/store"
)

// SortField is one of the supported sort keys.
type SortField string

const (
	SortVolume            SortField = "volume"
	SortPriceChange       SortField = "price_change"
	SortMarketCap         SortField = "market_cap"
	SortLiquidity         SortField = "liquidity"
	SortTransactionCount  SortField = "transaction_count"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// TimePeriod selects which change field a filter/sort operates over.
type TimePeriod string

const (
	Period1h  TimePeriod = "1h"
	Period24h TimePeriod = "24h"
	Period7d  TimePeriod = "7d"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filters mirrors the Read API's documented query parameters.
type Filters struct {
	MinLiquidity float64
	MinVolume    float64
	Protocol     string // substring match over dex, case-insensitive
	TimePeriod   TimePeriod
	SortBy       SortField
	SortOrder    SortOrder
	Limit        int
	Cursor       int
}

// Normalized returns a copy of f with documented defaults applied.
func (f Filters) Normalized() Filters {
	out := f
	if out.SortBy == "" {
		out.SortBy = SortVolume
	}
	if out.SortOrder == "" {
		out.SortOrder = OrderDesc
	}
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.Limit > MaxLimit {
		out.Limit = MaxLimit
	}
	if out.Cursor < 0 {
		out.Cursor = 0
	}
	return out
}

// Page is the response shape get_all returns.
type Page struct {
	Tokens     []domain.Token
	NextCursor *int
	HasMore    bool
	TotalCount int
	Timestamp  time.Time
}

// GetAll filters, sorts and paginates snapshot's tokens. TotalCount
// reflects post-filter cardinality (spec.md's documented resolution of
// that open question).
func GetAll(snapshot domain.Snapshot, filters Filters) Page {
	f := filters.Normalized()

	filtered := apply(snapshot.Tokens, f)
	sorted := sortTokens(filtered, f.SortBy, f.SortOrder)

	total := len(sorted)
	start := f.Cursor
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	page := sorted[start:end]
	hasMore := end < total

	var next *int
	if hasMore {
		n := end
		next = &n
	}

	return Page{
		Tokens:     page,
		NextCursor: next,
		HasMore:    hasMore,
		TotalCount: total,
		Timestamp:  time.Now(),
	}
}

// GetByAddress looks up a token case-insensitively via the per-token
// cache, falling back to the full snapshot.
func GetByAddress(ctx context.Context, snapshotStore *store.Store, address string) (*domain.Token, bool) {
	return snapshotStore.GetToken(ctx, address)
}

// apply runs every filter in sequence; the result is order-independent
// across filters since each predicate only inspects its own field
// (spec.md's filter-composability property).
func apply(tokens []domain.Token, f Filters) []domain.Token {
	out := make([]domain.Token, 0, len(tokens))
	for _, tok := range tokens {
		if f.MinLiquidity > 0 && tok.Liquidity < f.MinLiquidity {
			continue
		}
		if f.MinVolume > 0 && tok.Volume24h < f.MinVolume {
			continue
		}
		if f.Protocol != "" && !strings.Contains(strings.ToLower(tok.Dex), strings.ToLower(f.Protocol)) {
			continue
		}
		if !matchesTimePeriod(tok, f.TimePeriod) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// matchesTimePeriod excludes records missing the requested change
// field; 7d is a no-op (spec.md's documented resolution).
func matchesTimePeriod(tok domain.Token, period TimePeriod) bool {
	switch period {
	case "", Period7d:
		return true
	case Period1h:
		return tok.Change1h != 0
	case Period24h:
		return tok.Change24h != 0 || tok.ChangePct24h != 0
	default:
		return true
	}
}

func sortTokens(tokens []domain.Token, field SortField, order SortOrder) []domain.Token {
	out := make([]domain.Token, len(tokens))
	copy(out, tokens)

	less := func(i, j int) bool {
		a, b := sortKey(out[i], field), sortKey(out[j], field)
		if order == OrderAsc {
			return a < b
		}
		return a > b
	}
	sort.SliceStable(out, less)
	return out
}

func sortKey(tok domain.Token, field SortField) float64 {
	switch field {
	case SortPriceChange:
		return tok.ChangePct24h
	case SortMarketCap:
		return tok.MarketCap
	case SortLiquidity:
		return tok.Liquidity
	case SortTransactionCount:
		return float64(tok.TransactionCount24h)
	case SortVolume:
		fallthrough
	default:
		return tok.Volume24h
	}
}
