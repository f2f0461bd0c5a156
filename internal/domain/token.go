// Package domain holds the canonical types shared across the aggregation
// pipeline, cache, change detector and broadcaster.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Token is the canonical, merged representation of a listing, keyed by
// lowercase address.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Ticker  string `json:"ticker"`

	Price          float64 `json:"price"`
	Change1h       float64 `json:"change_1h"`
	Change6h       float64 `json:"change_6h"`
	Change24h      float64 `json:"change_24h"`
	ChangePct24h   float64 `json:"change_pct_24h"`

	MarketCap              float64 `json:"market_cap"`
	MarketCapChange24h     float64 `json:"market_cap_change_24h"`
	MarketCapChangePct24h  float64 `json:"market_cap_change_pct_24h"`
	Volume24h              float64 `json:"volume_24h"`
	High24h                float64 `json:"high_24h"`
	Low24h                 float64 `json:"low_24h"`

	CirculatingSupply float64 `json:"circulating_supply"`
	TotalSupply       float64 `json:"total_supply"`

	Liquidity            float64 `json:"liquidity"`
	TransactionCount24h  int64   `json:"transaction_count_24h"`
	Dex                  string  `json:"dex"`
	DexURL               string  `json:"dex_url"`

	ATH           float64    `json:"ath"`
	ATHChangePct  float64    `json:"ath_change_pct"`
	ATHDate       *time.Time `json:"ath_date,omitempty"`
	ATL           float64    `json:"atl"`
	ATLChangePct  float64    `json:"atl_change_pct"`
	ATLDate       *time.Time `json:"atl_date,omitempty"`
	ROI           *ROI       `json:"roi,omitempty"`

	Sources     []string   `json:"sources"`
	Rank        *int       `json:"rank,omitempty"`
	Image       string     `json:"image,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
	IsMerged    bool       `json:"is_merged"`
}

// ROI mirrors CoinGecko's nullable return-on-investment object.
type ROI struct {
	Times      float64 `json:"times"`
	Currency   string  `json:"currency"`
	Percentage float64 `json:"percentage"`
}

// NormalizedAddress lowercases the address the way every component that
// keys by address is required to.
func (t Token) NormalizedAddress() string {
	return strings.ToLower(strings.TrimSpace(t.Address))
}

// Admissible reports whether a record carries the minimum identity needed
// to exist in a snapshot at all (address present).
func (t Token) Admissible() bool {
	return strings.TrimSpace(t.Address) != ""
}

// Valid reports whether a record may be published, i.e. has a positive
// price in addition to being admissible.
func (t Token) Valid() bool {
	return t.Admissible() && t.Price > 0
}

// HasSource reports whether tag is already present in Sources.
func (t Token) HasSource(tag string) bool {
	for _, s := range t.Sources {
		if s == tag {
			return true
		}
	}
	return false
}

// Snapshot is the authoritative, immutable list of canonical tokens
// produced by one Scheduler tick.
type Snapshot struct {
	Tokens    []Token   `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// SortByVolumeDesc returns a new slice with tokens sorted by Volume24h
// descending and truncated to maxTokens (0 or negative means unlimited).
func SortByVolumeDesc(tokens []Token, maxTokens int) []Token {
	out := make([]Token, len(tokens))
	copy(out, tokens)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume24h > out[j].Volume24h
	})
	if maxTokens > 0 && len(out) > maxTokens {
		out = out[:maxTokens]
	}
	return out
}
