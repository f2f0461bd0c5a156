// Package dex adapts the DEX-pair indexer upstream (modeled on
// DEXScreener's search endpoint) into canonical domain.Token records.
package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/aggrun/internal/domain"
	"github.com/sawpanic/aggrun/internal/upstream"
)

// Tag identifies this upstream for rate limiting and provenance.
const Tag = "dex"

// DefaultBatchSize is the default cap on records returned per fetch.
const DefaultBatchSize = 50

// Adapter fetches and maps DEX-pair search results.
type Adapter struct {
	client    *upstream.Client
	baseURL   string
	query     string
	batchSize int
}

// New builds a DEX adapter. baseURL is the indexer's root (e.g.
// "https://api.dexscreener.com/latest/dex"), query is the search term
// (spec.md uses "SOLANA").
func New(baseURL, query string, batchSize int) *Adapter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Adapter{
		client:    upstream.NewClient(Tag),
		baseURL:   strings.TrimRight(baseURL, "/"),
		query:     query,
		batchSize: batchSize,
	}
}

// Tag implements upstream.Adapter.
func (a *Adapter) Tag() string { return Tag }

// Fetch implements upstream.Adapter. A single call is one network
// attempt; retry/backoff and rate limiting are applied by the caller.
func (a *Adapter) Fetch(ctx context.Context) ([]domain.Token, error) {
	url := fmt.Sprintf("%s/search?q=%s", a.baseURL, a.query)

	body, err := a.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dex adapter fetch: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dex adapter decode: %w", err)
	}

	now := time.Now()
	tokens := make([]domain.Token, 0, len(resp.Pairs))
	for _, pair := range resp.Pairs {
		tok := mapPair(pair, now)
		if !tok.Admissible() || tok.Price <= 0 {
			continue
		}
		tokens = append(tokens, tok)
		if len(tokens) >= a.batchSize {
			break
		}
	}

	return tokens, nil
}

func mapPair(p pairDTO, now time.Time) domain.Token {
	return domain.Token{
		Address:             p.BaseToken.Address,
		Name:                p.BaseToken.Name,
		Ticker:              p.BaseToken.Symbol,
		Price:               float64(p.PriceUSD),
		Change1h:            p.PriceChange.H1,
		Change6h:            p.PriceChange.H6,
		Change24h:           p.PriceChange.H24,
		ChangePct24h:        0, // DEX source fills with zero, per spec.md §6
		MarketCap:           p.FDV,
		Volume24h:           p.Volume.H24,
		Liquidity:           p.Liquidity.USD,
		TransactionCount24h: p.Txns.H24.Buys + p.Txns.H24.Sells,
		Dex:                 p.DexID,
		DexURL:              p.URL,
		Image:               p.Info.ImageURL,
		Sources:             []string{Tag},
		LastUpdated:         now,
		IsMerged:            false,
	}
}
