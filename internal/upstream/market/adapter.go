// Package market adapts the market-data upstream (modeled on
// CoinGecko's /coins/markets endpoint) into canonical domain.Token
// records.
package market

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
const Tag = "market"

// DefaultBatchSize is the default cap on records returned per fetch.
const DefaultBatchSize = 50

const timeLayout = "2006-01-02T15:04:05.000Z"

// Adapter fetches and maps market-data listings.
type Adapter struct {
	client     *upstream.Client
	baseURL    string
	vsCurrency string
	platform   string
	batchSize  int
}

// New builds a market-data adapter. baseURL is the provider's root
// (e.g. "https://api.coingecko.com/api/v3").
func New(baseURL, vsCurrency, platform string, batchSize int) *Adapter {
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Adapter{
		client:     upstream.NewClient(Tag),
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: vsCurrency,
		platform:   platform,
		batchSize:  batchSize,
	}
}

// Tag implements upstream.Adapter.
func (a *Adapter) Tag() string { return Tag }

// Fetch implements upstream.Adapter.
func (a *Adapter) Fetch(ctx context.Context) ([]domain.Token, error) {
	url := fmt.Sprintf("%s/coins/markets?vs_currency=%s", a.baseURL, a.vsCurrency)
	if a.platform != "" {
		url += "&platform=" + a.platform
	}

	body, err := a.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("market adapter fetch: %w", err)
	}

	var dtos []marketDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("market adapter decode: %w", err)
	}

	now := time.Now()
	tokens := make([]domain.Token, 0, len(dtos))
	for _, dto := range dtos {
		tok := mapMarket(dto, now)
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

func mapMarket(d marketDTO, now time.Time) domain.Token {
	tok := domain.Token{
		Address:               d.ContractAddress,
		Name:                  d.Name,
		Ticker:                d.Symbol,
		Price:                 d.CurrentPrice,
		Change24h:             d.PriceChange24h,
		ChangePct24h:          d.PriceChangePercentage24h,
		MarketCap:             d.MarketCap,
		MarketCapChange24h:    d.MarketCapChange24h,
		MarketCapChangePct24h: d.MarketCapChangePercentage24h,
		Volume24h:             d.TotalVolume,
		High24h:               d.High24h,
		Low24h:                d.Low24h,
		CirculatingSupply:     d.CirculatingSupply,
		TotalSupply:           d.TotalSupply,
		ATH:                   d.ATH,
		ATHChangePct:          d.ATHChangePercentage,
		ATL:                   d.ATL,
		ATLChangePct:          d.ATLChangePercentage,
		Rank:                  d.MarketCapRank,
		Image:                 d.Image,
		Sources:               []string{Tag},
		LastUpdated:           now,
		IsMerged:              false,
	}

	if d.ROI != nil {
		tok.ROI = &domain.ROI{Times: d.ROI.Times, Currency: d.ROI.Currency, Percentage: d.ROI.Percentage}
	}
	if t, err := time.Parse(timeLayout, d.ATHDate); err == nil {
		tok.ATHDate = &t
	}
	if t, err := time.Parse(timeLayout, d.ATLDate); err == nil {
		tok.ATLDate = &t
	}

	return tok
}
