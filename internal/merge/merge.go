// Package merge flattens per-source token lists into one canonical
// snapshot, fusing records with the same address by field precedence.
package merge

import (
	"strings"
	"time"

	"github.com/sawpanic/aggrun/internal/domain"
	"github.com/sawpanic/aggrun/internal/upstream/dex"
	"github.com/sawpanic/aggrun/internal/upstream/market"
)

// Merge flattens sourceLists, groups by lowercase address, fuses groups
// of 2+ by field precedence (left-fold, associative), sorts the result
// by volume_24h descending and truncates to maxTokens.
func Merge(sourceLists [][]domain.Token, now time.Time, maxTokens int) []domain.Token {
	groups := make(map[string][]domain.Token)
	order := make([]string, 0)

	for _, list := range sourceLists {
		for _, tok := range list {
			addr := tok.NormalizedAddress()
			if addr == "" {
				continue
			}
			tok.Address = addr
			if _, seen := groups[addr]; !seen {
				order = append(order, addr)
			}
			groups[addr] = append(groups[addr], tok)
		}
	}

	fused := make([]domain.Token, 0, len(order))
	for _, addr := range order {
		group := groups[addr]
		if len(group) == 1 {
			tok := group[0]
			tok.IsMerged = false
			fused = append(fused, tok)
			continue
		}

		acc := group[0]
		for _, next := range group[1:] {
			acc = fuse(acc, next, now)
		}
		fused = append(fused, acc)
	}

	return domain.SortByVolumeDesc(fused, maxTokens)
}

// fuse combines two records for the same address by field precedence.
// Precedence is driven by each field's preferred source tag; when the
// preferred source's value is missing/zero, the other source's value is
// used instead.
func fuse(a, b domain.Token, now time.Time) domain.Token {
	dexFirst, marketFirst := pickBySource(a, b)

	out := domain.Token{}

	out.Address = firstNonEmpty(dexFirst.Address, marketFirst.Address)
	out.Name = firstNonEmpty(dexFirst.Name, marketFirst.Name)
	out.Ticker = firstNonEmpty(dexFirst.Ticker, marketFirst.Ticker)

	// DEX-preferred: real-time venue data.
	out.Price = firstNonZero(dexFirst.Price, marketFirst.Price)
	out.Volume24h = firstNonZero(dexFirst.Volume24h, marketFirst.Volume24h)
	out.Liquidity = firstNonZero(dexFirst.Liquidity, marketFirst.Liquidity)
	out.TransactionCount24h = firstNonZeroInt(dexFirst.TransactionCount24h, marketFirst.TransactionCount24h)
	out.Dex = firstNonEmpty(dexFirst.Dex, marketFirst.Dex)
	out.DexURL = firstNonEmpty(dexFirst.DexURL, marketFirst.DexURL)
	out.Change1h = firstNonZero(dexFirst.Change1h, marketFirst.Change1h)
	out.Change6h = firstNonZero(dexFirst.Change6h, marketFirst.Change6h)
	out.Change24h = firstNonZero(dexFirst.Change24h, marketFirst.Change24h)

	// Market-data-preferred: canonical market data.
	out.ChangePct24h = firstNonZero(marketFirst.ChangePct24h, dexFirst.ChangePct24h)
	out.MarketCap = firstNonZero(marketFirst.MarketCap, dexFirst.MarketCap)
	out.MarketCapChange24h = firstNonZero(marketFirst.MarketCapChange24h, dexFirst.MarketCapChange24h)
	out.MarketCapChangePct24h = firstNonZero(marketFirst.MarketCapChangePct24h, dexFirst.MarketCapChangePct24h)
	out.CirculatingSupply = firstNonZero(marketFirst.CirculatingSupply, dexFirst.CirculatingSupply)
	out.TotalSupply = firstNonZero(marketFirst.TotalSupply, dexFirst.TotalSupply)
	out.High24h = firstNonZero(marketFirst.High24h, dexFirst.High24h)
	out.Low24h = firstNonZero(marketFirst.Low24h, dexFirst.Low24h)
	out.ATH = firstNonZero(marketFirst.ATH, dexFirst.ATH)
	out.ATHChangePct = firstNonZero(marketFirst.ATHChangePct, dexFirst.ATHChangePct)
	out.ATHDate = firstNonNilTime(marketFirst.ATHDate, dexFirst.ATHDate)
	out.ATL = firstNonZero(marketFirst.ATL, dexFirst.ATL)
	out.ATLChangePct = firstNonZero(marketFirst.ATLChangePct, dexFirst.ATLChangePct)
	out.ATLDate = firstNonNilTime(marketFirst.ATLDate, dexFirst.ATLDate)
	if marketFirst.ROI != nil {
		out.ROI = marketFirst.ROI
	} else {
		out.ROI = dexFirst.ROI
	}
	if marketFirst.Rank != nil {
		out.Rank = marketFirst.Rank
	} else {
		out.Rank = dexFirst.Rank
	}
	out.Image = firstNonEmpty(marketFirst.Image, dexFirst.Image)

	out.Sources = unionSources(dexFirst.Sources, marketFirst.Sources)
	out.LastUpdated = now
	out.IsMerged = true

	return out
}

// pickBySource orders a, b so the DEX-tagged record is dexFirst and the
// market-tagged record is marketFirst, regardless of call order —
// this is what makes fuse(a,b) and fuse(b,a) produce identical output.
func pickBySource(a, b domain.Token) (dexFirst, marketFirst domain.Token) {
	if a.HasSource(dex.Tag) || (!a.HasSource(market.Tag) && !b.HasSource(dex.Tag)) {
		return a, b
	}
	return b, a
}

func firstNonEmpty(preferred, fallback string) string {
	if strings.TrimSpace(preferred) != "" {
		return preferred
	}
	return fallback
}

func firstNonZero(preferred, fallback float64) float64 {
	if preferred != 0 {
		return preferred
	}
	return fallback
}

func firstNonZeroInt(preferred, fallback int64) int64 {
	if preferred != 0 {
		return preferred
	}
	return fallback
}

func firstNonNilTime(preferred, fallback *time.Time) *time.Time {
	if preferred != nil {
		return preferred
	}
	return fallback
}

func unionSources(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
