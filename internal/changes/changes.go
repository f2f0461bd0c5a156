// Package changes diffs successive snapshots and classifies material
// moves into typed, threshold-gated events.
package changes

import (
	"math"
	"time"

	"github.com/sawpanic/aggrun/internal/domain"
)

const (
	priceThreshold     = 0.05
	volumeMultiple     = 2.0
	marketCapThreshold = 0.10
	liquidityThreshold = 0.20
)

// Detect compares previous against current and returns the events that
// fired. If previous is nil, the only event is a batch_update carrying
// the full current snapshot. Otherwise each token present in both
// snapshots is evaluated independently against all four thresholds; a
// token may fire more than one kind in the same tick. Tokens new to
// current never alert; tokens missing from current are ignored.
func Detect(previous *domain.Snapshot, current domain.Snapshot, now time.Time) []domain.Event {
	if previous == nil {
		return []domain.Event{
			{
				Kind:      domain.EventBatchUpdate,
				Payload:   domain.BatchUpdatePayload{Snapshot: current},
				Timestamp: now,
			},
		}
	}

	prevByAddress := make(map[string]domain.Token, len(previous.Tokens))
	for _, tok := range previous.Tokens {
		prevByAddress[tok.NormalizedAddress()] = tok
	}

	var events []domain.Event
	for _, cur := range current.Tokens {
		prev, ok := prevByAddress[cur.NormalizedAddress()]
		if !ok {
			continue // appearance is not an alert
		}

		if e, fired := priceAlert(prev, cur, now); fired {
			events = append(events, e)
		}
		if e, fired := volumeAlert(prev, cur, now); fired {
			events = append(events, e)
		}
		if e, fired := marketCapAlert(prev, cur, now); fired {
			events = append(events, e)
		}
		if e, fired := liquidityAlert(prev, cur, now); fired {
			events = append(events, e)
		}
	}

	return events
}

func priceAlert(prev, cur domain.Token, now time.Time) (domain.Event, bool) {
	if prev.Price <= 0 || cur.Price <= 0 {
		return domain.Event{}, false
	}
	pct := (cur.Price - prev.Price) / prev.Price
	if math.Abs(pct) <= priceThreshold {
		return domain.Event{}, false
	}

	dir := domain.DirectionUp
	if pct < 0 {
		dir = domain.DirectionDown
	}

	return domain.Event{
		Kind: domain.EventPriceAlert,
		Payload: domain.PriceAlertPayload{
			Address:   cur.NormalizedAddress(),
			OldPrice:  prev.Price,
			NewPrice:  cur.Price,
			PctChange: pct,
			Direction: dir,
		},
		Timestamp: now,
	}, true
}

func volumeAlert(prev, cur domain.Token, now time.Time) (domain.Event, bool) {
	if prev.Volume24h <= 0 || cur.Volume24h <= 0 {
		return domain.Event{}, false
	}
	if cur.Volume24h <= volumeMultiple*prev.Volume24h {
		return domain.Event{}, false
	}

	return domain.Event{
		Kind: domain.EventVolumeAlert,
		Payload: domain.VolumeAlertPayload{
			Address:   cur.NormalizedAddress(),
			Volume:    cur.Volume24h,
			Price:     cur.Price,
			MarketCap: cur.MarketCap,
		},
		Timestamp: now,
	}, true
}

func marketCapAlert(prev, cur domain.Token, now time.Time) (domain.Event, bool) {
	if prev.MarketCap <= 0 || cur.MarketCap <= 0 {
		return domain.Event{}, false
	}
	pct := (cur.MarketCap - prev.MarketCap) / prev.MarketCap
	if math.Abs(pct) <= marketCapThreshold {
		return domain.Event{}, false
	}

	return domain.Event{
		Kind: domain.EventMarketCapAlert,
		Payload: domain.MarketCapAlertPayload{
			Address:   cur.NormalizedAddress(),
			OldCap:    prev.MarketCap,
			NewCap:    cur.MarketCap,
			PctChange: pct,
			Rank:      cur.Rank,
		},
		Timestamp: now,
	}, true
}

func liquidityAlert(prev, cur domain.Token, now time.Time) (domain.Event, bool) {
	if prev.Liquidity <= 0 || cur.Liquidity <= 0 {
		return domain.Event{}, false
	}
	pct := (cur.Liquidity - prev.Liquidity) / prev.Liquidity
	if math.Abs(pct) <= liquidityThreshold {
		return domain.Event{}, false
	}

	return domain.Event{
		Kind: domain.EventLiquidityAlert,
		Payload: domain.LiquidityAlertPayload{
			Address:      cur.NormalizedAddress(),
			OldLiquidity: prev.Liquidity,
			NewLiquidity: cur.Liquidity,
			PctChange:    pct,
			Dex:          cur.Dex,
		},
		Timestamp: now,
	}, true
}
