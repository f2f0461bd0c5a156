package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_MapsMarketRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "solana", r.URL.Query().Get("platform"))

		w.Write([]byte(`[{
			"id": "some-token",
			"name": "Some Token",
			"symbol": "SMT",
			"current_price": 3.5,
			"price_change_percentage_24h": 2.1,
			"market_cap": 9000000,
			"total_volume": 450000,
			"circulating_supply": 1000000,
			"total_supply": 2000000,
			"high_24h": 3.6,
			"low_24h": 3.3,
			"ath": 10,
			"ath_change_percentage": -65,
			"ath_date": "2024-01-01T00:00:00.000Z",
			"atl": 0.5,
			"atl_change_percentage": 600,
			"atl_date": "2023-01-01T00:00:00.000Z",
			"roi": {"times": 2.5, "currency": "usd", "percentage": 250},
			"image": "https://img/smt.png",
			"market_cap_rank": 42,
			"contract_address": "0xabc"
		}]`))
	}))
	defer server.Close()

	adapter := New(server.URL, "usd", "solana", 10)
	tokens, err := adapter.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, tokens, 1)
	tok := tokens[0]
	assert.Equal(t, "0xabc", tok.Address)
	assert.Equal(t, 3.5, tok.Price)
	assert.Equal(t, 42, *tok.Rank)
	require.NotNil(t, tok.ATHDate)
	require.NotNil(t, tok.ROI)
	assert.Equal(t, 2.5, tok.ROI.Times)
	assert.Equal(t, []string{Tag}, tok.Sources)
}

func TestFetch_DropsRecordsMissingAddressOrPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "no-address", "current_price": 1},
			{"id": "no-price", "contract_address": "0xdef", "current_price": 0}
		]`))
	}))
	defer server.Close()

	adapter := New(server.URL, "usd", "solana", 10)
	tokens, err := adapter.Fetch(context.Background())

	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestFetch_DefaultsVsCurrencyToUSD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	adapter := New(server.URL, "", "solana", 10)
	_, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
}
