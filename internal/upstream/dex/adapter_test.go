package dex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_MapsPairsAndDropsInadmissible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "SOLANA", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"pairs": [
				{
					"baseToken": {"address": "0xabc", "name": "Test Token", "symbol": "TST"},
					"priceUsd": "1.50",
					"priceChange": {"h1": 0.5, "h6": 1.2, "h24": 3.4},
					"fdv": 1000000,
					"volume": {"h24": 50000},
					"liquidity": {"usd": 20000},
					"txns": {"h24": {"buys": 10, "sells": 5}},
					"dexId": "raydium",
					"url": "https://dexscreener.com/solana/0xabc",
					"info": {"imageUrl": "https://img/0xabc.png"}
				},
				{
					"baseToken": {"address": "", "name": "No Address", "symbol": "NA"},
					"priceUsd": "2.00"
				},
				{
					"baseToken": {"address": "0xzero", "name": "Zero Price", "symbol": "ZP"},
					"priceUsd": "0"
				}
			]
		}`))
	}))
	defer server.Close()

	adapter := New(server.URL, "SOLANA", 10)
	tokens, err := adapter.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, tokens, 1)
	tok := tokens[0]
	assert.Equal(t, "0xabc", tok.Address)
	assert.Equal(t, 1.50, tok.Price)
	assert.Equal(t, 0.0, tok.ChangePct24h)
	assert.Equal(t, int64(15), tok.TransactionCount24h)
	assert.Equal(t, "raydium", tok.Dex)
	assert.Equal(t, []string{Tag}, tok.Sources)
}

func TestFetch_CapsAtBatchSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs": [
			{"baseToken": {"address": "0x1"}, "priceUsd": "1"},
			{"baseToken": {"address": "0x2"}, "priceUsd": "1"},
			{"baseToken": {"address": "0x3"}, "priceUsd": "1"}
		]}`))
	}))
	defer server.Close()

	adapter := New(server.URL, "SOLANA", 2)
	tokens, err := adapter.Fetch(context.Background())

	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestFetch_PropagatesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := New(server.URL, "SOLANA", 10)
	_, err := adapter.Fetch(context.Background())
	assert.Error(t, err)
}
