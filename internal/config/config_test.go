package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UsesEmbeddedDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.UpdateInterval)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, "https://api.dexscreener.com/latest/dex", cfg.DexBaseURL)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.MarketBaseURL)
	assert.Equal(t, 300, cfg.RateLimits["dex"].Points)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_TOKENS", "50")
	t.Setenv("LISTEN_PORT", "9090")
	t.Setenv("DEX_BASE_URL", "http://localhost:9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MaxTokens)
	assert.Equal(t, 9090, cfg.ListenPort)
	assert.Equal(t, "http://localhost:9999", cfg.DexBaseURL)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CACHE_URL", "CACHE_TTL", "UPDATE_INTERVAL", "MAX_TOKENS", "LISTEN_PORT",
		"DEX_BASE_URL", "MARKET_BASE_URL", "DEX_RATE_POINTS", "DEX_RATE_DURATION_MS",
		"MARKET_RATE_POINTS", "MARKET_RATE_DURATION_MS", "BATCH_SIZE", "MAX_RETRIES",
	} {
		os.Unsetenv(key)
	}
}
