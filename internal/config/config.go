// Package config assembles the aggregator's runtime configuration from
// an embedded YAML default table overridden by environment variables.
// Loading a config file from disk and wiring a CLI flag surface is out
// of scope for the core (spec.md §1); this is the small contract the
// core pipeline depends on.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/aggrun/internal/domain"
	"github.com/sawpanic/aggrun/internal/ratelimit"
	"github.com/sawpanic/aggrun/internal/retry"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// UpstreamDefaults is one upstream's default rate limit, batch size and
// retry budget, as loaded from defaults.yaml.
type UpstreamDefaults struct {
	BaseURL        string `yaml:"base_url"`
	RatePoints     int    `yaml:"rate_points"`
	RateDurationMS int    `yaml:"rate_duration_ms"`
	BatchSize      int    `yaml:"batch_size"`
	MaxRetries     int    `yaml:"max_retries"`
}

// defaultsDoc is the shape of the embedded YAML document.
type defaultsDoc struct {
	Upstreams map[string]UpstreamDefaults `yaml:"upstreams"`
	Cache     struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`
	UpdateIntervalSeconds int `yaml:"update_interval_seconds"`
	MaxTokens             int `yaml:"max_tokens"`
	ListenPort            int `yaml:"listen_port"`
}

// Config holds every environment-overridable setting the core
// aggregator needs.
type Config struct {
	CacheURL       string
	CacheTTL       time.Duration
	UpdateInterval time.Duration
	MaxTokens      int
	ListenPort     int

	DexBaseURL     string
	MarketBaseURL  string

	RateLimits map[string]ratelimit.Config
	BatchSizes map[string]int
	RetryCfg   retry.Config
}

// Load reads defaults.yaml, then overrides with any documented
// environment variables that are set.
func Load() (Config, error) {
	var doc defaultsDoc
	if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
		return Config{}, domain.NewConfigError("parse embedded defaults: %v", err)
	}

	dexDefaults, ok := doc.Upstreams["dex"]
	if !ok {
		return Config{}, domain.NewConfigError("embedded defaults missing upstream %q", "dex")
	}
	marketDefaults, ok := doc.Upstreams["market"]
	if !ok {
		return Config{}, domain.NewConfigError("embedded defaults missing upstream %q", "market")
	}

	cfg := Config{
		CacheURL:       envOr("CACHE_URL", "redis://127.0.0.1:6379/0"),
		CacheTTL:       envDurationSeconds("CACHE_TTL", doc.Cache.TTLSeconds),
		UpdateInterval: envDurationSeconds("UPDATE_INTERVAL", doc.UpdateIntervalSeconds),
		MaxTokens:      envInt("MAX_TOKENS", doc.MaxTokens),
		ListenPort:     envInt("LISTEN_PORT", doc.ListenPort),

		DexBaseURL:    envOr("DEX_BASE_URL", dexDefaults.BaseURL),
		MarketBaseURL: envOr("MARKET_BASE_URL", marketDefaults.BaseURL),

		RateLimits: map[string]ratelimit.Config{
			"dex": {
				Points:   envInt("DEX_RATE_POINTS", dexDefaults.RatePoints),
				Duration: time.Duration(envInt("DEX_RATE_DURATION_MS", dexDefaults.RateDurationMS)) * time.Millisecond,
			},
			"market": {
				Points:   envInt("MARKET_RATE_POINTS", marketDefaults.RatePoints),
				Duration: time.Duration(envInt("MARKET_RATE_DURATION_MS", marketDefaults.RateDurationMS)) * time.Millisecond,
			},
		},
		BatchSizes: map[string]int{
			"dex":    envInt("BATCH_SIZE", dexDefaults.BatchSize),
			"market": envInt("BATCH_SIZE", marketDefaults.BatchSize),
		},
		RetryCfg: retry.Config{
			MaxAttempts: envInt("MAX_RETRIES", dexDefaults.MaxRetries),
			BaseDelay:   time.Second,
		},
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationSeconds(key string, fallbackSeconds int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return time.Duration(fallbackSeconds) * time.Second
}

// String renders a human-readable summary for startup logging.
func (c Config) String() string {
	return fmt.Sprintf(
		"cache_ttl=%s update_interval=%s max_tokens=%d listen_port=%d",
		c.CacheTTL, c.UpdateInterval, c.MaxTokens, c.ListenPort,
	)
}
