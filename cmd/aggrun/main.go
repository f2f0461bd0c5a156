package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/aggrun/internal/broadcast"
	"github.com/sawpanic/aggrun/internal/config"
	"github.com/sawpanic/aggrun/internal/health"
	"github.com/sawpanic/aggrun/internal/metrics"
	"github.com/sawpanic/aggrun/internal/ratelimit"
	"github.com/sawpanic/aggrun/internal/scheduler"
	"github.com/sawpanic/aggrun/internal/store"
	transporthttp "github.com/sawpanic/aggrun/internal/transport/http"
	"github.com/sawpanic/aggrun/internal/transport/ws"
	"github.com/sawpanic/aggrun/internal/upstream"
	"github.com/sawpanic/aggrun/internal/upstream/dex"
	"github.com/sawpanic/aggrun/internal/upstream/market"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "aggrun",
		Short:   "Real-time fungible-token market-data aggregator",
		Version: version,
		RunE:    runServe,
	}
	rootCmd.Flags().String("dex-query", "solana", "Search query passed to the DEX indexer")
	rootCmd.Flags().String("vs-currency", "usd", "Quote currency for the market-data upstream")
	rootCmd.Flags().String("platform", "solana", "Platform id passed to the market-data upstream")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("aggrun exited with error")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	dexQuery, _ := cmd.Flags().GetString("dex-query")
	vsCurrency, _ := cmd.Flags().GetString("vs-currency")
	platform, _ := cmd.Flags().GetString("platform")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Info().Str("config", cfg.String()).Msg("loaded configuration")

	redisOpts, err := redis.ParseURL(cfg.CacheURL)
	if err != nil {
		return err
	}
	redisClient := redis.NewClient(redisOpts)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	snapshotStore := store.New(redisClient, cfg.CacheTTL, m, log.Logger)
	limiter := ratelimit.New(cfg.RateLimits)
	bcast := broadcast.New(log.Logger)
	healthTracker := health.NewTracker()

	adapters := []upstream.Adapter{
		dex.New(cfg.DexBaseURL, dexQuery, cfg.BatchSizes["dex"]),
		market.New(cfg.MarketBaseURL, vsCurrency, platform, cfg.BatchSizes["market"]),
	}

	schedulerCfg := scheduler.Config{
		UpdateInterval: cfg.UpdateInterval,
		MaxTokens:      cfg.MaxTokens,
		RetryConfig:    cfg.RetryCfg,
	}
	sched := scheduler.New(schedulerCfg, adapters, limiter, snapshotStore, bcast, healthTracker, m, log.Logger)

	hub := ws.New(bcast, log.Logger)
	apiServer := transporthttp.New(snapshotStore, healthTracker, bcast.SubscriberCount, log.Logger)

	mux := apiServer.Router()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/ws", hub)

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.ListenPort),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sched.Run(ctx)

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("read API and websocket listener starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining in-flight tick before closing listeners")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scheduler did not stop cleanly")
	}

	bcast.Close()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown did not complete cleanly")
	}

	if err := redisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("redis client did not close cleanly")
	}

	return nil
}
