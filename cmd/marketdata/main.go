// Package main refreshes market quotes for every tracked entity, writing
// each successful fetch to the ClickHouse quote history when configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/config"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/marketdata"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
	chstore "github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/clickhouse"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/memory"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/migrations"
	pgstore "github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("market data refresh", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	entities, history, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fetcher := marketdata.NewFetcher(marketdata.FetcherOptions{
		Providers: []marketdata.Provider{
			marketdata.NewFMPProvider(cfg.FMPAPIKey),
			marketdata.NewYahooProvider(),
			marketdata.NewFinnhubProvider(cfg.FinnhubAPIKey),
		},
		Cache:   marketdata.NewCache(cfg.QuoteCacheTTL),
		History: history,
		Logger:  logger,
	})

	all, err := entities.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	tickers := make([]string, 0, len(all))
	for _, e := range all {
		tickers = append(tickers, e.Ticker)
	}
	if len(tickers) == 0 {
		logger.Info("no tracked entities, nothing to refresh")
		return nil
	}

	quotes, err := fetcher.BatchFetch(ctx, tickers)
	if err != nil {
		return fmt.Errorf("batch fetch: %w", err)
	}

	logger.Info("refresh complete",
		zap.Int("tickers", len(tickers)),
		zap.Int("quoted", len(quotes)),
		zap.Int("missed", len(tickers)-len(quotes)))
	return nil
}

func createStores(ctx context.Context, cfg *config.Config) (storage.EntityStore, storage.QuoteHistoryStore, func(), error) {
	if cfg.UseMemory {
		return memory.NewEntityStore(), memory.NewQuoteHistoryStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	cleanup := pool.Close

	// Quote history is optional; without ClickHouse only the cache is fed.
	var history storage.QuoteHistoryStore
	if cfg.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		history = chstore.NewQuoteHistoryStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return pgstore.NewEntityStore(pool), history, cleanup, nil
}
