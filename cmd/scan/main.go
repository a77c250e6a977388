// Package main runs one scraper job to completion and prints its result.
// Useful for cron-less deployments and for debugging a single source.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/config"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/registry"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/scraper"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/memory"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/migrations"
	pgstore "github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to yaml config")
	jobID := flag.String("job", "hkex-scraper", "job to run: hkex-scraper or szse-scraper")
	lockWait := flag.Duration("lock-wait", 0, "how long to wait for the job's advisory lock; 0 fails fast")
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

	job, cleanup, err := buildJob(ctx, cfg, *jobID, *lockWait, logger)
	if err != nil {
		logger.Fatal("build job", zap.Error(err))
	}
	defer cleanup()

	res := job.Run(ctx)

	out := map[string]interface{}{
		"job":    *jobID,
		"status": res.Status,
		"found":  res.Found,
		"new":    res.New,
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	if len(res.Failures) > 0 {
		failures := make([]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			failures = append(failures, fmt.Sprintf("%s: %v", f.URL, f.Err))
		}
		out["failures"] = failures
	}
	json.NewEncoder(os.Stdout).Encode(out) //nolint:errcheck

	if res.Status == domain.RunFailure {
		os.Exit(1)
	}
}

func buildJob(ctx context.Context, cfg *config.Config, jobID string, lockWait time.Duration, logger *zap.Logger) (*scraper.Job, func(), error) {
	opts := scraper.JobOptions{
		ID:                  jobID,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Lookback:            cfg.Lookback,
		Parallelism:         cfg.Parallelism,
		LockWait:            lockWait,
		Logger:              logger,
	}

	switch jobID {
	case "hkex-scraper":
		opts.Source = scraper.NewHKEXSource()
		opts.FilingSource = domain.SourceHKEX
		opts.TickerSuffix = ".HK"
		opts.ListingVenue = "HKEX"
		opts.Region = "HK"
	case "szse-scraper":
		opts.Source = scraper.NewSZSESource()
		opts.FilingSource = domain.SourceSZSE
		opts.TickerSuffix = ".SZ"
		opts.ListingVenue = "SZSE"
		opts.Region = "CN"
	default:
		return nil, nil, fmt.Errorf("unknown job %q", jobID)
	}

	cleanup := func() {}
	if cfg.UseMemory {
		opts.Entities = memory.NewEntityStore()
		opts.Filings = memory.NewFilingStore()
		opts.Snapshots = memory.NewSnapshotStore()
		opts.Locker = memory.NewAdvisoryLocker()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		opts.Entities = pgstore.NewEntityStore(pool)
		opts.Filings = pgstore.NewFilingStore(pool)
		opts.Snapshots = pgstore.NewSnapshotStore(pool)
		opts.Locker = pgstore.NewAdvisoryLocker(pool)
		cleanup = pool.Close
	}

	opts.Resolver = registry.NewResolver(opts.Entities, logger)
	return scraper.NewJob(opts), cleanup, nil
}
