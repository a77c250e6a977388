package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/ratelimit"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/retry"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

const (
	// defaultSlotWait bounds how long a fetch waits on a vendor's limiter
	// before skipping to the next provider in the chain.
	defaultSlotWait = 5 * time.Second

	// Batch fan-out: small chunks with a pause between them so a large
	// ticker list does not burst any single vendor's limiter.
	defaultBatchSize  = 5
	defaultChunkDelay = 500 * time.Millisecond
)

// FetcherOptions configures a Fetcher. Zero-value fields get defaults.
type FetcherOptions struct {
	Providers []Provider
	Limiters  *ratelimit.Registry
	Cache     *Cache
	// History, when set, receives every successful fetch (append-only).
	History storage.QuoteHistoryStore
	Retry   *retry.Options
	Logger  *zap.Logger
}

// Fetcher resolves quotes through cache, then an ordered provider chain.
// The first provider returning a positive market cap wins; provider
// failures are logged and the chain continues.
type Fetcher struct {
	providers []Provider
	limiters  *ratelimit.Registry
	cache     *Cache
	history   storage.QuoteHistoryStore
	retryOpts retry.Options
	logger    *zap.Logger
	slotWait  time.Duration
}

// NewFetcher creates a Fetcher from opts.
func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		providers: opts.Providers,
		limiters:  opts.Limiters,
		cache:     opts.Cache,
		history:   opts.History,
		retryOpts: retry.DefaultOptions,
		logger:    opts.Logger,
		slotWait:  defaultSlotWait,
	}
	if f.limiters == nil {
		f.limiters = ratelimit.DefaultRegistry()
	}
	if f.cache == nil {
		f.cache = NewCache(DefaultCacheTTL)
	}
	if opts.Retry != nil {
		f.retryOpts = *opts.Retry
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Fetch returns market data for ticker, or (nil, nil) when every provider is
// exhausted. Callers must treat a nil result as "temporarily unavailable",
// not as a permanent absence of data.
func (f *Fetcher) Fetch(ctx context.Context, ticker string) (*domain.MarketData, error) {
	if data, ok := f.cache.Get(ticker); ok {
		return data, nil
	}

	for _, provider := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if limiter := f.limiters.Get(provider.Name()); limiter != nil {
			if !limiter.WaitForSlot(ctx, provider.Name(), f.slotWait) {
				f.logger.Warn("no rate limit slot, skipping provider",
					zap.String("provider", provider.Name()),
					zap.String("ticker", ticker))
				continue
			}
		}

		var data *domain.MarketData
		err := retry.Do(ctx, func() error {
			var qErr error
			data, qErr = provider.Quote(ctx, ticker)
			return qErr
		}, f.retryOpts)
		if err != nil {
			f.logger.Warn("provider failed",
				zap.String("provider", provider.Name()),
				zap.String("ticker", ticker),
				zap.Error(err))
			continue
		}
		if data == nil || !data.MarketCap.IsPositive() {
			continue
		}

		f.cache.Set(ticker, data)
		f.appendHistory(ctx, data)
		return data, nil
	}

	f.logger.Info("all providers exhausted", zap.String("ticker", ticker))
	return nil, nil
}

// BatchFetch resolves quotes for a list of tickers in fixed-size chunks with
// bounded concurrency inside each chunk and a delay between chunks. Tickers
// that could not be resolved are simply absent from the result.
func (f *Fetcher) BatchFetch(ctx context.Context, tickers []string) (map[string]*domain.MarketData, error) {
	results := make(map[string]*domain.MarketData, len(tickers))

	for start := 0; start < len(tickers); start += defaultBatchSize {
		end := start + defaultBatchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		chunk := tickers[start:end]

		chunkResults := make([]*domain.MarketData, len(chunk))
		g, gctx := errgroup.WithContext(ctx)
		for i, ticker := range chunk {
			g.Go(func() error {
				data, err := f.Fetch(gctx, ticker)
				if err != nil {
					return err
				}
				chunkResults[i] = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}
		for i, data := range chunkResults {
			if data != nil {
				results[chunk[i]] = data
			}
		}

		if end < len(tickers) {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(defaultChunkDelay):
			}
		}
	}
	return results, nil
}

// appendHistory is best-effort; a history failure never fails the fetch.
func (f *Fetcher) appendHistory(ctx context.Context, data *domain.MarketData) {
	if f.history == nil {
		return
	}
	if err := f.history.InsertBulk(ctx, []*domain.MarketData{data}); err != nil {
		f.logger.Warn("append quote history failed",
			zap.String("ticker", data.Ticker),
			zap.Error(err))
	}
}
