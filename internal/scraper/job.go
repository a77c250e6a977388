package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/extraction"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/ratelimit"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/registry"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/retry"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

const (
	defaultLookback            = 30 * 24 * time.Hour
	defaultParallelism         = 4
	defaultConfidenceThreshold = 0.7
	defaultSlotWait            = 10 * time.Second
)

// DocumentFailure records one document that could not be processed.
type DocumentFailure struct {
	URL string
	Err error
}

// Result is the outcome of one job run. Failures lists per-document
// problems that did not abort the run; Err is set only on job-level failure.
type Result struct {
	Status   domain.RunStatus
	Found    int
	New      int
	Failures []DocumentFailure
	Err      error
}

// JobOptions configures a scraper job. Zero-value fields get defaults.
type JobOptions struct {
	ID     string
	Source Source

	// How this source's documents map onto the data model.
	FilingSource domain.FilingSource
	TickerSuffix string // e.g. ".HK"; issuer code 0434 becomes ticker 0434.HK
	ListingVenue string
	Region       string

	Entities  storage.EntityStore
	Filings   storage.FilingStore
	Snapshots storage.SnapshotStore
	Locker    storage.AdvisoryLocker
	Resolver  *registry.Resolver
	Limiters  *ratelimit.Registry

	Keywords            []string
	ConfidenceThreshold float64
	Lookback            time.Duration
	Parallelism         int
	// LockWait is how long Run polls for the advisory lock before giving
	// up with a lock-denied result. Zero means a single attempt.
	LockWait time.Duration
	Retry    *retry.Options
	Logger   *zap.Logger
}

// Job is one advisory-lock-guarded ingestion job for a single source.
type Job struct {
	id           string
	source       Source
	filingSource domain.FilingSource
	tickerSuffix string
	listingVenue string
	region       string

	entities  storage.EntityStore
	filings   storage.FilingStore
	snapshots storage.SnapshotStore
	locker    storage.AdvisoryLocker
	resolver  *registry.Resolver
	limiters  *ratelimit.Registry

	keywords            []string
	confidenceThreshold float64
	lookback            time.Duration
	parallelism         int
	lockWait            time.Duration
	retryOpts           retry.Options
	logger              *zap.Logger

	// Serializes snapshot reads-then-appends across parallel documents.
	snapMu sync.Mutex
}

// NewJob creates a Job from opts.
func NewJob(opts JobOptions) *Job {
	j := &Job{
		id:                  opts.ID,
		source:              opts.Source,
		filingSource:        opts.FilingSource,
		tickerSuffix:        opts.TickerSuffix,
		listingVenue:        opts.ListingVenue,
		region:              opts.Region,
		entities:            opts.Entities,
		filings:             opts.Filings,
		snapshots:           opts.Snapshots,
		locker:              opts.Locker,
		resolver:            opts.Resolver,
		limiters:            opts.Limiters,
		keywords:            opts.Keywords,
		confidenceThreshold: opts.ConfidenceThreshold,
		lookback:            opts.Lookback,
		parallelism:         opts.Parallelism,
		lockWait:            opts.LockWait,
		retryOpts:           retry.DefaultOptions,
		logger:              opts.Logger,
	}
	if j.limiters == nil {
		j.limiters = ratelimit.DefaultRegistry()
	}
	if len(j.keywords) == 0 {
		j.keywords = extraction.DiscoveryKeywords()
	}
	if j.confidenceThreshold <= 0 {
		j.confidenceThreshold = defaultConfidenceThreshold
	}
	if j.lookback <= 0 {
		j.lookback = defaultLookback
	}
	if j.parallelism < 1 {
		j.parallelism = defaultParallelism
	}
	if opts.Retry != nil {
		j.retryOpts = *opts.Retry
	}
	if j.logger == nil {
		j.logger = zap.NewNop()
	}
	return j
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// LockName is the advisory lock key serializing runs of this job.
func (j *Job) LockName() string { return "scraper:" + j.id }

// Run executes one scan: acquire the lock (denial is a distinct non-error
// result), walk known entities, discover new issuers, release the lock on
// every path. Per-document failures are collected, never fatal.
func (j *Job) Run(ctx context.Context) *Result {
	res := &Result{Status: domain.RunSuccess}

	acquired, err := WaitForLock(ctx, j.locker, j.LockName(), j.lockWait)
	if err != nil {
		res.Status = domain.RunFailure
		res.Err = fmt.Errorf("acquire lock %s: %w", j.LockName(), err)
		return res
	}
	if !acquired {
		res.Status = domain.RunLockDenied
		j.logger.Info("scan already in progress", zap.String("job", j.id))
		return res
	}
	defer func() {
		// Detached from ctx: a cancelled run must still release the lock.
		if err := j.locker.Unlock(context.WithoutCancel(ctx), j.LockName()); err != nil {
			j.logger.Error("release advisory lock failed",
				zap.String("job", j.id), zap.Error(err))
		}
	}()

	since := time.Now().Add(-j.lookback)

	if err := j.scanKnownEntities(ctx, since, res); err != nil {
		res.Status = domain.RunFailure
		res.Err = err
		return res
	}
	if err := j.discover(ctx, since, res); err != nil {
		res.Status = domain.RunFailure
		res.Err = err
		return res
	}

	j.logger.Info("scan complete",
		zap.String("job", j.id),
		zap.Int("found", res.Found),
		zap.Int("new", res.New),
		zap.Int("failures", len(res.Failures)))
	return res
}

// scanKnownEntities walks every tracked entity listed on this source and
// processes its full recent document list. Entity-level iteration stays
// sequential and limiter-gated; documents within one entity are processed
// with bounded parallelism.
func (j *Job) scanKnownEntities(ctx context.Context, since time.Time, res *Result) error {
	entities, err := j.entities.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}

		code := j.issuerCode(entity.Ticker)
		if code == "" {
			continue
		}

		if !j.waitForSlot(ctx) {
			res.Failures = append(res.Failures, DocumentFailure{
				URL: "recent:" + code,
				Err: fmt.Errorf("no rate limit slot for %s", j.source.Name()),
			})
			continue
		}

		docs, err := j.source.RecentFilings(ctx, code, since)
		if err != nil {
			res.Failures = append(res.Failures, DocumentFailure{
				URL: "recent:" + code,
				Err: fmt.Errorf("fetch recent filings: %w", err),
			})
			continue
		}

		j.processDocuments(ctx, entity, docs, res)
	}
	return nil
}

// discover runs the entity-agnostic keyword search and registers previously
// untracked issuers as placeholder entities.
func (j *Job) discover(ctx context.Context, since time.Time, res *Result) error {
	for _, keyword := range j.keywords {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !j.waitForSlot(ctx) {
			res.Failures = append(res.Failures, DocumentFailure{
				URL: "search:" + keyword,
				Err: fmt.Errorf("no rate limit slot for %s", j.source.Name()),
			})
			continue
		}

		docs, err := j.source.Search(ctx, keyword, since)
		if err != nil {
			res.Failures = append(res.Failures, DocumentFailure{
				URL: "search:" + keyword,
				Err: fmt.Errorf("keyword search: %w", err),
			})
			continue
		}

		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if doc.IssuerCode == "" || !extraction.IsBitcoinRelated(doc.Title) {
				continue
			}

			entity, created, err := j.resolver.Resolve(ctx, &registry.EntityInput{
				Ticker:       doc.IssuerCode + j.tickerSuffix,
				ListingVenue: j.listingVenue,
				Region:       j.region,
			})
			if err != nil {
				res.Failures = append(res.Failures, DocumentFailure{URL: doc.URL, Err: err})
				continue
			}
			if created {
				j.logger.Info("discovered untracked issuer",
					zap.String("job", j.id),
					zap.String("ticker", entity.Ticker),
					zap.String("title", doc.Title))
			}

			res.Found++
			inserted, err := j.processDocument(ctx, entity, doc)
			if err != nil {
				res.Failures = append(res.Failures, DocumentFailure{URL: doc.URL, Err: err})
				continue
			}
			if inserted {
				res.New++
			}
		}
	}
	return nil
}

// processDocuments runs processDocument over docs with bounded parallelism,
// collecting failures into res under a mutex.
func (j *Job) processDocuments(ctx context.Context, entity *domain.Entity, docs []SourceDocument, res *Result) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(j.parallelism)

	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			inserted, err := j.processDocument(ctx, entity, doc)

			mu.Lock()
			defer mu.Unlock()
			res.Found++
			if err != nil {
				res.Failures = append(res.Failures, DocumentFailure{URL: doc.URL, Err: err})
				return nil
			}
			if inserted {
				res.New++
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-document errors are collected, never returned
}

// processDocument extracts facts from one document and upserts its filing.
// Returns whether a new row was inserted.
func (j *Job) processDocument(ctx context.Context, entity *domain.Entity, doc SourceDocument) (bool, error) {
	info := extraction.ExtractAmountInfo(doc.Title)
	related := extraction.IsBitcoinRelated(doc.Title)
	confidence := extraction.Confidence(info)

	filing := &domain.RawFiling{
		EntityID:       entity.ID,
		BTC:            headlineAmount(info),
		BTCDelta:       info.Delta,
		BTCTotal:       info.Total,
		DisclosedAt:    doc.Date,
		PDFURL:         doc.URL,
		Source:         j.filingSource,
		Title:          doc.Title,
		FilingType:     extraction.DetermineFilingType(info),
		Confidence:     confidence,
		BitcoinRelated: related,
	}

	outcome, err := registry.UpsertFiling(ctx, j.filings, filing, j.retryOpts)
	if err != nil {
		return false, err
	}

	if related && info.Total != nil && !info.FallbackTotal && confidence >= j.confidenceThreshold {
		if err := j.recordSnapshot(ctx, entity, filing); err != nil {
			return outcome == storage.UpsertInserted, fmt.Errorf("record snapshot: %w", err)
		}
	}

	return outcome == storage.UpsertInserted, nil
}

// recordSnapshot appends a holdings snapshot when the document discloses a
// total newer than the entity's latest, and rolls the aggregate forward.
func (j *Job) recordSnapshot(ctx context.Context, entity *domain.Entity, filing *domain.RawFiling) error {
	j.snapMu.Lock()
	defer j.snapMu.Unlock()

	latest, err := j.snapshots.Latest(ctx, entity.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if latest != nil && !filing.DisclosedAt.After(latest.LastDisclosed) {
		return nil
	}

	_, err = j.snapshots.Insert(ctx, &domain.HoldingsSnapshot{
		EntityID:      entity.ID,
		BTC:           *filing.BTCTotal,
		LastDisclosed: filing.DisclosedAt,
		SourceURL:     filing.PDFURL,
		Provenance:    domain.ProvenanceFiling,
	})
	if err != nil {
		return err
	}

	entity.HoldingsBTC = *filing.BTCTotal
	if err := j.entities.Update(ctx, entity); err != nil {
		return fmt.Errorf("roll holdings forward: %w", err)
	}
	return nil
}

// issuerCode maps a ticker onto this source's issuer numbering, or empty
// when the entity is not listed here.
func (j *Job) issuerCode(ticker string) string {
	if j.tickerSuffix == "" || !strings.HasSuffix(ticker, j.tickerSuffix) {
		return ""
	}
	return strings.TrimSuffix(ticker, j.tickerSuffix)
}

func (j *Job) waitForSlot(ctx context.Context) bool {
	limiter := j.limiters.Get(j.source.Name())
	if limiter == nil {
		return true
	}
	return limiter.WaitForSlot(ctx, j.source.Name(), defaultSlotWait)
}

// headlineAmount is the single amount shown to readers: the transaction
// delta when present, otherwise the disclosed total.
func headlineAmount(info extraction.AmountInfo) *decimal.Decimal {
	if info.Delta != nil {
		return info.Delta
	}
	return info.Total
}
