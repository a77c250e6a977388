// Package orchestrator drives the scraper fleet: it holds the declarative
// per-job configuration, invokes job endpoints over HTTP, maintains rolling
// statistics, and appends the persistent run audit trail.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/extraction"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

var (
	ErrUnknownJob  = errors.New("unknown scraper job")
	ErrJobDisabled = errors.New("scraper job is disabled")
)

const (
	// successAlpha weighs the newest run when nudging the rolling success
	// rate toward 100 (success) or 0 (failure).
	successAlpha = 0.2
	// durationAlpha weighs the newest run in the duration moving average.
	durationAlpha = 0.3

	defaultInvokeTimeout = 5 * time.Minute
)

// DefaultJobs is the static configuration the process starts from. Rolling
// statistics begin optimistic so a fresh deployment does not alarm.
func DefaultJobs() []*domain.ScraperJobConfig {
	return []*domain.ScraperJobConfig{
		{
			ID:                  "hkex-scraper",
			Name:                "HKEX filings scan",
			Enabled:             true,
			Schedule:            "0 */6 * * *",
			Endpoint:            "/internal/jobs/hkex-scraper",
			SuccessRate:         100,
			Keywords:            extraction.DiscoveryKeywords(),
			ConfidenceThreshold: 0.7,
		},
		{
			ID:                  "szse-scraper",
			Name:                "SZSE filings scan",
			Enabled:             true,
			Schedule:            "30 */6 * * *",
			Endpoint:            "/internal/jobs/szse-scraper",
			SuccessRate:         100,
			Keywords:            extraction.DiscoveryKeywords(),
			ConfidenceThreshold: 0.7,
		},
	}
}

// Options configures an Orchestrator. Zero-value fields get defaults.
type Options struct {
	// Jobs is the declarative job set; nil means DefaultJobs.
	Jobs []*domain.ScraperJobConfig
	// BaseURL prefixes relative job endpoints, e.g. "http://localhost:8080".
	BaseURL string
	RunLogs storage.RunLogStore
	Client  *http.Client
	Timeout time.Duration
	Logger  *zap.Logger
}

// Orchestrator owns the in-process job configuration. All stat mutations
// happen under its lock; the run audit trail goes through RunLogs.
type Orchestrator struct {
	mu    sync.Mutex
	jobs  map[string]*domain.ScraperJobConfig
	order []string

	baseURL string
	client  *http.Client
	timeout time.Duration
	runLogs storage.RunLogStore
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		jobs:    make(map[string]*domain.ScraperJobConfig),
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		client:  opts.Client,
		timeout: opts.Timeout,
		runLogs: opts.RunLogs,
		logger:  opts.Logger,
		now:     time.Now,
	}

	jobs := opts.Jobs
	if jobs == nil {
		jobs = DefaultJobs()
	}
	for _, job := range jobs {
		o.jobs[job.ID] = job
		o.order = append(o.order, job.ID)
	}

	if o.client == nil {
		o.client = &http.Client{}
	}
	if o.timeout <= 0 {
		o.timeout = defaultInvokeTimeout
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// RunOutcome is what one orchestrated invocation produced.
type RunOutcome struct {
	JobID    string
	Status   domain.RunStatus
	Found    int
	New      int
	Duration time.Duration
	Err      error
}

// jobResponse is the JSON body job endpoints return.
type jobResponse struct {
	Status domain.RunStatus `json:"status"`
	Found  int              `json:"found"`
	New    int              `json:"new"`
	Error  string           `json:"error,omitempty"`
}

// RunScraper invokes one job by id, updates its rolling statistics and
// appends a run log. Unknown and disabled jobs are rejected before any HTTP
// call. The returned outcome carries the job's own failure, if any; the
// error return is for orchestrator-level rejection only.
func (o *Orchestrator) RunScraper(ctx context.Context, id string) (*RunOutcome, error) {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}
	if !job.Enabled {
		o.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", id, ErrJobDisabled)
	}
	endpoint := o.resolveEndpoint(job.Endpoint)
	o.mu.Unlock()

	start := o.now()
	resp, err := o.invoke(ctx, endpoint)
	duration := o.now().Sub(start)

	outcome := &RunOutcome{JobID: id, Duration: duration}
	switch {
	case err != nil:
		outcome.Status = domain.RunFailure
		outcome.Err = err
	default:
		outcome.Status = resp.Status
		outcome.Found = resp.Found
		outcome.New = resp.New
		if resp.Status == domain.RunFailure && resp.Error != "" {
			outcome.Err = errors.New(resp.Error)
		}
	}

	o.recordRun(ctx, job, outcome, start)
	return outcome, nil
}

// RunAllActive runs every enabled job in declaration order and keeps going
// past individual failures. Jobs share downstream rate limits, so they run
// sequentially, never concurrently.
func (o *Orchestrator) RunAllActive(ctx context.Context) []*RunOutcome {
	o.mu.Lock()
	var active []string
	for _, id := range o.order {
		if o.jobs[id].Enabled {
			active = append(active, id)
		}
	}
	o.mu.Unlock()

	outcomes := make([]*RunOutcome, 0, len(active))
	for _, id := range active {
		if ctx.Err() != nil {
			break
		}
		outcome, err := o.RunScraper(ctx, id)
		if err != nil {
			// Raced with a concurrent disable; skip, don't abort the sweep
			o.logger.Warn("skipping job", zap.String("job", id), zap.Error(err))
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (o *Orchestrator) resolveEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	return o.baseURL + endpoint
}

func (o *Orchestrator) invoke(ctx context.Context, endpoint string) (*jobResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build job request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke job endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job endpoint returned status %d", resp.StatusCode)
	}

	var body jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	return &body, nil
}

// recordRun folds the outcome into the job's rolling statistics and appends
// the audit record. Lock denial means another instance is already running:
// the stats stay untouched, only the audit trail notes the attempt.
func (o *Orchestrator) recordRun(ctx context.Context, job *domain.ScraperJobConfig, outcome *RunOutcome, start time.Time) {
	durationMs := float64(outcome.Duration.Milliseconds())

	o.mu.Lock()
	job.LastRunAt = start
	job.LastStatus = outcome.Status
	switch outcome.Status {
	case domain.RunSuccess:
		job.SuccessRate += successAlpha * (100 - job.SuccessRate)
		job.ConsecutiveErrors = 0
		o.foldDuration(job, durationMs)
	case domain.RunFailure:
		job.SuccessRate += successAlpha * (0 - job.SuccessRate)
		job.ConsecutiveErrors++
		o.foldDuration(job, durationMs)
	}
	o.mu.Unlock()

	errText := ""
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	_, err := o.runLogs.Insert(ctx, &domain.ScraperRunLog{
		JobID:      job.ID,
		Status:     outcome.Status,
		Found:      outcome.Found,
		New:        outcome.New,
		DurationMs: outcome.Duration.Milliseconds(),
		Error:      errText,
		StartedAt:  start,
	})
	if err != nil {
		o.logger.Error("append run log failed",
			zap.String("job", job.ID), zap.Error(err))
	}
}

func (o *Orchestrator) foldDuration(job *domain.ScraperJobConfig, durationMs float64) {
	if job.AvgDurationMs == 0 {
		job.AvgDurationMs = durationMs
		return
	}
	job.AvgDurationMs += durationAlpha * (durationMs - job.AvgDurationMs)
}

// Job returns a copy of one job's current configuration and stats.
func (o *Orchestrator) Job(id string) (domain.ScraperJobConfig, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	if !ok {
		return domain.ScraperJobConfig{}, false
	}
	return *job, true
}

// SetEnabled flips a job's enablement flag.
func (o *Orchestrator) SetEnabled(id string, enabled bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}
	job.Enabled = enabled
	return nil
}
