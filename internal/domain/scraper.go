package domain

import "time"

// RunStatus is the outcome of a single scraper invocation.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
	// RunLockDenied means another instance of the same job held the advisory
	// lock. Expected under overlapping manual+scheduled triggers; not an error.
	RunLockDenied RunStatus = "lock_denied"
)

// ScraperJobConfig is the declarative, in-process description of one
// ingestion job. Initialized at process start from defaults, mutated after
// every run with new rolling statistics. Never persisted; the audit trail of
// runs lives in ScraperRunLog records.
type ScraperJobConfig struct {
	ID       string
	Name     string
	Enabled  bool
	Schedule string // cron expression evaluated by the external invoker
	Endpoint string // HTTP endpoint the orchestrator invokes

	// Rolling statistics.
	SuccessRate       float64 // exponentially nudged toward 100 or 0
	AvgDurationMs     float64 // exponential moving average
	ConsecutiveErrors int
	LastRunAt         time.Time
	LastStatus        RunStatus

	// Job-specific tunables.
	Keywords            []string
	ConfidenceThreshold float64
}

// ScraperRunLog is the append-only audit record of one job invocation.
// Corresponds to the scraper_run_logs table in PostgreSQL.
type ScraperRunLog struct {
	ID         int64
	JobID      string
	Status     RunStatus
	Found      int
	New        int
	DurationMs int64
	Error      string // empty unless Status == RunFailure
	StartedAt  time.Time
	CreatedAt  time.Time
}
