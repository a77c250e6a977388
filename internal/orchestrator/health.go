package orchestrator

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

// JobHealth is one job's current standing.
type JobHealth struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Enabled           bool             `json:"enabled"`
	SuccessRate       float64          `json:"success_rate"`
	AvgDurationMs     float64          `json:"avg_duration_ms"`
	ConsecutiveErrors int              `json:"consecutive_errors"`
	LastRunAt         time.Time        `json:"last_run_at"`
	LastStatus        domain.RunStatus `json:"last_status,omitempty"`
	// NextRunAt is zero when the job is disabled or its schedule is invalid.
	NextRunAt time.Time `json:"next_run_at"`
}

// Health is the fleet-wide aggregate served by the status endpoint.
type Health struct {
	TotalJobs      int         `json:"total_jobs"`
	EnabledJobs    int         `json:"enabled_jobs"`
	AvgSuccessRate float64     `json:"avg_success_rate"`
	Jobs           []JobHealth `json:"jobs"`
}

// SystemHealth snapshots every job's stats and schedule under one lock
// acquisition. The average success rate covers enabled jobs only.
func (o *Orchestrator) SystemHealth() *Health {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	health := &Health{
		TotalJobs: len(o.order),
		Jobs:      make([]JobHealth, 0, len(o.order)),
	}

	var rateSum float64
	for _, id := range o.order {
		job := o.jobs[id]
		jh := JobHealth{
			ID:                job.ID,
			Name:              job.Name,
			Enabled:           job.Enabled,
			SuccessRate:       job.SuccessRate,
			AvgDurationMs:     job.AvgDurationMs,
			ConsecutiveErrors: job.ConsecutiveErrors,
			LastRunAt:         job.LastRunAt,
			LastStatus:        job.LastStatus,
		}
		if job.Enabled {
			health.EnabledJobs++
			rateSum += job.SuccessRate
			if sched, err := cron.ParseStandard(job.Schedule); err == nil {
				jh.NextRunAt = sched.Next(now)
			}
		}
		health.Jobs = append(health.Jobs, jh)
	}

	if health.EnabledJobs > 0 {
		health.AvgSuccessRate = rateSum / float64(health.EnabledJobs)
	}
	return health
}
