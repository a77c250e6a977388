package orchestrator

import "fmt"

// Advisory thresholds. Purely informational; nothing acts on these.
const (
	lowSuccessRate = 80.0
	errorStreak    = 3
	slowRunMs      = 120_000.0
)

// Recommendations derives human-readable warnings from the current job
// stats. Advisory text only; no automated action is ever taken on it.
func (o *Orchestrator) Recommendations() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []string
	for _, id := range o.order {
		job := o.jobs[id]
		if !job.Enabled {
			out = append(out, fmt.Sprintf("%s is disabled; no new filings are being ingested from it", job.ID))
			continue
		}
		if job.ConsecutiveErrors >= errorStreak {
			out = append(out, fmt.Sprintf("%s has failed %d times in a row; check the source endpoint", job.ID, job.ConsecutiveErrors))
		}
		if job.LastRunAt.IsZero() {
			continue
		}
		if job.SuccessRate < lowSuccessRate {
			out = append(out, fmt.Sprintf("%s success rate is %.0f%%; investigate recent run logs", job.ID, job.SuccessRate))
		}
		if job.AvgDurationMs > slowRunMs {
			out = append(out, fmt.Sprintf("%s averages %.0fs per run; consider narrowing its lookback window", job.ID, job.AvgDurationMs/1000))
		}
	}
	return out
}
