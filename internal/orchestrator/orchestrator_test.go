package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/memory"
)

func jobHandler(status domain.RunStatus, found, newCount int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"found":  found,
			"new":    newCount,
		})
	}
}

func testJobs() []*domain.ScraperJobConfig {
	return []*domain.ScraperJobConfig{
		{ID: "hkex-scraper", Name: "HKEX", Enabled: true, Schedule: "0 */6 * * *", Endpoint: "/internal/jobs/hkex-scraper", SuccessRate: 100},
		{ID: "szse-scraper", Name: "SZSE", Enabled: true, Schedule: "30 */6 * * *", Endpoint: "/internal/jobs/szse-scraper", SuccessRate: 100},
	}
}

func TestRunScraper_Success(t *testing.T) {
	srv := httptest.NewServer(jobHandler(domain.RunSuccess, 7, 3))
	defer srv.Close()

	runLogs := memory.NewRunLogStore()
	o := New(Options{Jobs: testJobs(), BaseURL: srv.URL, RunLogs: runLogs})

	outcome, err := o.RunScraper(context.Background(), "hkex-scraper")
	if err != nil {
		t.Fatalf("RunScraper failed: %v", err)
	}
	if outcome.Status != domain.RunSuccess {
		t.Errorf("Expected success, got %s", outcome.Status)
	}
	if outcome.Found != 7 || outcome.New != 3 {
		t.Errorf("Counts not forwarded: found=%d new=%d", outcome.Found, outcome.New)
	}

	job, ok := o.Job("hkex-scraper")
	if !ok {
		t.Fatal("Job lookup failed")
	}
	if job.SuccessRate != 100 {
		t.Errorf("Success on a healthy job must keep rate at 100, got %.1f", job.SuccessRate)
	}
	if job.LastStatus != domain.RunSuccess {
		t.Errorf("LastStatus not updated: %s", job.LastStatus)
	}
	if job.LastRunAt.IsZero() {
		t.Error("LastRunAt not updated")
	}

	logs, err := runLogs.GetByJob(context.Background(), "hkex-scraper", 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("Expected 1 run log, got %d (err=%v)", len(logs), err)
	}
	if logs[0].Found != 7 || logs[0].New != 3 {
		t.Errorf("Run log counts wrong: %+v", logs[0])
	}
}

func TestRunScraper_RejectsUnknownAndDisabled(t *testing.T) {
	jobs := testJobs()
	jobs[1].Enabled = false
	o := New(Options{Jobs: jobs, RunLogs: memory.NewRunLogStore()})

	if _, err := o.RunScraper(context.Background(), "nasdaq-scraper"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Expected ErrUnknownJob, got %v", err)
	}
	if _, err := o.RunScraper(context.Background(), "szse-scraper"); !errors.Is(err, ErrJobDisabled) {
		t.Errorf("Expected ErrJobDisabled, got %v", err)
	}
}

func TestRunScraper_FailureNudgesRateAndStreak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	runLogs := memory.NewRunLogStore()
	o := New(Options{Jobs: testJobs(), BaseURL: srv.URL, RunLogs: runLogs})

	var lastRate float64 = 100
	for i := 1; i <= 3; i++ {
		outcome, err := o.RunScraper(context.Background(), "hkex-scraper")
		if err != nil {
			t.Fatalf("RunScraper failed: %v", err)
		}
		if outcome.Status != domain.RunFailure {
			t.Fatalf("Expected failure, got %s", outcome.Status)
		}
		if outcome.Err == nil {
			t.Fatal("Expected endpoint error in outcome")
		}

		job, _ := o.Job("hkex-scraper")
		if job.SuccessRate >= lastRate {
			t.Errorf("Run %d: rate must decay, got %.1f after %.1f", i, job.SuccessRate, lastRate)
		}
		if job.ConsecutiveErrors != i {
			t.Errorf("Run %d: expected streak %d, got %d", i, i, job.ConsecutiveErrors)
		}
		lastRate = job.SuccessRate
	}

	logs, _ := runLogs.GetByJob(context.Background(), "hkex-scraper", 10)
	if len(logs) != 3 {
		t.Fatalf("Expected 3 run logs, got %d", len(logs))
	}
	if logs[0].Error == "" {
		t.Error("Failure run log must carry the error text")
	}
}

func TestRunScraper_SuccessResetsStreak(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		jobHandler(domain.RunSuccess, 1, 0)(w, r)
	}))
	defer srv.Close()

	o := New(Options{Jobs: testJobs(), BaseURL: srv.URL, RunLogs: memory.NewRunLogStore()})

	o.RunScraper(context.Background(), "hkex-scraper")
	o.RunScraper(context.Background(), "hkex-scraper")
	fail.Store(false)
	o.RunScraper(context.Background(), "hkex-scraper")

	job, _ := o.Job("hkex-scraper")
	if job.ConsecutiveErrors != 0 {
		t.Errorf("Success must reset the streak, got %d", job.ConsecutiveErrors)
	}
	if job.SuccessRate <= 64 || job.SuccessRate >= 100 {
		t.Errorf("Rate should partially recover, got %.1f", job.SuccessRate)
	}
}

func TestRunScraper_LockDeniedLeavesStatsAlone(t *testing.T) {
	srv := httptest.NewServer(jobHandler(domain.RunLockDenied, 0, 0))
	defer srv.Close()

	runLogs := memory.NewRunLogStore()
	o := New(Options{Jobs: testJobs(), BaseURL: srv.URL, RunLogs: runLogs})

	outcome, err := o.RunScraper(context.Background(), "hkex-scraper")
	if err != nil {
		t.Fatalf("RunScraper failed: %v", err)
	}
	if outcome.Status != domain.RunLockDenied {
		t.Fatalf("Expected lock_denied, got %s", outcome.Status)
	}

	job, _ := o.Job("hkex-scraper")
	if job.SuccessRate != 100 || job.ConsecutiveErrors != 0 {
		t.Errorf("Lock denial must not touch stats: rate=%.1f streak=%d", job.SuccessRate, job.ConsecutiveErrors)
	}

	// The attempt is still audited
	logs, _ := runLogs.GetByJob(context.Background(), "hkex-scraper", 10)
	if len(logs) != 1 || logs[0].Status != domain.RunLockDenied {
		t.Fatalf("Expected 1 lock_denied run log, got %+v", logs)
	}
}

func TestRunAllActive_SequentialAndResilient(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/internal/jobs/hkex-scraper", func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		if cur > maxInFlight.Load() {
			maxInFlight.Store(cur)
		}
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/internal/jobs/szse-scraper", func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		if cur > maxInFlight.Load() {
			maxInFlight.Store(cur)
		}
		time.Sleep(20 * time.Millisecond)
		jobHandler(domain.RunSuccess, 2, 1)(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := New(Options{Jobs: testJobs(), BaseURL: srv.URL, RunLogs: memory.NewRunLogStore()})

	outcomes := o.RunAllActive(context.Background())
	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status != domain.RunFailure {
		t.Errorf("First job should have failed, got %s", outcomes[0].Status)
	}
	if outcomes[1].Status != domain.RunSuccess {
		t.Errorf("Sweep must continue past a failure, second got %s", outcomes[1].Status)
	}
	if maxInFlight.Load() != 1 {
		t.Errorf("Jobs must run sequentially, saw %d in flight", maxInFlight.Load())
	}
}

func TestRunAllActive_SkipsDisabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		jobHandler(domain.RunSuccess, 0, 0)(w, r)
	}))
	defer srv.Close()

	jobs := testJobs()
	jobs[0].Enabled = false
	o := New(Options{Jobs: jobs, BaseURL: srv.URL, RunLogs: memory.NewRunLogStore()})

	outcomes := o.RunAllActive(context.Background())
	if len(outcomes) != 1 || outcomes[0].JobID != "szse-scraper" {
		t.Fatalf("Expected only the enabled job, got %+v", outcomes)
	}
	if hits.Load() != 1 {
		t.Errorf("Disabled job endpoint must not be hit, saw %d calls", hits.Load())
	}
}

func TestSystemHealth(t *testing.T) {
	jobs := testJobs()
	jobs[0].SuccessRate = 90
	jobs[1].SuccessRate = 70
	o := New(Options{Jobs: jobs, RunLogs: memory.NewRunLogStore()})
	o.now = func() time.Time { return time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC) }

	health := o.SystemHealth()
	if health.TotalJobs != 2 || health.EnabledJobs != 2 {
		t.Errorf("Job counts wrong: %+v", health)
	}
	if health.AvgSuccessRate != 80 {
		t.Errorf("Expected avg rate 80, got %.1f", health.AvgSuccessRate)
	}

	// "0 */6 * * *" at 11:00 → next fire 12:00
	want := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	if !health.Jobs[0].NextRunAt.Equal(want) {
		t.Errorf("Next run mis-computed: got %v, want %v", health.Jobs[0].NextRunAt, want)
	}
}

func TestSystemHealth_DisabledJobHasNoNextRun(t *testing.T) {
	jobs := testJobs()
	jobs[1].Enabled = false
	o := New(Options{Jobs: jobs, RunLogs: memory.NewRunLogStore()})

	health := o.SystemHealth()
	if health.EnabledJobs != 1 {
		t.Errorf("Expected 1 enabled job, got %d", health.EnabledJobs)
	}
	if !health.Jobs[1].NextRunAt.IsZero() {
		t.Errorf("Disabled job must have zero next run, got %v", health.Jobs[1].NextRunAt)
	}
}

func TestRecommendations(t *testing.T) {
	jobs := []*domain.ScraperJobConfig{
		{ID: "hkex-scraper", Enabled: true, SuccessRate: 45, ConsecutiveErrors: 4, LastRunAt: time.Now(), AvgDurationMs: 200_000},
		{ID: "szse-scraper", Enabled: false},
		{ID: "healthy-scraper", Enabled: true, SuccessRate: 98, LastRunAt: time.Now(), AvgDurationMs: 3_000},
	}
	o := New(Options{Jobs: jobs, RunLogs: memory.NewRunLogStore()})

	recs := o.Recommendations()
	if len(recs) != 4 {
		t.Fatalf("Expected 4 recommendations, got %d: %v", len(recs), recs)
	}

	var disabled, streak, lowRate, slow bool
	for _, r := range recs {
		switch {
		case r == "szse-scraper is disabled; no new filings are being ingested from it":
			disabled = true
		case r == "hkex-scraper has failed 4 times in a row; check the source endpoint":
			streak = true
		case r == "hkex-scraper success rate is 45%; investigate recent run logs":
			lowRate = true
		case r == "hkex-scraper averages 200s per run; consider narrowing its lookback window":
			slow = true
		}
	}
	if !disabled || !streak || !lowRate || !slow {
		t.Errorf("Missing recommendation: disabled=%v streak=%v lowRate=%v slow=%v\n%v",
			disabled, streak, lowRate, slow, recs)
	}
}

func TestRecommendations_HealthyFleetIsQuiet(t *testing.T) {
	o := New(Options{RunLogs: memory.NewRunLogStore()})
	if recs := o.Recommendations(); len(recs) != 0 {
		t.Errorf("Fresh default fleet must produce no warnings, got %v", recs)
	}
}

func TestSetEnabled(t *testing.T) {
	o := New(Options{Jobs: testJobs(), RunLogs: memory.NewRunLogStore()})

	if err := o.SetEnabled("hkex-scraper", false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	job, _ := o.Job("hkex-scraper")
	if job.Enabled {
		t.Error("Job should be disabled")
	}

	if err := o.SetEnabled("nope", true); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Expected ErrUnknownJob, got %v", err)
	}
}
