// Package main runs the treasuries service: the HTTP API, the scraper job
// endpoints, and the orchestrator that drives them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/config"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/orchestrator"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/ratelimit"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/registry"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/scraper"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/memory"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/migrations"
	pgstore "github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/postgres"
)

// Server wires the stores, the scraper jobs and the orchestrator behind one
// HTTP surface.
type Server struct {
	cfg      *config.Config
	stores   *appStores
	resolver *registry.Resolver
	jobs     map[string]*scraper.Job
	orch     *orchestrator.Orchestrator
	logger   *zap.Logger
	started  time.Time
}

// appStores holds the storage implementations behind their interfaces.
type appStores struct {
	entities  storage.EntityStore
	filings   storage.FilingStore
	snapshots storage.SnapshotStore
	runLogs   storage.RunLogStore
	locker    storage.AdvisoryLocker
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	server := newServer(cfg, stores, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.routes(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

// createStores builds the storage layer: in-memory for local development,
// Postgres (with migrations applied) otherwise.
func createStores(ctx context.Context, cfg *config.Config) (*appStores, func(), error) {
	if cfg.UseMemory {
		stores := &appStores{
			entities:  memory.NewEntityStore(),
			filings:   memory.NewFilingStore(),
			snapshots: memory.NewSnapshotStore(),
			runLogs:   memory.NewRunLogStore(),
			locker:    memory.NewAdvisoryLocker(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	stores := &appStores{
		entities:  pgstore.NewEntityStore(pool),
		filings:   pgstore.NewFilingStore(pool),
		snapshots: pgstore.NewSnapshotStore(pool),
		runLogs:   pgstore.NewRunLogStore(pool),
		locker:    pgstore.NewAdvisoryLocker(pool),
	}
	return stores, pool.Close, nil
}

func newServer(cfg *config.Config, stores *appStores, logger *zap.Logger) *Server {
	resolver := registry.NewResolver(stores.entities, logger)
	limiters := ratelimit.DefaultRegistry()

	jobs := map[string]*scraper.Job{}
	for _, spec := range []struct {
		id           string
		source       scraper.Source
		filingSource domain.FilingSource
		suffix       string
		venue        string
		region       string
	}{
		{"hkex-scraper", scraper.NewHKEXSource(), domain.SourceHKEX, ".HK", "HKEX", "HK"},
		{"szse-scraper", scraper.NewSZSESource(), domain.SourceSZSE, ".SZ", "SZSE", "CN"},
	} {
		jobs[spec.id] = scraper.NewJob(scraper.JobOptions{
			ID:                  spec.id,
			Source:              spec.source,
			FilingSource:        spec.filingSource,
			TickerSuffix:        spec.suffix,
			ListingVenue:        spec.venue,
			Region:              spec.region,
			Entities:            stores.entities,
			Filings:             stores.filings,
			Snapshots:           stores.snapshots,
			Locker:              stores.locker,
			Resolver:            resolver,
			Limiters:            limiters,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			Lookback:            cfg.Lookback,
			Parallelism:         cfg.Parallelism,
			Logger:              logger,
		})
	}

	orch := orchestrator.New(orchestrator.Options{
		BaseURL: localBaseURL(cfg.ListenAddr),
		RunLogs: stores.runLogs,
		Logger:  logger,
	})

	return &Server{
		cfg:      cfg,
		stores:   stores,
		resolver: resolver,
		jobs:     jobs,
		orch:     orch,
		logger:   logger,
		started:  time.Now(),
	}
}

// localBaseURL turns a listen address into the loopback URL the orchestrator
// uses to invoke this process's own job endpoints.
func localBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://127.0.0.1" + addr
	}
	return "http://" + addr
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /recommendations", s.handleRecommendations)
	mux.HandleFunc("POST /scrapers/{id}/run", s.handleRunScraper)
	mux.HandleFunc("POST /scrapers/run-all", s.handleRunAll)
	mux.HandleFunc("POST /entities", s.handleCreateEntity)
	mux.HandleFunc("POST /entities/import", s.handleImportEntities)
	mux.HandleFunc("POST /internal/jobs/{id}", s.handleRunJob)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok")) //nolint:errcheck
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "running",
		"uptime": time.Since(s.started).String(),
		"health": s.orch.SystemHealth(),
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, _ *http.Request) {
	recs := s.orch.Recommendations()
	if recs == nil {
		recs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recommendations": recs})
}

func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	outcome, err := s.orch.RunScraper(r.Context(), id)
	switch {
	case errors.Is(err, orchestrator.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, orchestrator.ErrJobDisabled):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeBody(outcome))
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	outcomes := s.orch.RunAllActive(r.Context())
	body := make([]map[string]interface{}, 0, len(outcomes))
	for _, o := range outcomes {
		body = append(body, outcomeBody(o))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": body})
}

// handleRunJob executes one scraper job in-process. This is the endpoint the
// orchestrator invokes; lock denial is reported in the body, not the status.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.jobs[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown job %q", id))
		return
	}

	res := job.Run(r.Context())
	body := map[string]interface{}{
		"status": res.Status,
		"found":  res.Found,
		"new":    res.New,
	}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// entityRequest is the manual-entry payload.
type entityRequest struct {
	LegalName    string `json:"legal_name"`
	Ticker       string `json:"ticker"`
	ListingVenue string `json:"listing_venue"`
	Region       string `json:"region"`
	BTC          string `json:"btc,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// createEntity is the manual entry core: validate, resolve against existing
// entities, and record a manual-provenance snapshot when holdings are
// supplied.
func (s *Server) createEntity(ctx context.Context, req entityRequest) (*domain.Entity, bool, error) {
	entity, created, err := s.resolver.Resolve(ctx, &registry.EntityInput{
		LegalName:    req.LegalName,
		Ticker:       req.Ticker,
		ListingVenue: req.ListingVenue,
		Region:       req.Region,
	})
	if err != nil {
		return nil, false, err
	}

	if req.BTC != "" {
		btc, err := decimal.NewFromString(req.BTC)
		if err != nil {
			return nil, created, &registry.ValidationError{Field: "btc", Reason: err.Error()}
		}
		_, err = s.stores.snapshots.Insert(ctx, &domain.HoldingsSnapshot{
			EntityID:      entity.ID,
			BTC:           btc,
			LastDisclosed: time.Now().UTC(),
			SourceURL:     req.SourceURL,
			Provenance:    domain.ProvenanceManual,
		})
		if err != nil {
			return nil, created, fmt.Errorf("record snapshot: %w", err)
		}
		entity.HoldingsBTC = btc
		if err := s.stores.entities.Update(ctx, entity); err != nil {
			return nil, created, fmt.Errorf("update holdings: %w", err)
		}
	}
	return entity, created, nil
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	entity, created, err := s.createEntity(r.Context(), req)
	if err != nil {
		var verr *registry.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"id":           entity.ID,
		"legal_name":   entity.LegalName,
		"ticker":       entity.Ticker,
		"holdings_btc": entity.HoldingsBTC.String(),
		"created":      created,
	})
}

// importRequest is the bulk manual-entry payload.
type importRequest struct {
	Entities []entityRequest `json:"entities"`
}

// handleImportEntities runs a bulk manual import through the chunked batch
// operator, reporting exactly which records made it.
func (s *Server) handleImportEntities(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if len(req.Entities) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no entities in import payload"))
		return
	}

	result, err := registry.BatchOperation(r.Context(), req.Entities,
		func(ctx context.Context, item entityRequest) error {
			_, _, err := s.createEntity(ctx, item)
			return err
		}, registry.DefaultBatchOptions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	failures := make([]map[string]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, map[string]string{
			"ticker": f.Item.Ticker,
			"error":  f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported": len(result.Successes),
		"failures": failures,
	})
}

func outcomeBody(o *orchestrator.RunOutcome) map[string]interface{} {
	body := map[string]interface{}{
		"job_id":      o.JobID,
		"status":      o.Status,
		"found":       o.Found,
		"new":         o.New,
		"duration_ms": o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		body["error"] = o.Err.Error()
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
