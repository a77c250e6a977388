package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/config"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		ListenAddr:          ":0",
		UseMemory:           true,
		Lookback:            30 * 24 * time.Hour,
		Parallelism:         2,
		ConfidenceThreshold: 0.7,
		LogLevel:            "info",
	}
	stores := &appStores{
		entities:  memory.NewEntityStore(),
		filings:   memory.NewFilingStore(),
		snapshots: memory.NewSnapshotStore(),
		runLogs:   memory.NewRunLogStore(),
		locker:    memory.NewAdvisoryLocker(),
	}
	return newServer(cfg, stores, zap.NewNop())
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateEntity_ManualEntry(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := postJSON(t, h, "/entities", entityRequest{
		LegalName:    "Boyaa Interactive International Limited",
		Ticker:       "0434.HK",
		ListingVenue: "HKEX",
		Region:       "HK",
		BTC:          "3183",
		SourceURL:    "https://example.com/announcement",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "3183", body["holdings_btc"])
	assert.Equal(t, true, body["created"])

	entity, err := s.stores.entities.GetByTicker(context.Background(), "0434.HK")
	require.NoError(t, err)
	snap, err := s.stores.snapshots.Latest(context.Background(), entity.ID)
	require.NoError(t, err)
	assert.True(t, snap.BTC.Equal(entity.HoldingsBTC))
}

func TestCreateEntity_InvalidInputRejected(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := postJSON(t, h, "/entities", entityRequest{Ticker: "not a ticker"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/entities", entityRequest{Ticker: "0434.HK", BTC: "lots"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportEntities_PartialFailureReported(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := postJSON(t, h, "/entities/import", importRequest{Entities: []entityRequest{
		{LegalName: "Boyaa Interactive International Limited", Ticker: "0434.HK", ListingVenue: "HKEX", Region: "HK", BTC: "3183"},
		{LegalName: "Meitu Inc", Ticker: "1357.HK", ListingVenue: "HKEX", Region: "HK"},
		{Ticker: "not a ticker"},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Imported int `json:"imported"`
		Failures []struct {
			Ticker string `json:"ticker"`
			Error  string `json:"error"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Imported)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "not a ticker", body.Failures[0].Ticker)

	// The valid records landed despite the bad one.
	ctx := context.Background()
	for _, ticker := range []string{"0434.HK", "1357.HK"} {
		_, err := s.stores.entities.GetByTicker(ctx, ticker)
		assert.NoError(t, err, ticker)
	}
}

func TestImportEntities_EmptyPayloadRejected(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := postJSON(t, h, "/entities/import", importRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
