package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

func TestRunLogStore_InsertAndGetByJob(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunLogStore(pool)
	ctx := context.Background()

	rl := &domain.ScraperRunLog{
		JobID:      "hkex-scraper",
		Status:     domain.RunSuccess,
		Found:      12,
		New:        3,
		DurationMs: 4500,
		StartedAt:  time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC),
	}

	id, err := store.Insert(ctx, rl)
	require.NoError(t, err)
	require.NotZero(t, id)

	logs, err := store.GetByJob(ctx, "hkex-scraper", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.RunSuccess, logs[0].Status)
	assert.Equal(t, 12, logs[0].Found)
	assert.Equal(t, 3, logs[0].New)
	assert.Equal(t, int64(4500), logs[0].DurationMs)
}

func TestRunLogStore_FailureKeepsError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunLogStore(pool)
	ctx := context.Background()

	rl := &domain.ScraperRunLog{
		JobID:     "szse-scraper",
		Status:    domain.RunFailure,
		Error:     "fetch recent filings: connection refused",
		StartedAt: time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC),
	}
	_, err := store.Insert(ctx, rl)
	require.NoError(t, err)

	logs, err := store.GetByJob(ctx, "szse-scraper", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.RunFailure, logs[0].Status)
	assert.Equal(t, "fetch recent filings: connection refused", logs[0].Error)
}

func TestRunLogStore_GetByJobLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunLogStore(pool)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Insert(ctx, &domain.ScraperRunLog{
			JobID:     "hkex-scraper",
			Status:    domain.RunSuccess,
			StartedAt: time.Date(2025, 6, 10, i, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	logs, err := store.GetByJob(ctx, "hkex-scraper", 3)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestRunLogStore_LockDeniedStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunLogStore(pool)
	ctx := context.Background()

	_, err := store.Insert(ctx, &domain.ScraperRunLog{
		JobID:     "hkex-scraper",
		Status:    domain.RunLockDenied,
		StartedAt: time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	logs, err := store.GetByJob(ctx, "hkex-scraper", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.RunLockDenied, logs[0].Status)
}
