package scraper

import (
	"context"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// defaultLockPoll is the interval between lock acquisition attempts.
const defaultLockPoll = 500 * time.Millisecond

// WaitForLock polls TryLock until the lock is acquired or maxWait elapses.
// Timeout is reported as false, not an error; only a storage failure is an
// error. With maxWait <= 0 this is a single non-blocking attempt.
func WaitForLock(ctx context.Context, locker storage.AdvisoryLocker, name string, maxWait time.Duration) (bool, error) {
	deadline := time.Now().Add(maxWait)

	for {
		acquired, err := locker.TryLock(ctx, name)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(defaultLockPoll):
		}
	}
}
