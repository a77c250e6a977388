package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage/memory"
)

func TestWaitForLock_ImmediateAcquire(t *testing.T) {
	locker := memory.NewAdvisoryLocker()

	acquired, err := WaitForLock(context.Background(), locker, "scraper:hkex", 0)
	if err != nil {
		t.Fatalf("WaitForLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("Expected free lock to be acquired")
	}
}

func TestWaitForLock_TimeoutIsNotAnError(t *testing.T) {
	locker := memory.NewAdvisoryLocker()
	if _, err := locker.TryLock(context.Background(), "scraper:hkex"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	acquired, err := WaitForLock(context.Background(), locker, "scraper:hkex", 0)
	if err != nil {
		t.Fatalf("Timeout must not be an error: %v", err)
	}
	if acquired {
		t.Fatal("Held lock must not be acquired")
	}
}

func TestWaitForLock_AcquiresAfterRelease(t *testing.T) {
	locker := memory.NewAdvisoryLocker()
	ctx := context.Background()
	if _, err := locker.TryLock(ctx, "scraper:hkex"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		locker.Unlock(ctx, "scraper:hkex")
	}()

	acquired, err := WaitForLock(ctx, locker, "scraper:hkex", 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("Expected lock acquisition after release")
	}
}
