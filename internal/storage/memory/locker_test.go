package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

func TestAdvisoryLocker_TryLockAndUnlock(t *testing.T) {
	locker := NewAdvisoryLocker()
	ctx := context.Background()

	ok, err := locker.TryLock(ctx, "scraper:hkex-scraper")
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected lock acquired")
	}

	if err := locker.Unlock(ctx, "scraper:hkex-scraper"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
}

func TestAdvisoryLocker_SecondAcquireDenied(t *testing.T) {
	locker := NewAdvisoryLocker()
	ctx := context.Background()

	ok, err := locker.TryLock(ctx, "scraper:hkex-scraper")
	if err != nil || !ok {
		t.Fatalf("First TryLock: ok=%v err=%v", ok, err)
	}

	// Contention is not an error
	ok, err = locker.TryLock(ctx, "scraper:hkex-scraper")
	if err != nil {
		t.Fatalf("Second TryLock errored: %v", err)
	}
	if ok {
		t.Error("Expected second acquire denied")
	}
}

func TestAdvisoryLocker_ReacquireAfterUnlock(t *testing.T) {
	locker := NewAdvisoryLocker()
	ctx := context.Background()

	if ok, _ := locker.TryLock(ctx, "scraper:szse-scraper"); !ok {
		t.Fatal("First acquire failed")
	}
	if err := locker.Unlock(ctx, "scraper:szse-scraper"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if ok, _ := locker.TryLock(ctx, "scraper:szse-scraper"); !ok {
		t.Error("Expected reacquire after unlock")
	}
}

func TestAdvisoryLocker_NamesIndependent(t *testing.T) {
	locker := NewAdvisoryLocker()
	ctx := context.Background()

	if ok, _ := locker.TryLock(ctx, "scraper:hkex-scraper"); !ok {
		t.Fatal("First acquire failed")
	}
	if ok, _ := locker.TryLock(ctx, "scraper:szse-scraper"); !ok {
		t.Error("Different name should be independent")
	}
}

func TestAdvisoryLocker_UnlockNotHeld(t *testing.T) {
	locker := NewAdvisoryLocker()
	ctx := context.Background()

	// Releasing a lock that was never acquired is a no-op
	if err := locker.Unlock(ctx, "scraper:hkex-scraper"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestAdvisoryLocker_InvalidInput(t *testing.T) {
	locker := NewAdvisoryLocker()
	ctx := context.Background()

	_, err := locker.TryLock(ctx, "")
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
