package memory

import (
	"context"
	"sync"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// AdvisoryLocker is an in-process implementation of storage.AdvisoryLocker.
// It serializes job runs within a single process the way the database-backed
// lock does across processes.
type AdvisoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewAdvisoryLocker creates a new in-process advisory locker.
func NewAdvisoryLocker() *AdvisoryLocker {
	return &AdvisoryLocker{
		held: make(map[string]bool),
	}
}

// TryLock attempts to acquire the named lock without blocking.
// Returns false if the lock is already held.
func (l *AdvisoryLocker) TryLock(_ context.Context, name string) (bool, error) {
	if name == "" {
		return false, storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

// Unlock releases the named lock. Safe to call when the lock is not held.
func (l *AdvisoryLocker) Unlock(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held, name)
	return nil
}

var _ storage.AdvisoryLocker = (*AdvisoryLocker)(nil)
