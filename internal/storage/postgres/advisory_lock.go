package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// unlockTimeout bounds the release query once it is detached from the
// caller's context.
const unlockTimeout = 5 * time.Second

// AdvisoryLocker implements storage.AdvisoryLocker on top of PostgreSQL
// session advisory locks. A lock is owned by the connection that acquired
// it, so the connection is pinned out of the pool until Unlock runs the
// release on that same connection.
type AdvisoryLocker struct {
	pool *Pool

	mu   sync.Mutex
	held map[string]*pgxpool.Conn
}

// NewAdvisoryLocker creates a new AdvisoryLocker.
func NewAdvisoryLocker(pool *Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool, held: make(map[string]*pgxpool.Conn)}
}

// Compile-time interface check.
var _ storage.AdvisoryLocker = (*AdvisoryLocker)(nil)

// TryLock attempts the named lock without blocking. false means another
// session holds it; that is expected contention, not an error.
func (l *AdvisoryLocker) TryLock(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	if _, ok := l.held[name]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}

	var acquired bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&acquired)
	if err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock %q: %w", name, err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	l.mu.Lock()
	l.held[name] = conn
	l.mu.Unlock()
	return true, nil
}

// Unlock releases the named lock on the connection that holds it and
// returns that connection to the pool. Safe to call when the lock is not
// held. The release query runs detached from the caller's context: jobs
// unlock from deferred paths where ctx may already be cancelled, and a
// skipped release would strand the server-side lock on a pooled connection.
func (l *AdvisoryLocker) Unlock(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()

	var released bool
	if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, name).Scan(&released); err != nil {
		// Close the connection so the pool discards it and the session
		// lock dies with it, instead of surviving on a healthy connection.
		conn.Conn().Close(ctx) //nolint:errcheck
		conn.Release()
		return fmt.Errorf("advisory unlock %q: %w", name, err)
	}
	conn.Release()
	if !released {
		return fmt.Errorf("advisory unlock %q: lock was not held by this session", name)
	}
	return nil
}
