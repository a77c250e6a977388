package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/retry"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// UpsertFiling writes f through the store's idempotent upsert, retrying
// momentary failures (lock contention, transient connectivity). Validation
// failures are not retried by construction: the store reports them as
// ErrInvalidInput on the first attempt and the caller sees them unchanged.
func UpsertFiling(ctx context.Context, filings storage.FilingStore, f *domain.RawFiling, opts retry.Options) (storage.UpsertOutcome, error) {
	var outcome storage.UpsertOutcome
	err := retry.Do(ctx, func() error {
		var upErr error
		outcome, upErr = filings.Upsert(ctx, f)
		if upErr == nil {
			return nil
		}
		if isPermanent(upErr) {
			return retry.Unrecoverable(upErr)
		}
		return upErr
	}, opts)
	if err != nil {
		return "", fmt.Errorf("upsert filing %s: %w", f.PDFURL, err)
	}
	return outcome, nil
}

// isPermanent reports whether retrying err can never help.
func isPermanent(err error) bool {
	return errors.Is(err, storage.ErrInvalidInput) || errors.Is(err, storage.ErrNotFound)
}
