package order

import (
	"context"

	"github.com/go-faster/errors"
)

// Idempotency failures.
var (
	// ErrIdempotencyConflict is returned when a key is replayed with a
	// different cart fingerprint.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different cart")
	// ErrCheckoutInProgress is returned when a key's first attempt has not
	// finished yet.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// StoredResult is the recorded outcome of a completed checkout attempt,
// returned verbatim on replay so a retried request never re-reserves or
// re-charges.
type StoredResult struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint"`
}

// IdempotencyStore tracks checkout attempts by client-supplied key.
type IdempotencyStore interface {
	// Begin claims the key for a new attempt. It returns (nil, true, nil)
	// when the caller owns a fresh attempt, (result, false, nil) when a
	// finished attempt with the same fingerprint exists,
	// ErrIdempotencyConflict on a fingerprint mismatch, and
	// ErrCheckoutInProgress when the first attempt is still running.
	Begin(ctx context.Context, key, fingerprint string) (*StoredResult, bool, error)
	// Complete records the outcome for future replays.
	Complete(ctx context.Context, key string, res StoredResult) error
	// Abort releases a claimed key after a failed attempt so the client can
	// retry with the same key.
	Abort(ctx context.Context, key string) error
}
