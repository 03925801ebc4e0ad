package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// RetryingGateway wraps a Gateway with the orchestrator's retry discipline:
// each attempt runs under its own timeout and transient failures are retried
// exactly once. Declines are never retried, and neither are timeouts: a
// timed-out charge may have landed, and retrying it risks a double charge.
type RetryingGateway struct {
	inner   Gateway
	timeout time.Duration
}

// NewRetryingGateway wraps inner with a per-attempt timeout.
func NewRetryingGateway(inner Gateway, timeout time.Duration) *RetryingGateway {
	return &RetryingGateway{inner: inner, timeout: timeout}
}

// CreateCharge performs at most two attempts. A context deadline on an
// attempt is reported as ErrTimeout and surfaced immediately; the caller
// must treat the charge as failed and roll back.
func (g *RetryingGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	charge, err := g.attempt(ctx, req)
	if err == nil {
		return charge, nil
	}
	if !errors.Is(err, ErrTransient) {
		return nil, err
	}

	// One retry, transient failures only.
	charge, err = g.attempt(ctx, req)
	if err != nil {
		return nil, err
	}
	return charge, nil
}

func (g *RetryingGateway) attempt(ctx context.Context, req ChargeRequest) (*Charge, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	charge, err := g.inner.CreateCharge(attemptCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return charge, nil
}
