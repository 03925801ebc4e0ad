package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/evercart/checkout/internal/domain/discount"
	"github.com/evercart/checkout/internal/domain/inventory"
	"github.com/evercart/checkout/internal/domain/payment"
)

// Metrics holds the orchestrator's counters. A nil *Metrics disables
// recording, which keeps unit tests free of a meter provider.
type Metrics struct {
	placed       metric.Int64Counter
	failed       metric.Int64Counter
	unreconciled metric.Int64Counter
}

// NewMetrics registers the checkout counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	placed, err := meter.Int64Counter("checkout.orders_placed",
		metric.WithDescription("Orders successfully placed"))
	if err != nil {
		return nil, errors.Wrap(err, "orders_placed counter")
	}
	failed, err := meter.Int64Counter("checkout.failures",
		metric.WithDescription("Checkout attempts that ended in a typed error"))
	if err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	unreconciled, err := meter.Int64Counter("checkout.unreconciled_charges",
		metric.WithDescription("Captured charges whose order write failed; requires manual reconciliation"))
	if err != nil {
		return nil, errors.Wrap(err, "unreconciled counter")
	}
	return &Metrics{placed: placed, failed: failed, unreconciled: unreconciled}, nil
}

func (o *Orchestrator) countPlaced(ctx context.Context) {
	if o.metrics == nil {
		return
	}
	o.metrics.placed.Add(ctx, 1)
}

func (o *Orchestrator) countFailure(ctx context.Context, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", FailureKind(err)),
	))
}

func (o *Orchestrator) countUnreconciled(ctx context.Context) {
	if o.metrics == nil {
		return
	}
	o.metrics.unreconciled.Add(ctx, 1)
}

// FailureKind maps a checkout error to its taxonomy kind. The handler uses
// the same mapping for response bodies, so wire kinds and metric labels stay
// in sync.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, discount.ErrCodeNotFound):
		return "discount_code_not_found"
	case errors.Is(err, discount.ErrCodeExpired):
		return "discount_code_expired"
	case errors.Is(err, discount.ErrCodeNotYetActive):
		return "discount_code_not_yet_active"
	case errors.Is(err, discount.ErrMinimumNotMet):
		return "discount_minimum_not_met"
	case errors.Is(err, discount.ErrUsageLimitExceeded):
		return "discount_usage_limit_exceeded"
	case errors.Is(err, discount.ErrPerUserLimitExceeded):
		return "discount_per_user_limit_exceeded"
	case errors.Is(err, discount.ErrUnsupportedType):
		return "discount_unsupported_type"
	case errors.Is(err, ErrPaymentGatewayTimeout):
		return "payment_gateway_timeout"
	case errors.Is(err, payment.ErrDeclined), errors.Is(err, ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, ErrPaymentCapturedUnreconciled):
		return "payment_captured_unreconciled"
	case errors.Is(err, ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, ErrCheckoutInProgress):
		return "checkout_in_progress"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence_failure"
	default:
		return "internal"
	}
}
