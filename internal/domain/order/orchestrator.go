package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/domain/cart"
	"github.com/evercart/checkout/internal/domain/discount"
	"github.com/evercart/checkout/internal/domain/inventory"
	"github.com/evercart/checkout/internal/domain/payment"
	"github.com/evercart/checkout/internal/domain/pricing"
)

// Orchestration failures beyond the ones raised by collaborators.
var (
	// ErrPaymentFailed is returned when the gateway declines the charge.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrPaymentGatewayTimeout is returned when the gateway did not answer
	// within its deadline.
	ErrPaymentGatewayTimeout = errors.New("payment gateway timeout")
	// ErrPersistenceFailure is returned for storage errors before payment
	// capture.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrPaymentCapturedUnreconciled is returned when the charge succeeded
	// but the order write failed. Money has moved: this is an alert, never a
	// silent drop, and never an automatic retry.
	ErrPaymentCapturedUnreconciled = errors.New("payment captured but order not recorded")
)

// PlaceOrderRequest is one checkout attempt.
type PlaceOrderRequest struct {
	Snapshot        *cart.Snapshot
	ShippingAddress Address
	DiscountCode    string
	UserID          string
	IdempotencyKey  string
}

// PlaceOrderResult is the confirmation returned to the client.
type PlaceOrderResult struct {
	OrderID string
	Status  Status
}

// Orchestrator coordinates inventory reservation, discount redemption,
// payment capture, and order persistence as one logical transaction with
// compensating actions on failure.
//
// States: Initiated → InventoryReserved → PaymentPending → PaymentConfirmed
// → OrderPersisted, with failure edges rolling back via Release.
type Orchestrator struct {
	validator discount.Validator
	calc      *pricing.Calculator
	ledger    inventory.Ledger
	gateway   payment.Gateway
	orders    Repository
	idem      IdempotencyStore

	currency string
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator with its collaborators. metrics may
// be nil (tests); currency defaults to USD when empty.
func NewOrchestrator(
	validator discount.Validator,
	calc *pricing.Calculator,
	ledger inventory.Ledger,
	gateway payment.Gateway,
	orders Repository,
	idem IdempotencyStore,
	currency string,
	metrics *Metrics,
) *Orchestrator {
	if currency == "" {
		currency = "USD"
	}
	return &Orchestrator{
		validator: validator,
		calc:      calc,
		ledger:    ledger,
		gateway:   gateway,
		orders:    orders,
		idem:      idem,
		currency:  currency,
		metrics:   metrics,
		tracer:    otel.Tracer("checkout/order"),
		now:       time.Now,
	}
}

// PlaceOrder runs the checkout state machine for one attempt. Replays with
// the same idempotency key and cart fingerprint return the original result
// without re-reserving or re-charging.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := o.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	lg := zctx.From(ctx)
	fingerprint := req.Snapshot.Fingerprint()

	// Idempotent replay short-circuit.
	claimed := false
	if req.IdempotencyKey != "" {
		existing, fresh, err := o.idem.Begin(ctx, req.IdempotencyKey, fingerprint)
		if err != nil {
			if errors.Is(err, ErrIdempotencyConflict) || errors.Is(err, ErrCheckoutInProgress) {
				return nil, err
			}
			return nil, errors.Wrap(ErrPersistenceFailure, err.Error())
		}
		if !fresh {
			span.SetAttributes(attribute.Bool("checkout.replayed", true))
			return &PlaceOrderResult{OrderID: existing.OrderID, Status: Status(existing.Status)}, nil
		}
		claimed = true
	}

	res, err := o.place(ctx, req, fingerprint)
	if claimed {
		switch {
		case err == nil:
			o.completeIdempotency(ctx, req.IdempotencyKey, fingerprint, res)
		case errors.Is(err, ErrPaymentCapturedUnreconciled):
			// Keep the key claimed: money moved, a blind retry must not
			// charge again. Replays see the unreconciled state.
			o.completeIdempotency(ctx, req.IdempotencyKey, fingerprint,
				&PlaceOrderResult{Status: StatusUnreconciled})
		default:
			if aerr := o.idem.Abort(ctx, req.IdempotencyKey); aerr != nil {
				lg.Warn("abort idempotency key",
					zap.String("idempotency_key", req.IdempotencyKey), zap.Error(aerr))
			}
		}
	}
	if err != nil {
		o.countFailure(ctx, err)
		return nil, err
	}
	o.countPlaced(ctx)
	return res, nil
}

// place drives the state machine once the idempotency key is claimed.
func (o *Orchestrator) place(ctx context.Context, req PlaceOrderRequest, fingerprint string) (*PlaceOrderResult, error) {
	lg := zctx.From(ctx)
	lines := req.Snapshot.Lines()

	// Re-validate the discount server-side; a client-announced discount is
	// advisory only.
	var app *discount.Application
	if req.DiscountCode != "" {
		items := make([]discount.Item, len(lines))
		for i, l := range lines {
			items[i] = discount.Item{ProductID: l.ProductID, Price: l.UnitPrice, Quantity: l.Quantity}
		}
		var err error
		app, err = o.validator.Validate(ctx, req.DiscountCode, items, req.UserID)
		if err != nil {
			return nil, err
		}
	}

	quote := o.calc.Quote(req.Snapshot, app)

	// Initiated → InventoryReserved: reserve every line, rolling back the
	// whole attempt on the first shortage.
	reservationIDs := make([]string, 0, len(lines))
	for _, l := range lines {
		r, err := o.ledger.Reserve(ctx, l.ProductID, l.Quantity)
		if err != nil {
			o.releaseAll(ctx, reservationIDs)
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return nil, errors.Wrapf(inventory.ErrInsufficientStock, "product %s", l.ProductID)
			}
			return nil, errors.Wrap(ErrPersistenceFailure, err.Error())
		}
		reservationIDs = append(reservationIDs, r.ID)
	}

	orderID := uuid.New().String()

	// InventoryReserved → PaymentPending → PaymentConfirmed.
	charge, err := o.gateway.CreateCharge(ctx, payment.ChargeRequest{
		Amount:   quote.Total,
		Currency: o.currency,
		Metadata: map[string]string{
			"order_id":        orderID,
			"idempotency_key": req.IdempotencyKey,
			"cart_hash":       fingerprint,
		},
	})
	if err != nil {
		o.releaseAll(ctx, reservationIDs)
		if errors.Is(err, payment.ErrTimeout) {
			return nil, ErrPaymentGatewayTimeout
		}
		return nil, errors.Wrap(ErrPaymentFailed, err.Error())
	}

	// PaymentConfirmed → OrderPersisted: commit reservations and write the
	// order, items, and redemption in one transaction.
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Size:      l.Size,
			Color:     l.Color,
		}
	}

	now := o.now()
	ord := &Order{
		ID:               orderID,
		UserID:           req.UserID,
		Status:           StatusPaid,
		Items:            items,
		Subtotal:         quote.Subtotal,
		DiscountAmount:   quote.Discount,
		ShippingCost:     quote.Shipping,
		Total:            quote.Total,
		ShippingAddress:  req.ShippingAddress,
		PaymentReference: charge.Reference,
		DiscountCode:     req.DiscountCode,
		IdempotencyKey:   req.IdempotencyKey,
		CreatedAt:        now,
	}

	var redemption *discount.Redemption
	if app != nil {
		redemption = &discount.Redemption{
			ID:        uuid.New().String(),
			Code:      app.Code,
			OrderID:   orderID,
			UserID:    req.UserID,
			Amount:    quote.Discount,
			CreatedAt: now,
		}
	}

	if err := o.orders.CreatePaid(ctx, ord, reservationIDs, redemption); err != nil {
		// Money has moved. Do not release reservations or retry the charge;
		// record the capture for manual reconciliation and alert loudly.
		o.countUnreconciled(ctx)
		lg.Error("payment captured but order persistence failed",
			zap.String("order_id", orderID),
			zap.String("payment_reference", charge.Reference),
			zap.String("amount", quote.Total.String()),
			zap.Error(err),
		)
		rec := UnreconciledCharge{
			ID:               uuid.New().String(),
			PaymentReference: charge.Reference,
			Amount:           quote.Total,
			Currency:         o.currency,
			IdempotencyKey:   req.IdempotencyKey,
			Details: map[string]string{
				"order_id":  orderID,
				"cart_hash": fingerprint,
				"error":     err.Error(),
			},
		}
		if rerr := o.orders.RecordUnreconciled(ctx, rec); rerr != nil {
			lg.Error("record unreconciled charge", zap.Error(rerr))
		}
		return nil, errors.Wrap(ErrPaymentCapturedUnreconciled, err.Error())
	}

	return &PlaceOrderResult{OrderID: orderID, Status: StatusPaid}, nil
}

// releaseAll is the compensating action for a failed attempt: every hold
// taken so far goes back.
func (o *Orchestrator) releaseAll(ctx context.Context, reservationIDs []string) {
	lg := zctx.From(ctx)
	for _, id := range reservationIDs {
		if err := o.ledger.Release(ctx, id); err != nil {
			// The TTL sweeper is the backstop for holds we fail to release.
			lg.Warn("release reservation", zap.String("reservation_id", id), zap.Error(err))
		}
	}
}

func (o *Orchestrator) completeIdempotency(ctx context.Context, key, fingerprint string, res *PlaceOrderResult) {
	err := o.idem.Complete(ctx, key, StoredResult{
		OrderID:     res.OrderID,
		Status:      string(res.Status),
		Fingerprint: fingerprint,
	})
	if err != nil {
		zctx.From(ctx).Warn("complete idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}
