package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evercart/checkout/internal/domain/discount"
	"github.com/evercart/checkout/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, status, subtotal, discount_amount, shipping_cost,
		total, shipping_address, payment_reference, discount_code, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, line_no, product_id, quantity, unit_price, size, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertReconciliationSQL = `INSERT INTO payment_reconciliation (id, payment_reference, amount, currency, idempotency_key, details)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreatePaid persists a paid order in one transaction: every reservation is
// committed into a stock decrement, the order and its line items are
// written, and the redemption (when present) increments the usage counter
// under its cap.
func (r *OrderRepository) CreatePaid(ctx context.Context, o *order.Order, reservationIDs []string, redemption *discount.Redemption) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin create order")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range reservationIDs {
		if err := commitReservation(ctx, tx, id); err != nil {
			return err
		}
	}

	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal shipping address")
	}

	var (
		userID         *string
		discountCode   *string
		idempotencyKey *string
	)
	if o.UserID != "" {
		userID = &o.UserID
	}
	if o.DiscountCode != "" {
		discountCode = &o.DiscountCode
	}
	if o.IdempotencyKey != "" {
		idempotencyKey = &o.IdempotencyKey
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, userID, string(o.Status), o.Subtotal, o.DiscountAmount, o.ShippingCost,
		o.Total, addressJSON, o.PaymentReference, discountCode, idempotencyKey, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}

	for i, item := range o.Items {
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			o.ID, i+1, item.ProductID, item.Quantity, item.UnitPrice, item.Size, item.Color)
		if err != nil {
			return errors.Wrapf(err, "insert order item %q/%q", o.ID, item.ProductID)
		}
	}

	if redemption != nil {
		if err := recordRedemption(ctx, tx, redemption); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit create order")
}

// RecordUnreconciled durably notes a captured charge with no order behind it.
func (r *OrderRepository) RecordUnreconciled(ctx context.Context, rec order.UnreconciledCharge) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return errors.Wrap(err, "marshal reconciliation details")
	}
	_, err = r.pool.Exec(ctx, insertReconciliationSQL,
		rec.ID, rec.PaymentReference, rec.Amount, rec.Currency, rec.IdempotencyKey, details)
	if err != nil {
		return errors.Wrapf(err, "record unreconciled charge %q", rec.PaymentReference)
	}
	return nil
}
