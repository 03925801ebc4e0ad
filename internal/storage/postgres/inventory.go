package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evercart/checkout/internal/domain/inventory"
)

const (
	// The conditional update serializes concurrent reserves on the product
	// row: two attempts cannot both pass the availability predicate when
	// only one fits.
	reserveStockSQL = `UPDATE products SET reserved = reserved + $2
		WHERE id = $1 AND status = 'published' AND stock_quantity - reserved >= $2`

	insertReservationSQL = `INSERT INTO reservations (id, product_id, quantity, status, expires_at, created_at)
		VALUES ($1, $2, $3, 'active', $4, $5)`

	claimReservationSQL = `UPDATE reservations SET status = $2
		WHERE id = $1 AND status = 'active'
		RETURNING product_id, quantity`

	reservationStatusSQL = `SELECT status FROM reservations WHERE id = $1`

	commitStockSQL = `UPDATE products SET stock_quantity = stock_quantity - $2, reserved = reserved - $2
		WHERE id = $1`

	releaseStockSQL = `UPDATE products SET reserved = reserved - $2 WHERE id = $1`

	expireReservationsSQL = `UPDATE reservations SET status = 'expired'
		WHERE status = 'active' AND expires_at <= $1
		RETURNING product_id, quantity`
)

var _ inventory.Ledger = (*InventoryLedger)(nil)

// InventoryLedger implements inventory.Ledger backed by PostgreSQL. Holds
// live in the reservations table; the products.reserved counter keeps the
// availability predicate a single-row condition.
type InventoryLedger struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewInventoryLedger returns a ledger whose reservations expire after ttl.
func NewInventoryLedger(pool *pgxpool.Pool, ttl time.Duration) *InventoryLedger {
	return &InventoryLedger{pool: pool, ttl: ttl, now: time.Now}
}

// Reserve atomically takes a hold against available stock.
func (l *InventoryLedger) Reserve(ctx context.Context, productID string, quantity int) (*inventory.Reservation, error) {
	if quantity <= 0 {
		return nil, errors.Errorf("invalid reservation quantity %d", quantity)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin reserve")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, reserveStockSQL, productID, quantity)
	if err != nil {
		return nil, errors.Wrapf(err, "reserve stock for %q", productID)
	}
	if ct.RowsAffected() == 0 {
		return nil, inventory.ErrInsufficientStock
	}

	now := l.now()
	r := &inventory.Reservation{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		Status:    inventory.StatusActive,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}
	if _, err := tx.Exec(ctx, insertReservationSQL, r.ID, r.ProductID, r.Quantity, r.ExpiresAt, r.CreatedAt); err != nil {
		return nil, errors.Wrapf(err, "insert reservation for %q", productID)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit reserve")
	}
	return r, nil
}

// Commit converts a hold into a permanent stock decrement. Idempotent for
// already-committed reservations.
func (l *InventoryLedger) Commit(ctx context.Context, reservationID string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin commit")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := commitReservation(ctx, tx, reservationID); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

// Release cancels a hold without touching stock. Idempotent for reservations
// that are no longer active.
func (l *InventoryLedger) Release(ctx context.Context, reservationID string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin release")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	productID, quantity, active, _, err := claimReservation(ctx, tx, reservationID, inventory.StatusReleased)
	if err != nil {
		return err
	}
	if active {
		if _, err := tx.Exec(ctx, releaseStockSQL, productID, quantity); err != nil {
			return errors.Wrapf(err, "return reserved stock for %q", productID)
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit release")
}

// ReleaseExpired sweeps every active hold past its deadline.
func (l *InventoryLedger) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "begin expiry sweep")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, expireReservationsSQL, now)
	if err != nil {
		return 0, errors.Wrap(err, "expire reservations")
	}

	type hold struct {
		productID string
		quantity  int
	}
	var expired []hold
	for rows.Next() {
		var h hold
		if err := rows.Scan(&h.productID, &h.quantity); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "scan expired reservation")
		}
		expired = append(expired, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(err, "expire reservations")
	}

	for _, h := range expired {
		if _, err := tx.Exec(ctx, releaseStockSQL, h.productID, h.quantity); err != nil {
			return 0, errors.Wrapf(err, "return reserved stock for %q", h.productID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit expiry sweep")
	}
	return len(expired), nil
}

// commitReservation flips a hold to committed and decrements stock, inside
// the caller's transaction. Shared with the order repository so order
// persistence and reservation commit stay one atomic write. Idempotent for
// already-committed holds; a released or expired hold fails the commit, its
// stock may already be resold.
func commitReservation(ctx context.Context, tx pgx.Tx, reservationID string) error {
	productID, quantity, active, prior, err := claimReservation(ctx, tx, reservationID, inventory.StatusCommitted)
	if err != nil {
		return err
	}
	if !active {
		if prior == inventory.StatusCommitted {
			return nil
		}
		return errors.Wrapf(inventory.ErrReservationNotActive, "reservation %q is %s", reservationID, prior)
	}
	if _, err := tx.Exec(ctx, commitStockSQL, productID, quantity); err != nil {
		return errors.Wrapf(err, "decrement stock for %q", productID)
	}
	return nil
}

// claimReservation moves an active hold to the given status. When the hold
// exists but is no longer active it reports active=false along with the
// prior status so callers decide whether the stale claim is a no-op or an
// error. It never commits the transaction.
func claimReservation(ctx context.Context, tx pgx.Tx, reservationID string, to inventory.Status) (productID string, quantity int, active bool, prior inventory.Status, err error) {
	err = tx.QueryRow(ctx, claimReservationSQL, reservationID, to).Scan(&productID, &quantity)
	if err == nil {
		return productID, quantity, true, inventory.StatusActive, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, "", errors.Wrapf(err, "claim reservation %q", reservationID)
	}

	var status string
	err = tx.QueryRow(ctx, reservationStatusSQL, reservationID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, false, "", inventory.ErrReservationNotFound
		}
		return "", 0, false, "", errors.Wrapf(err, "reservation status %q", reservationID)
	}
	return "", 0, false, inventory.Status(status), nil
}
