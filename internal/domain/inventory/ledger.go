// Package inventory defines the stock ledger: temporary holds against
// product stock that are either committed into permanent decrements or
// released. The ledger is the only writer of stock quantities.
package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for ledger operations.
var (
	// ErrInsufficientStock is returned when a reservation would exceed what
	// is available after subtracting active holds.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReservationNotFound is returned when a handle refers to no known
	// reservation.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationNotActive is returned when a commit finds the hold
	// released or expired, so the stock it covered may already be sold.
	ErrReservationNotActive = errors.New("reservation is no longer active")
)

// Status enumerates reservation states.
type Status string

const (
	StatusActive    Status = "active"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

// Reservation is a temporary hold on a product's stock. If neither committed
// nor released before ExpiresAt, the sweeper releases it so abandoned
// checkouts cannot lock up stock permanently.
type Reservation struct {
	ID        string
	ProductID string
	Quantity  int
	Status    Status
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Ledger guarantees stock is never oversold across concurrent checkouts.
// Reserve must be serializable per product: two concurrent reservations on
// the same product must not both succeed beyond available stock.
type Ledger interface {
	// Reserve atomically checks availability (stock minus active holds) and
	// creates a hold, or fails with ErrInsufficientStock.
	Reserve(ctx context.Context, productID string, quantity int) (*Reservation, error)
	// Commit converts a hold into a permanent stock decrement. Committing an
	// already-committed reservation is a no-op; committing a released or
	// expired hold fails with ErrReservationNotActive, since its stock may
	// have been resold in the meantime.
	Commit(ctx context.Context, reservationID string) error
	// Release cancels a hold without touching stock. Releasing a reservation
	// that is no longer active is a no-op.
	Release(ctx context.Context, reservationID string) error
	// ReleaseExpired releases every active hold past its deadline and
	// returns how many were swept.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}
