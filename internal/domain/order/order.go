package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evercart/checkout/internal/domain/discount"
)

// Status is the order lifecycle state. Orders move pending → paid →
// processing → shipped → delivered, may be cancelled at any pre-shipped
// state, and land in payment_captured_unreconciled when the charge succeeded
// but the order write did not.
type Status string

const (
	StatusPending      Status = "pending"
	StatusPaid         Status = "paid"
	StatusProcessing   Status = "processing"
	StatusShipped      Status = "shipped"
	StatusDelivered    Status = "delivered"
	StatusCancelled    Status = "cancelled"
	StatusUnreconciled Status = "payment_captured_unreconciled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPaid: true, StatusCancelled: true},
	StatusPaid:       {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether fulfillment may move an order from one
// status to another.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Address is the shipping address snapshot stored with the order.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Item is an immutable line-item snapshot, decoupled from live product state
// so historical orders stay stable when product data later changes.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

// Order is a placed customer order. Total = Subtotal - DiscountAmount +
// ShippingCost, always non-negative. UserID is empty for guest checkout.
type Order struct {
	ID               string
	UserID           string
	Status           Status
	Items            []Item
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	ShippingCost     decimal.Decimal
	Total            decimal.Decimal
	ShippingAddress  Address
	PaymentReference string
	DiscountCode     string
	IdempotencyKey   string
	CreatedAt        time.Time
}

// UnreconciledCharge records a captured payment whose order write failed.
// It exists so money that moved is never silently dropped: operators
// reconcile these by hand, and nothing retries them automatically.
type UnreconciledCharge struct {
	ID               string
	PaymentReference string
	Amount           decimal.Decimal
	Currency         string
	IdempotencyKey   string
	Details          map[string]string
}

// Repository persists orders.
type Repository interface {
	// CreatePaid commits the given reservations and writes the order, its
	// items, and the redemption (when non-nil) as one transaction. The
	// redemption write includes the conditional global usage-counter
	// increment; when the counter is already at its cap the whole
	// transaction fails with discount.ErrUsageLimitExceeded.
	CreatePaid(ctx context.Context, o *Order, reservationIDs []string, redemption *discount.Redemption) error
	// RecordUnreconciled durably notes a captured charge that could not be
	// turned into an order. Best effort: callers also raise an operator
	// alert through logs and metrics.
	RecordUnreconciled(ctx context.Context, rec UnreconciledCharge) error
}
