package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage applies a percentage of the subtotal, optionally capped.
	TypePercentage Type = "percentage"
	// TypeFixed applies a fixed monetary discount capped at the subtotal.
	TypeFixed Type = "fixed"
	// TypeFreeShipping waives the shipping cost; the discount amount equals
	// whatever shipping would have cost, so pricing resolves it.
	TypeFreeShipping Type = "free_shipping"
	// TypeBuyXGetY makes the cheapest unit in the cart free once the cart
	// holds more than Value units.
	TypeBuyXGetY Type = "buy_x_get_y"
)

// Validation failures, one per rejection reason so callers can surface a
// distinct user-facing message for each.
var (
	ErrCodeNotFound         = errors.New("discount code not found")
	ErrCodeExpired          = errors.New("discount code expired")
	ErrCodeNotYetActive     = errors.New("discount code not yet active")
	ErrMinimumNotMet        = errors.New("minimum purchase not met")
	ErrUsageLimitExceeded   = errors.New("discount usage limit exceeded")
	ErrPerUserLimitExceeded = errors.New("per-user discount limit exceeded")
	ErrUnsupportedType      = errors.New("unsupported discount type")
)

// Code is a discount rule as stored. Codes are unique case-insensitively.
// UsageCount is a read-time snapshot; the authoritative cap is enforced by a
// conditional update at redemption time.
type Code struct {
	Code              string
	Description       string
	Type              Type
	Value             decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int
	PerUserLimit      int
	UsageCount        int
	ValidFrom         time.Time
	ValidUntil        *time.Time
	Active            bool
}

// Application is the computed effect of a valid code on a cart. For
// free-shipping codes Amount is zero and FreeShipping is set; the pricing
// calculator turns the marker into a concrete amount.
type Application struct {
	Code         string
	Amount       decimal.Decimal
	FreeShipping bool
}

// Item is a cart line as seen by discount computation.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Redemption records a single confirmed application of a code to an order.
// Created exactly once per paid order and never mutated; per-user limits are
// enforced by counting these rows.
type Redemption struct {
	ID        string
	Code      string
	OrderID   string
	UserID    string // empty marks a guest checkout
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Repository provides the lookups the validator needs. Neither call mutates
// usage counters; counters move only inside the order-persistence transaction.
type Repository interface {
	// FindByCode resolves an active code case-insensitively.
	// Returns ErrCodeNotFound when no active code matches.
	FindByCode(ctx context.Context, code string) (*Code, error)
	// CountRedemptions returns how many times the given user has redeemed the
	// code across confirmed orders.
	CountRedemptions(ctx context.Context, code, userID string) (int, error)
}
