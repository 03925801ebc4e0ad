// Package pricing derives the authoritative price breakdown for a cart.
// The calculator is a pure function of its inputs and is always re-run
// server-side at order-confirmation time; client-sent totals are advisory.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/evercart/checkout/internal/domain/cart"
	"github.com/evercart/checkout/internal/domain/discount"
)

// Params holds the shipping configuration constants.
type Params struct {
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold decimal.Decimal
	// FlatShippingRate is charged when the subtotal is at or below the threshold.
	FlatShippingRate decimal.Decimal
}

// DefaultParams mirrors the storefront defaults: free shipping over $100,
// otherwise a flat $10.
func DefaultParams() Params {
	return Params{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingRate:      decimal.NewFromInt(10),
	}
}

// Breakdown is the computed price of a checkout attempt.
// Total = Subtotal - Discount + Shipping, floored at zero.
type Breakdown struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Calculator computes breakdowns with fixed shipping parameters.
type Calculator struct {
	params Params
}

// NewCalculator returns a Calculator using the given parameters.
func NewCalculator(params Params) *Calculator {
	return &Calculator{params: params}
}

// ShippingCost returns zero above the free-shipping threshold, otherwise the
// flat rate.
func (c *Calculator) ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(c.params.FreeShippingThreshold) {
		return decimal.Zero
	}
	return c.params.FlatShippingRate
}

// Quote computes the breakdown for a cart snapshot and an optional discount
// application. A free-shipping application records the waived cost as both
// the discount and the shipping charge, so the two cancel and the breakdown
// always satisfies Total = Subtotal - Discount + Shipping.
func (c *Calculator) Quote(snapshot *cart.Snapshot, app *discount.Application) Breakdown {
	subtotal := snapshot.Subtotal().Round(2)
	shipping := c.ShippingCost(subtotal)

	discountAmount := decimal.Zero
	if app != nil {
		if app.FreeShipping {
			discountAmount = shipping
		} else {
			discountAmount = app.Amount
		}
	}
	discountAmount = discountAmount.Round(2)

	total := subtotal.Sub(discountAmount).Add(shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal: subtotal,
		Discount: discountAmount,
		Shipping: shipping,
		Total:    total.Round(2),
	}
}
