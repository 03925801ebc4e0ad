package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evercart/checkout/internal/domain/cart"
	"github.com/evercart/checkout/internal/domain/discount"
)

func snapshotWithSubtotal(t *testing.T, price string, qty int) *cart.Snapshot {
	t.Helper()
	s, err := cart.NewSnapshot([]cart.Line{
		{ProductID: "p1", Quantity: qty, UnitPrice: decimal.RequireFromString(price)},
	})
	require.NoError(t, err)
	return s
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got),
		"%s: expected %s, got %s", field, want, got)
}

func TestShippingCost(t *testing.T) {
	c := NewCalculator(DefaultParams())

	tests := []struct {
		subtotal string
		want     string
	}{
		{"40", "10"},
		{"100", "10"}, // threshold is exclusive
		{"100.01", "0"},
		{"250", "0"},
	}

	for _, tt := range tests {
		got := c.ShippingCost(decimal.RequireFromString(tt.subtotal))
		assertDecimal(t, tt.want, got, "shipping for subtotal "+tt.subtotal)
	}
}

func TestQuote(t *testing.T) {
	c := NewCalculator(DefaultParams())

	t.Run("percentage discount over free shipping threshold", func(t *testing.T) {
		// $120 cart with a 10% code: shipping free, total 120 - 12 = 108.
		s := snapshotWithSubtotal(t, "120", 1)
		b := c.Quote(s, &discount.Application{Code: "SAVE10", Amount: decimal.NewFromInt(12)})

		assertDecimal(t, "120", b.Subtotal, "subtotal")
		assertDecimal(t, "12", b.Discount, "discount")
		assertDecimal(t, "0", b.Shipping, "shipping")
		assertDecimal(t, "108", b.Total, "total")
	})

	t.Run("no discount below threshold charges flat shipping", func(t *testing.T) {
		// $40 cart, no code: 40 + 10 shipping = 50.
		s := snapshotWithSubtotal(t, "40", 1)
		b := c.Quote(s, nil)

		assertDecimal(t, "40", b.Subtotal, "subtotal")
		assertDecimal(t, "0", b.Discount, "discount")
		assertDecimal(t, "10", b.Shipping, "shipping")
		assertDecimal(t, "50", b.Total, "total")
	})

	t.Run("free shipping code waives shipping below threshold", func(t *testing.T) {
		// The waived cost appears as both discount and shipping, so they
		// cancel and the total equals the subtotal exactly.
		s := snapshotWithSubtotal(t, "40", 1)
		b := c.Quote(s, &discount.Application{Code: "SHIPFREE", FreeShipping: true})

		assertDecimal(t, "40", b.Subtotal, "subtotal")
		assertDecimal(t, "10", b.Discount, "discount")
		assertDecimal(t, "10", b.Shipping, "shipping")
		assertDecimal(t, "40", b.Total, "total")
		assertDecimal(t, "40", b.Subtotal.Sub(b.Discount).Add(b.Shipping), "identity")
	})

	t.Run("free shipping code above threshold discounts nothing", func(t *testing.T) {
		s := snapshotWithSubtotal(t, "150", 1)
		b := c.Quote(s, &discount.Application{Code: "SHIPFREE", FreeShipping: true})

		assertDecimal(t, "0", b.Discount, "discount")
		assertDecimal(t, "0", b.Shipping, "shipping")
		assertDecimal(t, "150", b.Total, "total")
	})

	t.Run("total floors at zero", func(t *testing.T) {
		s := snapshotWithSubtotal(t, "20", 1)
		b := c.Quote(s, &discount.Application{Code: "BIG", Amount: decimal.NewFromInt(50)})

		assert.False(t, b.Total.IsNegative())
		assertDecimal(t, "0", b.Total, "total")
	})

	t.Run("rounds to cents", func(t *testing.T) {
		s := snapshotWithSubtotal(t, "19.99", 3)
		b := c.Quote(s, &discount.Application{Code: "P15", Amount: decimal.RequireFromString("8.9955")})

		assertDecimal(t, "59.97", b.Subtotal, "subtotal")
		assertDecimal(t, "9.00", b.Discount, "discount")
		assertDecimal(t, "60.97", b.Total, "total")
	})
}
