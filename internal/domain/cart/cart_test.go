package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot(t *testing.T) {
	t.Run("empty cart rejected", func(t *testing.T) {
		_, err := NewSnapshot(nil)
		require.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		_, err := NewSnapshot([]Line{
			{ProductID: "p1", Quantity: 0, UnitPrice: decimal.NewFromInt(10)},
		})
		require.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("snapshot copies input lines", func(t *testing.T) {
		lines := []Line{
			{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		}
		s, err := NewSnapshot(lines)
		require.NoError(t, err)

		// Mutating the caller's slice must not reach the snapshot.
		lines[0].Quantity = 99
		assert.Equal(t, 1, s.Lines()[0].Quantity)
	})
}

func TestSnapshotTotals(t *testing.T) {
	s, err := NewSnapshot([]Line{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		{ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("5.50")},
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("45.48").Equal(s.Subtotal()),
		"subtotal: got %s", s.Subtotal())
	assert.Equal(t, 3, s.TotalQuantity())
}

func TestFingerprint(t *testing.T) {
	base := []Line{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(10), Size: "M", Color: "black"},
		{ProductID: "p2", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
	}

	s1, err := NewSnapshot(base)
	require.NoError(t, err)
	s2, err := NewSnapshot(base)
	require.NoError(t, err)

	assert.Equal(t, s1.Fingerprint(), s2.Fingerprint(), "same lines must hash identically")

	t.Run("quantity change alters fingerprint", func(t *testing.T) {
		changed := append([]Line(nil), base...)
		changed[0].Quantity = 3
		s3, err := NewSnapshot(changed)
		require.NoError(t, err)
		assert.NotEqual(t, s1.Fingerprint(), s3.Fingerprint())
	})

	t.Run("price change alters fingerprint", func(t *testing.T) {
		changed := append([]Line(nil), base...)
		changed[1].UnitPrice = decimal.NewFromInt(6)
		s3, err := NewSnapshot(changed)
		require.NoError(t, err)
		assert.NotEqual(t, s1.Fingerprint(), s3.Fingerprint())
	})

	t.Run("line order matters", func(t *testing.T) {
		reversed := []Line{base[1], base[0]}
		s3, err := NewSnapshot(reversed)
		require.NoError(t, err)
		assert.NotEqual(t, s1.Fingerprint(), s3.Fingerprint())
	})
}
