// Package cart defines the immutable cart snapshot handed to the order
// orchestrator. Once checkout begins the snapshot is never mutated, so the
// priced lines cannot drift mid-checkout.
package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for snapshot validation.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Line is a single priced cart line. UnitPrice is the price captured when the
// snapshot was built, not a live product lookup.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Size      string
	Color     string
}

// Snapshot is an ordered, immutable sequence of cart lines.
type Snapshot struct {
	lines []Line
}

// NewSnapshot copies the given lines into a snapshot after validating them.
func NewSnapshot(lines []Line) (*Snapshot, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", l.ProductID)
		}
	}
	copied := make([]Line, len(lines))
	copy(copied, lines)
	return &Snapshot{lines: copied}, nil
}

// Lines returns a copy of the snapshot lines.
func (s *Snapshot) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Subtotal is the sum of unit price times quantity across all lines.
func (s *Snapshot) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range s.lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// TotalQuantity is the sum of quantities across all lines.
func (s *Snapshot) TotalQuantity() int {
	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// Fingerprint returns a stable SHA-256 hex digest over the snapshot lines.
// Paired with the idempotency key it detects a replay that silently changed
// the cart.
func (s *Snapshot) Fingerprint() string {
	var b strings.Builder
	for _, l := range s.lines {
		fmt.Fprintf(&b, "%s|%d|%s|%s|%s\n", l.ProductID, l.Quantity, l.UnitPrice.String(), l.Size, l.Color)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
