package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is not
// published.
var ErrNotFound = errors.New("product not found")

// Status enumerates catalog visibility states.
type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
)

// Product represents a catalog item available for purchase. StockQuantity and
// the reservation counter behind it are mutated only through the inventory
// ledger, never directly.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	SalePrice     *decimal.Decimal
	StockQuantity int
	Status        Status
	SKU           string
	Category      string
}

// EffectivePrice returns the sale price when one is set, otherwise the
// regular price. This is the unit price captured into cart snapshots.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price) {
		return *p.SalePrice
	}
	return p.Price
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
