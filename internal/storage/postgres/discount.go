package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evercart/checkout/internal/domain/discount"
)

const (
	getDiscountSQL = `SELECT code, description, discount_type, value, min_purchase_amount,
		max_discount_amount, usage_limit, per_user_limit, usage_count,
		valid_from, valid_until, active
		FROM discount_codes WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	countRedemptionsSQL = `SELECT COUNT(*) FROM discount_redemptions
		WHERE UPPER(code) = UPPER($1) AND user_id = $2`

	// The WHERE clause is the whole over-redemption defense: two racing
	// checkouts both pass validation, but only one wins this update.
	incrementUsageSQL = `UPDATE discount_codes
		SET usage_count = usage_count + 1
		WHERE UPPER(code) = UPPER($1) AND active = TRUE
		  AND (usage_limit IS NULL OR usage_count < usage_limit)`

	insertRedemptionSQL = `INSERT INTO discount_redemptions (id, code, order_id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	upsertDiscountSQL = `INSERT INTO discount_codes (code, description, discount_type, value,
			min_purchase_amount, max_discount_amount, usage_limit, per_user_limit,
			valid_from, valid_until, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_purchase_amount = EXCLUDED.min_purchase_amount,
			max_discount_amount = EXCLUDED.max_discount_amount,
			usage_limit = EXCLUDED.usage_limit,
			per_user_limit = EXCLUDED.per_user_limit,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			active = EXCLUDED.active`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up an active code case-insensitively.
// Returns discount.ErrCodeNotFound when no matching active code exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Code, error) {
	rows, err := r.pool.Query(ctx, getDiscountSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find discount code %q", code)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanDiscountCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, errors.Wrapf(err, "find discount code %q", code)
	}
	return &c, nil
}

// CountRedemptions returns how many confirmed redemptions of the code the
// given user already has.
func (r *DiscountRepository) CountRedemptions(ctx context.Context, code, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countRedemptionsSQL, code, userID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count redemptions for %q", code)
	}
	return n, nil
}

// UpsertCode inserts or refreshes a discount rule, preserving usage_count on
// update. Used by the seed and bulk-ingest commands.
func (r *DiscountRepository) UpsertCode(ctx context.Context, c *discount.Code) error {
	_, err := r.pool.Exec(ctx, upsertDiscountSQL,
		c.Code, c.Description, string(c.Type), c.Value,
		c.MinPurchaseAmount, c.MaxDiscountAmount, c.UsageLimit, c.PerUserLimit,
		c.ValidFrom, c.ValidUntil, c.Active)
	if err != nil {
		return errors.Wrapf(err, "upsert discount code %q", c.Code)
	}
	return nil
}

// recordRedemption increments the usage counter under its cap and inserts
// the redemption row, inside the caller's transaction. Returns
// discount.ErrUsageLimitExceeded when the cap is already reached.
func recordRedemption(ctx context.Context, tx pgx.Tx, red *discount.Redemption) error {
	ct, err := tx.Exec(ctx, incrementUsageSQL, red.Code)
	if err != nil {
		return errors.Wrapf(err, "increment usage for %q", red.Code)
	}
	if ct.RowsAffected() == 0 {
		return discount.ErrUsageLimitExceeded
	}

	var userID *string
	if red.UserID != "" {
		userID = &red.UserID
	}
	_, err = tx.Exec(ctx, insertRedemptionSQL,
		red.ID, red.Code, red.OrderID, userID, red.Amount, red.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "insert redemption for %q", red.Code)
	}
	return nil
}

func scanDiscountCode(row pgx.CollectableRow) (discount.Code, error) {
	var (
		c           discount.Code
		typ         string
		maxDiscount *decimal.Decimal
		usageLimit  *int32
		perUser     int32
		usageCount  int32
		validUntil  *time.Time
	)
	err := row.Scan(&c.Code, &c.Description, &typ, &c.Value, &c.MinPurchaseAmount,
		&maxDiscount, &usageLimit, &perUser, &usageCount,
		&c.ValidFrom, &validUntil, &c.Active)
	c.Type = discount.Type(typ)
	c.MaxDiscountAmount = maxDiscount
	if usageLimit != nil {
		l := int(*usageLimit)
		c.UsageLimit = &l
	}
	c.PerUserLimit = int(perUser)
	c.UsageCount = int(usageCount)
	c.ValidUntil = validUntil
	return c, err
}
