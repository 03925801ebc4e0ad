package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator decides whether a code is usable for a given cart and user and
// computes its effect. Validation has no side effects: usage counters move
// only when the owning order is confirmed paid, so abandoned checkouts are
// never counted.
type Validator interface {
	Validate(ctx context.Context, code string, items []Item, userID string) (*Application, error)
}

// RepoValidator implements Validator against a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate runs the eligibility checks in order, short-circuiting on the
// first failure: code exists and is active, current time within the validity
// window, subtotal meets the minimum, global usage below the cap, and this
// user's past redemptions below the per-user limit. On success it returns
// the computed application.
func (v *RepoValidator) Validate(ctx context.Context, code string, items []Item, userID string) (*Application, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, errors.Wrap(err, "lookup discount code")
	}

	now := v.now()
	if now.Before(rule.ValidFrom) {
		return nil, ErrCodeNotYetActive
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCodeExpired
	}

	if calcSubtotal(items).LessThan(rule.MinPurchaseAmount) {
		return nil, ErrMinimumNotMet
	}

	if rule.UsageLimit != nil && rule.UsageCount >= *rule.UsageLimit {
		return nil, ErrUsageLimitExceeded
	}

	if rule.PerUserLimit > 0 && userID != "" {
		used, err := v.repo.CountRedemptions(ctx, rule.Code, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count redemptions")
		}
		if used >= rule.PerUserLimit {
			return nil, ErrPerUserLimitExceeded
		}
	}

	app, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}
	return &app, nil
}
