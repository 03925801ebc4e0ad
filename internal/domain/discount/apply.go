package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply computes the effect of a rule on the given cart items. Eligibility
// (window, caps, limits) is the validator's job; Apply only covers the
// arithmetic per discount type.
func Apply(code *Code, items []Item) (Application, error) {
	subtotal := calcSubtotal(items)

	switch code.Type {
	case TypePercentage:
		return applyPercentage(code, subtotal), nil
	case TypeFixed:
		return applyFixed(code, subtotal), nil
	case TypeFreeShipping:
		return Application{Code: code.Code, Amount: decimal.Zero, FreeShipping: true}, nil
	case TypeBuyXGetY:
		return applyBuyXGetY(code, items)
	default:
		return Application{}, errors.Wrapf(ErrUnsupportedType, "%q", code.Type)
	}
}

func applyPercentage(code *Code, subtotal decimal.Decimal) Application {
	amount := subtotal.Mul(code.Value).Div(hundred)
	if code.MaxDiscountAmount != nil && amount.GreaterThan(*code.MaxDiscountAmount) {
		amount = *code.MaxDiscountAmount
	}
	return Application{Code: code.Code, Amount: floorAtZero(amount).Round(2)}
}

func applyFixed(code *Code, subtotal decimal.Decimal) Application {
	amount := decimal.Min(code.Value, subtotal)
	return Application{Code: code.Code, Amount: floorAtZero(amount).Round(2)}
}

// applyBuyXGetY reads Value as the "buy X" quantity: once the cart holds at
// least X+1 units, the cheapest unit in the cart is free. A rule with a
// non-positive X is a misconfiguration, not a cart problem.
func applyBuyXGetY(code *Code, items []Item) (Application, error) {
	x := int(code.Value.IntPart())
	if x <= 0 {
		return Application{}, errors.Wrap(ErrUnsupportedType, "buy_x_get_y requires a positive buy quantity")
	}
	if totalQuantity(items) < x+1 {
		return Application{}, ErrMinimumNotMet
	}
	lowest := findLowestUnitPrice(items)
	return Application{Code: code.Code, Amount: floorAtZero(lowest).Round(2)}, nil
}

// calcSubtotal returns the sum of price * quantity across all items.
func calcSubtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

func totalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// findLowestUnitPrice returns the lowest unit price among the given items,
// or zero for an empty cart.
func findLowestUnitPrice(items []Item) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	lowest := items[0].Price
	for _, item := range items[1:] {
		if item.Price.LessThan(lowest) {
			lowest = item.Price
		}
	}
	return lowest
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
