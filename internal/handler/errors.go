package handler

import (
	"net/http"

	"github.com/evercart/checkout/internal/domain/order"
)

// checkoutErrorMap keys the failure taxonomy to an HTTP status and a distinct
// user-facing message. Raw error strings never leak to clients.
var checkoutErrorMap = map[string]struct {
	status  int
	message string
}{
	"insufficient_stock":               {http.StatusConflict, "this item just sold out"},
	"discount_code_not_found":          {http.StatusUnprocessableEntity, "this code is not valid"},
	"discount_code_expired":            {http.StatusUnprocessableEntity, "this code has expired"},
	"discount_code_not_yet_active":     {http.StatusUnprocessableEntity, "this code is not active yet"},
	"discount_minimum_not_met":         {http.StatusUnprocessableEntity, "your order does not meet the minimum for this code"},
	"discount_usage_limit_exceeded":    {http.StatusUnprocessableEntity, "this code has been fully redeemed"},
	"discount_per_user_limit_exceeded": {http.StatusUnprocessableEntity, "you have already used this code"},
	"discount_unsupported_type":        {http.StatusUnprocessableEntity, "this code cannot be applied to your order"},
	"payment_failed":                   {http.StatusPaymentRequired, "payment could not be completed"},
	"payment_gateway_timeout":          {http.StatusGatewayTimeout, "payment timed out, you have not been charged"},
	"payment_captured_unreconciled":    {http.StatusInternalServerError, "your payment was received but the order could not be confirmed; support has been notified"},
	"idempotency_conflict":             {http.StatusConflict, "this idempotency key was already used with a different cart"},
	"checkout_in_progress":             {http.StatusConflict, "a checkout with this key is already in progress"},
	"persistence_failure":              {http.StatusInternalServerError, "something went wrong, please try again"},
}

// writeCheckoutError maps an orchestration error to its wire representation.
// The kind matches the metric label for the same failure.
func writeCheckoutError(w http.ResponseWriter, err error) {
	kind := order.FailureKind(err)
	m, ok := checkoutErrorMap[kind]
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
		return
	}
	writeError(w, m.status, kind, m.message)
}
