// Package payment defines the adapter boundary to the external payment
// processor. The processor is opaque: it either confirms a charge with a
// reference or fails with a reason.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Failure classification. Declines are final; transient failures and
// timeouts may be retried once by RetryingGateway.
var (
	ErrDeclined  = errors.New("charge declined")
	ErrTransient = errors.New("transient gateway error")
	ErrTimeout   = errors.New("gateway timeout")
)

// ChargeRequest describes a single charge attempt.
type ChargeRequest struct {
	Amount   decimal.Decimal
	Currency string
	// Metadata travels to the processor for reconciliation; keys are short
	// identifiers like order_id and idempotency_key.
	Metadata map[string]string
}

// Charge is a confirmed capture.
type Charge struct {
	Reference string
}

// Gateway is the opaque charge interface. Implementations must honor the
// context deadline; a call that outlives it reports ErrTimeout.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}
