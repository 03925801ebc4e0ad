// Package gateway adapts the external payment processor's HTTP API to the
// payment.Gateway port. The processor is opaque: one POST per charge, a JSON
// verdict back.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/evercart/checkout/internal/domain/payment"
)

// chargeRequest is the wire form of a charge attempt.
type chargeRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// chargeResponse is the processor's verdict.
type chargeResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

// HTTPGateway implements payment.Gateway against a processor endpoint.
type HTTPGateway struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

var _ payment.Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway returns a gateway for the given endpoint. The client's
// timeout is left to the caller; the orchestrator wraps every call in a
// per-attempt deadline.
func NewHTTPGateway(client *http.Client, endpoint, apiKey string) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{client: client, endpoint: endpoint, apiKey: apiKey}
}

// CreateCharge submits one charge attempt. 4xx verdicts are declines, 5xx
// and network errors are transient, and context deadlines surface as
// payment.ErrTimeout.
func (g *HTTPGateway) CreateCharge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	body, err := json.Marshal(chargeRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode charge")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, payment.ErrTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, payment.ErrTimeout
		}
		return nil, errors.Wrap(payment.ErrTransient, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, errors.Wrapf(payment.ErrTransient, "gateway status %d", resp.StatusCode)
	}

	var verdict chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, errors.Wrap(payment.ErrTransient, err.Error())
	}

	if resp.StatusCode >= 400 || !verdict.Success {
		reason := verdict.Reason
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return nil, errors.Wrap(payment.ErrDeclined, reason)
	}
	return &payment.Charge{Reference: verdict.Reference}, nil
}
