package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGateway returns one queued response per call.
type scriptedGateway struct {
	calls   int
	charges []*Charge
	errs    []error
}

func (g *scriptedGateway) CreateCharge(_ context.Context, _ ChargeRequest) (*Charge, error) {
	i := g.calls
	g.calls++
	return g.charges[i], g.errs[i]
}

func req() ChargeRequest {
	return ChargeRequest{Amount: decimal.NewFromInt(50), Currency: "USD"}
}

func TestRetryingGateway_SuccessFirstAttempt(t *testing.T) {
	inner := &scriptedGateway{
		charges: []*Charge{{Reference: "ch_1"}},
		errs:    []error{nil},
	}
	g := NewRetryingGateway(inner, time.Second)

	charge, err := g.CreateCharge(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, "ch_1", charge.Reference)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingGateway_RetriesTransientOnce(t *testing.T) {
	inner := &scriptedGateway{
		charges: []*Charge{nil, {Reference: "ch_2"}},
		errs:    []error{ErrTransient, nil},
	}
	g := NewRetryingGateway(inner, time.Second)

	charge, err := g.CreateCharge(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, "ch_2", charge.Reference)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingGateway_TransientTwiceGivesUp(t *testing.T) {
	inner := &scriptedGateway{
		charges: []*Charge{nil, nil},
		errs:    []error{ErrTransient, ErrTransient},
	}
	g := NewRetryingGateway(inner, time.Second)

	_, err := g.CreateCharge(context.Background(), req())
	require.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingGateway_NeverRetriesDecline(t *testing.T) {
	inner := &scriptedGateway{
		charges: []*Charge{nil},
		errs:    []error{ErrDeclined},
	}
	g := NewRetryingGateway(inner, time.Second)

	_, err := g.CreateCharge(context.Background(), req())
	require.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, 1, inner.calls, "a declined charge must not be retried")
}

func TestRetryingGateway_NeverRetriesTimeout(t *testing.T) {
	// A timed-out charge may have landed; retrying risks a double charge.
	inner := &scriptedGateway{
		charges: []*Charge{nil},
		errs:    []error{ErrTimeout},
	}
	g := NewRetryingGateway(inner, time.Second)

	_, err := g.CreateCharge(context.Background(), req())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingGateway_DeadlineBecomesTimeout(t *testing.T) {
	slow := gatewayFunc(func(ctx context.Context, _ ChargeRequest) (*Charge, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	g := NewRetryingGateway(slow, 10*time.Millisecond)

	_, err := g.CreateCharge(context.Background(), req())
	require.ErrorIs(t, err, ErrTimeout)
}

type gatewayFunc func(ctx context.Context, req ChargeRequest) (*Charge, error)

func (f gatewayFunc) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	return f(ctx, req)
}
