package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation-trader/order"
)

type recordedCall struct {
	action string
	failed bool
}

type callRecorder struct{ calls []recordedCall }

func (r *callRecorder) BrokerCall(action string, seconds float64, err error) {
	r.calls = append(r.calls, recordedCall{action: action, failed: err != nil})
}

func TestInstrumentedReportsEveryCall(t *testing.T) {
	p := NewPaper()
	rec := &callRecorder{}
	b := &Instrumented{Broker: p, Observer: rec}
	ctx := context.Background()

	_, err := b.Positions(ctx)
	require.NoError(t, err)
	require.NoError(t, b.PlaceOrder(ctx, order.Order{ID: "o1", Symbol: "ABC", Side: order.SideBuy, Price: 1, Quantity: 1}))
	assert.Error(t, b.CancelOrder(ctx, order.Order{ID: "missing"}))

	p.SetConnected(false)
	_, err = b.MarketData(ctx, []string{"ABC"})
	assert.ErrorIs(t, err, ErrDisconnected)

	assert.Equal(t, []recordedCall{
		{action: "positions"},
		{action: "place_order"},
		{action: "cancel_order", failed: true},
		{action: "market_data", failed: true},
	}, rec.calls)
}
