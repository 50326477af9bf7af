package order

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	placed    []Order
	canceled  []string
	errPlace  error
	errCancel error
	open      []Order
	errOpen   error
}

func (m *mockGateway) PlaceOrder(ctx context.Context, o Order) error {
	m.placed = append(m.placed, o)
	return m.errPlace
}

func (m *mockGateway) CancelOrder(ctx context.Context, o Order) error {
	m.canceled = append(m.canceled, o.ID)
	return m.errCancel
}

func (m *mockGateway) OpenOrders(ctx context.Context) ([]Order, error) {
	return m.open, m.errOpen
}

func TestManagerSubmitAndCancel(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(gw, nil)
	sent, err := m.Submit(context.Background(), Order{Symbol: "ABC", Side: SideBuy, Price: 10, Quantity: 100})
	require.NoError(t, err)
	assert.Equal(t, StatusAck, sent.Status)
	assert.Equal(t, KindNormal, sent.Kind)
	assert.True(t, strings.HasPrefix(sent.ID, "nrm-"))

	st, ok := m.Status(sent.ID)
	assert.True(t, ok)
	assert.Equal(t, StatusAck, st)

	require.NoError(t, m.Cancel(context.Background(), sent.ID))
	assert.Equal(t, []string{sent.ID}, gw.canceled)
	_, ok = m.Status(sent.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, m.Cancel(context.Background(), sent.ID), ErrUnknownOrder)
}

func TestManagerSubmitRejected(t *testing.T) {
	gw := &mockGateway{errPlace: errors.New("no buying power")}
	m := NewManager(gw, nil)
	_, err := m.Submit(context.Background(), Order{Symbol: "ABC", Side: SideSell, Price: 10, Quantity: 10})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, m.GetActiveOrders())
}

func TestManagerConstraint(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(gw, nil)
	_, err := m.Submit(context.Background(), Order{Symbol: "ABC", Side: SideBuy, Price: 10.015, Quantity: 10})
	assert.ErrorIs(t, err, ErrRejected)
	_, err = m.Submit(context.Background(), Order{Symbol: "ABC", Side: SideBuy, Price: 0.05, Quantity: 10})
	assert.ErrorIs(t, err, ErrRejected, "price below minimum")
	_, err = m.Submit(context.Background(), Order{Symbol: "ABC", Side: "HOLD", Price: 10, Quantity: 10})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, gw.placed)

	m.SetConstraints(map[string]SymbolConstraints{"PENNY": {TickSize: 0.0001, StepSize: 1}})
	_, err = m.Submit(context.Background(), Order{Symbol: "PENNY", Side: SideBuy, Price: 0.0512, Quantity: 10})
	assert.NoError(t, err)
}

func TestManagerCancelWherePreservesReverse(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(gw, nil)
	ctx := context.Background()
	n1, _ := m.Submit(ctx, Order{Symbol: "ABC", Side: SideBuy, Price: 10, Quantity: 10})
	_, _ = m.Submit(ctx, Order{Symbol: "ABC", Side: SideSell, Price: 10.5, Quantity: 10, Kind: KindReverse, Hidden: true})
	n2, _ := m.Submit(ctx, Order{Symbol: "XYZ", Side: SideSell, Price: 20, Quantity: 5})

	canceled, err := m.CancelWhere(ctx, func(o Order) bool { return o.Kind == KindNormal })
	require.NoError(t, err)
	ids := []string{canceled[0].ID, canceled[1].ID}
	assert.ElementsMatch(t, []string{n1.ID, n2.ID}, ids)

	left := m.GetActiveOrders()
	require.Len(t, left, 1)
	assert.True(t, left[0].IsReverse())
}

func TestManagerCancelWhereReportsFailures(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(gw, nil)
	ctx := context.Background()
	_, _ = m.Submit(ctx, Order{Symbol: "ABC", Side: SideBuy, Price: 10, Quantity: 10})
	gw.errCancel = errors.New("gateway timeout")
	canceled, err := m.CancelWhere(ctx, func(Order) bool { return true })
	assert.Error(t, err)
	assert.Empty(t, canceled)
	assert.Len(t, m.GetActiveOrders(), 1)
}

func TestKindFromID(t *testing.T) {
	assert.Equal(t, KindReverse, KindFromID(NewID(KindReverse)))
	assert.Equal(t, KindNormal, KindFromID(NewID(KindNormal)))
	assert.Equal(t, KindNormal, KindFromID("12345"))
}

func TestSideHelpers(t *testing.T) {
	s, ok := ParseSide(" sell ")
	assert.True(t, ok)
	assert.Equal(t, SideSell, s)
	assert.Equal(t, SideBuy, s.Opposite())
	assert.Equal(t, -1.0, s.Sign())
	_, ok = ParseSide("hold")
	assert.False(t, ok)
	assert.Equal(t, -30.0, Order{Side: SideSell, Quantity: 30}.Signed())
}

func TestStateMachine(t *testing.T) {
	sm := NewStateMachine()
	assert.NoError(t, sm.ValidateTransition(StatusNew, StatusAck))
	assert.NoError(t, sm.ValidateTransition(StatusAck, StatusAck))
	assert.Error(t, sm.ValidateTransition(StatusFilled, StatusAck))
	assert.True(t, sm.IsFinalState(StatusCanceled))
	assert.True(t, sm.IsActiveState(StatusPartial))
	assert.False(t, sm.IsActiveState(StatusRejected))
}

func TestManagerApplyFillTracksRemaining(t *testing.T) {
	m := NewManager(&mockGateway{}, nil)
	sent, err := m.Submit(context.Background(), Order{Symbol: "ABC", Side: SideSell, Price: 10.5, Quantity: 300})
	require.NoError(t, err)

	o, err := m.ApplyFill(sent.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, o.Status)
	assert.Equal(t, 200.0, o.Remaining())
	assert.Equal(t, -200.0, o.Signed())

	buy, sell := m.Book().Pending("ABC")
	assert.Zero(t, buy)
	assert.Equal(t, 200.0, sell)
	assert.True(t, m.Book().HasNear("ABC", SideSell, 10.5, 0.08))
	require.Len(t, m.GetActiveOrders(), 1)

	o, err = m.ApplyFill(sent.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, o.Status)
	assert.Zero(t, o.Remaining())
	assert.Empty(t, m.GetActiveOrders())

	_, err = m.ApplyFill("missing", 10)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}
