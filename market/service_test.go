package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	quotes map[string]Quote
	err    error
}

func (s stubSource) MarketData(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]Quote)
	for _, sym := range symbols {
		if q, ok := s.quotes[sym]; ok {
			out[sym] = q
		}
	}
	return out, nil
}

func TestServiceMidStampsTime(t *testing.T) {
	svc := NewService(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	svc.OnQuote(Quote{Symbol: "ABC", Bid: 100, Ask: 101})
	assert.Equal(t, 100.5, svc.Mid("ABC"))
	q, err := svc.Quote("ABC")
	require.NoError(t, err)
	assert.Equal(t, now, q.Ts)
	assert.Zero(t, svc.Mid("MISSING"))
}

func TestServiceQuoteMissing(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Quote("NOPE")
	assert.True(t, errors.Is(err, ErrNoQuote))

	svc.OnQuote(Quote{Symbol: "BAD", Bid: 10, Ask: 9})
	_, err = svc.Quote("BAD")
	assert.True(t, errors.Is(err, ErrNoQuote), "crossed quote must be treated as unavailable")
}

func TestServiceRefresh(t *testing.T) {
	svc := NewService(nil)
	src := stubSource{quotes: map[string]Quote{
		"ABC": {Bid: 5, Ask: 5.02, Last: 5.01},
		"XYZ": {Symbol: "XYZ", Bid: 10, Ask: 10.1},
	}}
	n, err := svc.Refresh(context.Background(), src, []string{"ABC", "XYZ", "MISSING"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	q, err := svc.Quote("ABC")
	require.NoError(t, err)
	assert.Equal(t, "ABC", q.Symbol)
	assert.Equal(t, 5.01, svc.Last("ABC"))

	_, err = svc.Refresh(context.Background(), stubSource{err: errors.New("down")}, []string{"ABC"})
	assert.Error(t, err)
}

func TestServicePublishesQuote(t *testing.T) {
	pub := NewPublisher()
	ch := pub.SubscribeQuote(1)
	svc := NewService(pub)
	svc.OnQuote(Quote{Symbol: "ABC", Bid: 1, Ask: 1.01})
	select {
	case q := <-ch:
		assert.Equal(t, "ABC", q.Symbol)
	default:
		t.Fatalf("expected quote published")
	}
}
