package gateway

import (
	"context"
	"time"

	"rotation-trader/market"
	"rotation-trader/order"
)

// Limited 给任意 Broker 套上限流。
type Limited struct {
	Broker  Broker
	Limiter RateLimiter
}

// NewLimited 使用令牌桶包装 broker。
func NewLimited(b Broker, rate float64, burst int) *Limited {
	return &Limited{Broker: b, Limiter: NewTokenBucketLimiter(rate, burst)}
}

func (l *Limited) wait(ctx context.Context) error {
	if l.Limiter == nil {
		return nil
	}
	return l.Limiter.Wait(ctx)
}

func (l *Limited) Positions(ctx context.Context) ([]Position, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Broker.Positions(ctx)
}

func (l *Limited) OpenOrders(ctx context.Context) ([]order.Order, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Broker.OpenOrders(ctx)
}

func (l *Limited) CancelOrder(ctx context.Context, o order.Order) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Broker.CancelOrder(ctx, o)
}

func (l *Limited) PlaceOrder(ctx context.Context, o order.Order) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Broker.PlaceOrder(ctx, o)
}

func (l *Limited) MarketData(ctx context.Context, symbols []string) (map[string]market.Quote, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Broker.MarketData(ctx, symbols)
}

func (l *Limited) FillsSince(ctx context.Context, since time.Time) ([]Fill, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Broker.FillsSince(ctx, since)
}
