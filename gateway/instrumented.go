package gateway

import (
	"context"
	"time"

	"rotation-trader/market"
	"rotation-trader/order"
)

// CallObserver 接收每次网关调用的耗时与结果（由 monitor 实现）。
type CallObserver interface {
	BrokerCall(action string, seconds float64, err error)
}

// Instrumented 给 Broker 的每次调用计时并上报。
type Instrumented struct {
	Broker   Broker
	Observer CallObserver
}

func (i *Instrumented) observe(action string, start time.Time, err error) {
	if i.Observer != nil {
		i.Observer.BrokerCall(action, time.Since(start).Seconds(), err)
	}
}

func (i *Instrumented) Positions(ctx context.Context) (res []Position, err error) {
	defer func(start time.Time) { i.observe("positions", start, err) }(time.Now())
	return i.Broker.Positions(ctx)
}

func (i *Instrumented) OpenOrders(ctx context.Context) (res []order.Order, err error) {
	defer func(start time.Time) { i.observe("open_orders", start, err) }(time.Now())
	return i.Broker.OpenOrders(ctx)
}

func (i *Instrumented) CancelOrder(ctx context.Context, o order.Order) (err error) {
	defer func(start time.Time) { i.observe("cancel_order", start, err) }(time.Now())
	return i.Broker.CancelOrder(ctx, o)
}

func (i *Instrumented) PlaceOrder(ctx context.Context, o order.Order) (err error) {
	defer func(start time.Time) { i.observe("place_order", start, err) }(time.Now())
	return i.Broker.PlaceOrder(ctx, o)
}

func (i *Instrumented) MarketData(ctx context.Context, symbols []string) (res map[string]market.Quote, err error) {
	defer func(start time.Time) { i.observe("market_data", start, err) }(time.Now())
	return i.Broker.MarketData(ctx, symbols)
}

func (i *Instrumented) FillsSince(ctx context.Context, since time.Time) (res []Fill, err error) {
	defer func(start time.Time) { i.observe("fills_since", start, err) }(time.Now())
	return i.Broker.FillsSince(ctx, since)
}
