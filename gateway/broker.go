package gateway

import (
	"context"
	"errors"
	"time"

	"rotation-trader/market"
	"rotation-trader/order"
)

var (
	// ErrDisconnected 网关连接整体丢失；只有该错误会暂停阶段推进。
	ErrDisconnected = errors.New("gateway disconnected")
	// ErrUnknownOrder 网关侧找不到订单
	ErrUnknownOrder = errors.New("gateway: unknown order")
	// ErrOrderRejected 网关拒单
	ErrOrderRejected = errors.New("gateway: order rejected")
)

// Position 券商回报的持仓。
type Position struct {
	Symbol   string
	Quantity float64 // 多正空负
	AvgCost  float64
}

// Fill 券商回报的成交。
type Fill struct {
	ID      string // 券商成交编号，可为空
	OrderID string
	Symbol  string
	Side    order.Side
	Price   float64
	Size    float64
	Time    time.Time
}

// Broker 券商/行情网关。调用对编排器是同步的，超时语义由实现决定。
type Broker interface {
	Positions(ctx context.Context) ([]Position, error)
	OpenOrders(ctx context.Context) ([]order.Order, error)
	CancelOrder(ctx context.Context, o order.Order) error
	PlaceOrder(ctx context.Context, o order.Order) error
	MarketData(ctx context.Context, symbols []string) (map[string]market.Quote, error)
	FillsSince(ctx context.Context, since time.Time) ([]Fill, error)
}

// IsDisconnected 判断错误是否代表连接丢失。
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
