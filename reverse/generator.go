// Package reverse 在同方向加仓成交累计到阈值后生成反向止盈单。
package reverse

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"rotation-trader/internal/audit"
	"rotation-trader/market"
	"rotation-trader/order"
	"rotation-trader/risk"
)

// 计数桶
const (
	BucketFill    = "fill"    // 同方向加仓成交日累计，键 symbol|side
	BucketReverse = "reverse" // 今日已开反向单量，键 symbol|reverse side
)

var (
	ErrPriceTooLow = errors.New("reverse price too low")
	ErrNoRoom      = errors.New("no reverse volume left")
)

// Config 反向单常量。
type Config struct {
	Trigger      float64 // 触发阈值
	DailyCap     float64 // 每标的每方向日上限
	MinProfit    float64 // 最小利润
	DepthRange   float64 // 合成深度的最远距离
	PassiveRatio float64 // 被动挂价相对价差比例
	MinPrice     float64 // 价格下限（含）
	Tick         float64
}

// DefaultConfig 返回默认常量。
func DefaultConfig() Config {
	return Config{
		Trigger:      200,
		DailyCap:     600,
		MinProfit:    0.05,
		DepthRange:   0.10,
		PassiveRatio: 0.15,
		MinPrice:     0.10,
		Tick:         market.DefaultTick,
	}
}

// Fill 触发判断所需的成交信息。
type Fill struct {
	Symbol   string
	Side     order.Side
	Price    float64
	Size     float64
	Increase bool
}

// Quotes 行情查询。
type Quotes interface {
	Quote(symbol string) (market.Quote, error)
}

// Submitter 下单接口（由 order.Manager 实现）。
type Submitter interface {
	Submit(ctx context.Context, o order.Order) (*order.Order, error)
}

// Generator 维护每个标的的同方向成交量与反向单量并生成反向单。
type Generator struct {
	cfg      Config
	counters *risk.DailyCounters
	quotes   Quotes
	sub      Submitter
	logger   *zap.Logger
	sink     audit.Sink
}

func NewGenerator(cfg Config, counters *risk.DailyCounters, quotes Quotes, sub Submitter, logger *zap.Logger, sink audit.Sink) *Generator {
	if counters == nil {
		counters = risk.NewDailyCounters(nil, nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = market.DefaultTick
	}
	return &Generator{cfg: cfg, counters: counters, quotes: quotes, sub: sub, logger: logger, sink: sink}
}

// FillVolume 返回今日同方向加仓成交累计。
func (g *Generator) FillVolume(symbol string, side order.Side) float64 {
	return g.counters.Get(risk.Key(BucketFill, symbol, string(side)))
}

// Opened 返回今日已开的某方向反向单量。
func (g *Generator) Opened(symbol string, reverseSide order.Side) float64 {
	return g.counters.Get(risk.Key(BucketReverse, symbol, string(reverseSide)))
}

// Size 计算反向单数量：min(未覆盖的同方向成交量, 日上限 - 今日已开)。
func (g *Generator) Size(symbol string, fillSide order.Side) float64 {
	opened := g.Opened(symbol, fillSide.Opposite())
	uncovered := g.FillVolume(symbol, fillSide) - opened
	// 已覆盖的量同时计入日上限，剩余额度不超过 DailyCap - opened
	room := g.cfg.DailyCap - opened
	return math.Floor(math.Min(uncovered, room) + 1e-9)
}

// OnFill 处理一笔成交；仅加仓成交累计并可能触发反向单。
// 未触发时返回 (nil, nil)。
func (g *Generator) OnFill(ctx context.Context, f Fill) (*order.Order, error) {
	if !f.Increase || f.Size <= 0 {
		return nil, nil
	}
	total := g.counters.Add(risk.Key(BucketFill, f.Symbol, string(f.Side)), f.Size)
	if total < g.cfg.Trigger {
		return nil, nil
	}
	size := g.Size(f.Symbol, f.Side)
	if size <= 0 {
		g.logger.Debug("reverse skipped: nothing uncovered",
			zap.String("symbol", f.Symbol),
			zap.Float64("fill_volume", total))
		return nil, nil
	}

	var q market.Quote
	if g.quotes != nil {
		q, _ = g.quotes.Quote(f.Symbol)
	}
	revSide := f.Side.Opposite()
	price, how := g.Price(f.Side, f.Price, q)
	basis := map[string]float64{
		"fill_price":  f.Price,
		"fill_volume": total,
		"size":        size,
		"price":       price,
		"bid":         q.Bid,
		"ask":         q.Ask,
	}
	if price <= g.cfg.MinPrice+1e-9 {
		g.sink.Append(audit.Event{Kind: audit.KindReverse, Symbol: f.Symbol, Message: "rejected: price too low", Basis: basis})
		return nil, fmt.Errorf("%w: %s %.2f", ErrPriceTooLow, f.Symbol, price)
	}

	o := order.Order{
		Symbol:   f.Symbol,
		Side:     revSide,
		Type:     "LIMIT",
		Price:    price,
		Quantity: size,
		Hidden:   true,
		Kind:     order.KindReverse,
	}
	placed, err := g.sub.Submit(ctx, o)
	if err != nil {
		g.sink.Append(audit.Event{Kind: audit.KindReverse, Symbol: f.Symbol, Message: "submit failed: " + err.Error(), Basis: basis})
		return nil, err
	}
	g.counters.Add(risk.Key(BucketReverse, f.Symbol, string(revSide)), size)
	g.logger.Info("reverse order placed",
		zap.String("symbol", f.Symbol),
		zap.String("side", string(revSide)),
		zap.Float64("qty", size),
		zap.Float64("price", price),
		zap.String("pricing", how))
	g.sink.Append(audit.Event{
		Kind:    audit.KindReverse,
		Symbol:  f.Symbol,
		Message: fmt.Sprintf("placed %s %.0f@%.2f (%s)", revSide, size, price, how),
		Basis:   basis,
	})
	return placed, nil
}
