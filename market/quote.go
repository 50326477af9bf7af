package market

import (
	"errors"
	"time"
)

// ErrNoQuote 行情缺失（DataUnavailable），调用方应跳过该标的。
var ErrNoQuote = errors.New("quote unavailable")

// Quote 单个标的的行情快照，由网关 get_market_data 提供。
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	PrevClose float64
	// Volume 网关回报的日均成交量，用于流动性上限 MAXALW。
	Volume float64
	Ts     time.Time
}

// Valid 买卖价均为正且未倒挂。
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0 && q.Ask >= q.Bid
}

// Spread 返回买卖价差；报价无效时为 0。
func (q Quote) Spread() float64 {
	if !q.Valid() {
		return 0
	}
	return q.Ask - q.Bid
}

// Mid 返回中间价；报价无效时为 0。
func (q Quote) Mid() float64 {
	if !q.Valid() {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// Reference 参考价：优先最新成交价，其次中间价。
func (q Quote) Reference() float64 {
	if q.Last > 0 {
		return q.Last
	}
	return q.Mid()
}
