package inventory

import (
	"math"
	"sort"
	"sync"

	"rotation-trader/order"
)

// Position 单个标的的净仓位（多正空负）与平均成本。
type Position struct {
	Symbol   string
	Quantity float64
	AvgCost  float64
}

// Tracker 维护多标的净仓位与日初基准。
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]Position
	baseline  map[string]float64
}

func NewTracker() *Tracker {
	return &Tracker{
		positions: make(map[string]Position),
		baseline:  make(map[string]float64),
	}
}

// IsIncrease 判断 delta 是否扩大 |pos|（空仓时任何成交都算开仓）。
func IsIncrease(pos, delta float64) bool {
	if delta == 0 {
		return false
	}
	return pos == 0 || (pos > 0) == (delta > 0)
}

// Update 根据成交调整仓位，返回该成交是否为加仓。
func (t *Tracker) Update(symbol string, side order.Side, price, size float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.positions[symbol]
	p.Symbol = symbol
	delta := side.Sign() * size
	increase := IsIncrease(p.Quantity, delta)
	next := p.Quantity + delta
	switch {
	case math.Abs(next) < 1e-9:
		next = 0
		p.AvgCost = 0
	case increase:
		// 加权平均成本
		p.AvgCost = (p.AvgCost*math.Abs(p.Quantity) + price*size) / math.Abs(next)
	case (p.Quantity > 0) != (next > 0):
		// 穿越零轴，剩余部分按成交价开仓
		p.AvgCost = price
	}
	p.Quantity = next
	t.positions[symbol] = p
	return increase
}

// Sync 以券商持仓快照覆盖本地仓位。
func (t *Tracker) Sync(positions []Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions = make(map[string]Position, len(positions))
	for _, p := range positions {
		t.positions[p.Symbol] = p
	}
}

// Get 返回某标的仓位（不存在时为零值）。
func (t *Tracker) Get(symbol string) Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p := t.positions[symbol]
	p.Symbol = symbol
	return p
}

// NetExposure 返回某标的净仓位。
func (t *Tracker) NetExposure(symbol string) float64 {
	return t.Get(symbol).Quantity
}

// All 返回所有非零仓位（按标的排序）。
func (t *Tracker) All() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		if p.Quantity != 0 {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res
}

// Valuation 基于 mark 价计算某标的未实现盈亏。
func (t *Tracker) Valuation(symbol string, mark float64) (net float64, pnl float64) {
	p := t.Get(symbol)
	return p.Quantity, (mark - p.AvgCost) * p.Quantity
}

// SetBaseline 设置日初基准仓位。
func (t *Tracker) SetBaseline(b map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = make(map[string]float64, len(b))
	for k, v := range b {
		t.baseline[k] = v
	}
}

// Baseline 返回日初基准仓位；未登记的标的视为 0。
func (t *Tracker) Baseline(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baseline[symbol]
}

// CaptureBaseline 以当前仓位作为日初基准（无基准文件时使用）。
func (t *Tracker) CaptureBaseline() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = make(map[string]float64, len(t.positions))
	for sym, p := range t.positions {
		t.baseline[sym] = p.Quantity
	}
	out := make(map[string]float64, len(t.baseline))
	for k, v := range t.baseline {
		out[k] = v
	}
	return out
}
