package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rotation-trader/market"
	"rotation-trader/order"
)

// Paper 内存模拟券商：挂单在报价穿越时按挂单价全部成交。
// 用于 dry-run 与集成测试。
type Paper struct {
	mu        sync.Mutex
	connected bool
	quotes    map[string]market.Quote
	positions map[string]*Position
	orders    map[string]order.Order
	fills     []Fill
	onFill    func(Fill)
	now       func() time.Time
	rejectAll bool
}

// NewPaper 创建模拟券商
func NewPaper() *Paper {
	return &Paper{
		connected: true,
		quotes:    make(map[string]market.Quote),
		positions: make(map[string]*Position),
		orders:    make(map[string]order.Order),
		now:       time.Now,
	}
}

// SetClock 替换时间源（测试用）。
func (p *Paper) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// SetFillCallback 设置成交回调（模拟成交推送流）。
func (p *Paper) SetFillCallback(cb func(Fill)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFill = cb
}

// SetConnected 模拟断线/重连。
func (p *Paper) SetConnected(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = ok
}

// SetRejectAll 让后续下单全部被拒。
func (p *Paper) SetRejectAll(reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectAll = reject
}

// SetPosition 直接设置持仓（模拟隔夜持仓）。
func (p *Paper) SetPosition(symbol string, qty, avgCost float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[symbol] = &Position{Symbol: symbol, Quantity: qty, AvgCost: avgCost}
}

// SetQuote 更新行情并撮合可成交挂单。
func (p *Paper) SetQuote(q market.Quote) {
	p.mu.Lock()
	p.quotes[q.Symbol] = q
	fills := p.matchLocked(q)
	cb := p.onFill
	p.mu.Unlock()
	if cb != nil {
		for _, f := range fills {
			cb(f)
		}
	}
}

// InjectFill 记录一笔外部成交（例如断线期间的成交），只改持仓不触发回调。
func (p *Paper) InjectFill(f Fill) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Time.IsZero() {
		f.Time = p.now()
	}
	p.applyFillLocked(f)
}

func (p *Paper) Positions(ctx context.Context) ([]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrDisconnected
	}
	res := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if pos.Quantity == 0 {
			continue
		}
		res = append(res, *pos)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res, nil
}

func (p *Paper) OpenOrders(ctx context.Context) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrDisconnected
	}
	res := make([]order.Order, 0, len(p.orders))
	for _, o := range p.orders {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (p *Paper) CancelOrder(ctx context.Context, o order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return ErrDisconnected
	}
	if _, ok := p.orders[o.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, o.ID)
	}
	delete(p.orders, o.ID)
	return nil
}

func (p *Paper) PlaceOrder(ctx context.Context, o order.Order) error {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return ErrDisconnected
	}
	if p.rejectAll {
		p.mu.Unlock()
		return fmt.Errorf("%w: paper %s", ErrOrderRejected, o.ID)
	}
	o.Status = order.StatusAck
	p.orders[o.ID] = o
	var fills []Fill
	if q, ok := p.quotes[o.Symbol]; ok {
		fills = p.matchLocked(q)
	}
	cb := p.onFill
	p.mu.Unlock()
	if cb != nil {
		for _, f := range fills {
			cb(f)
		}
	}
	return nil
}

func (p *Paper) MarketData(ctx context.Context, symbols []string) (map[string]market.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrDisconnected
	}
	res := make(map[string]market.Quote, len(symbols))
	for _, s := range symbols {
		if q, ok := p.quotes[s]; ok {
			res[s] = q
		}
	}
	return res, nil
}

func (p *Paper) FillsSince(ctx context.Context, since time.Time) ([]Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrDisconnected
	}
	var res []Fill
	for _, f := range p.fills {
		if f.Time.After(since) {
			res = append(res, f)
		}
	}
	return res, nil
}

// matchLocked 撮合穿价挂单：买价>=卖一或卖价<=买一。
func (p *Paper) matchLocked(q market.Quote) []Fill {
	if !q.Valid() {
		return nil
	}
	var ids []string
	for id, o := range p.orders {
		if o.Symbol != q.Symbol {
			continue
		}
		if (o.Side == order.SideBuy && o.Price >= q.Ask) || (o.Side == order.SideSell && o.Price <= q.Bid) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	fills := make([]Fill, 0, len(ids))
	for _, id := range ids {
		o := p.orders[id]
		delete(p.orders, id)
		f := Fill{
			ID:      uuid.New().String(),
			OrderID: o.ID,
			Symbol:  o.Symbol,
			Side:    o.Side,
			Price:   o.Price,
			Size:    o.Quantity,
			Time:    p.now(),
		}
		p.applyFillLocked(f)
		fills = append(fills, f)
	}
	return fills
}

func (p *Paper) applyFillLocked(f Fill) {
	pos, ok := p.positions[f.Symbol]
	if !ok {
		pos = &Position{Symbol: f.Symbol}
		p.positions[f.Symbol] = pos
	}
	delta := f.Side.Sign() * f.Size
	next := pos.Quantity + delta
	switch {
	case next == 0:
		pos.AvgCost = 0
	case pos.Quantity == 0 || (pos.Quantity > 0) != (next > 0):
		pos.AvgCost = f.Price
	case (pos.Quantity > 0) == (delta > 0):
		pos.AvgCost = (pos.AvgCost*abs(pos.Quantity) + f.Price*f.Size) / abs(next)
	}
	pos.Quantity = next
	p.fills = append(p.fills, f)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
