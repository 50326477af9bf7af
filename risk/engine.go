package risk

import (
	"sync"

	"rotation-trader/order"
)

// Positions 提供持仓与日初基准。
type Positions interface {
	NetExposure(symbol string) float64
	Baseline(symbol string) float64
}

// PendingBook 提供在途挂单数量。
type PendingBook interface {
	Pending(symbol string) (buy, sell float64)
}

// Engine 持有风控所需的会话状态（日计数、公司台账、流动性缓存），
// 组合各项检查给出可下单数量。
type Engine struct {
	guard    MultiGuard
	pos      Positions
	pending  PendingBook
	counters *DailyCounters
	notifier *Notifier

	mu        sync.RWMutex
	avgVolume map[string]float64
	peers     map[string]int
}

func NewEngine(limits Limits, pos Positions, pending PendingBook, counters *DailyCounters, notifier *Notifier) *Engine {
	if counters == nil {
		counters = NewDailyCounters(nil, nil, nil)
	}
	if notifier == nil {
		notifier = NewNotifier(nil, nil, nil)
	}
	return &Engine{
		guard:     MultiGuard{Limits: limits, Chain: DefaultChain()},
		pos:       pos,
		pending:   pending,
		counters:  counters,
		notifier:  notifier,
		avgVolume: make(map[string]float64),
		peers:     make(map[string]int),
	}
}

// Limits 返回风控常量。
func (e *Engine) Limits() Limits { return e.guard.Limits }

// Counters 返回日计数器。
func (e *Engine) Counters() *DailyCounters { return e.counters }

// SetAverageVolume 更新某标的的日均成交量（每个会话刷新一次）。
func (e *Engine) SetAverageVolume(symbol string, v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.avgVolume[symbol] = v
}

// SetUniverse 以评分列表统计每个公司根的同族标的数。
func (e *Engine) SetUniverse(symbols []string) {
	peers := make(map[string]int)
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			continue
		}
		seen[s] = true
		peers[CompanyRoot(s)]++
	}
	e.mu.Lock()
	e.peers = peers
	e.mu.Unlock()
}

// Peers 返回同公司标的数（至少为 1）。
func (e *Engine) Peers(symbol string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n := e.peers[CompanyRoot(symbol)]; n > 0 {
		return n
	}
	return 1
}

// MaxAllowed 返回某标的的 MAXALW。
func (e *Engine) MaxAllowed(symbol string) float64 {
	e.mu.RLock()
	v := e.avgVolume[symbol]
	e.mu.RUnlock()
	return e.guard.Limits.MaxAllowed(v)
}

// Exposure 汇总某次请求的状态快照。
func (e *Engine) Exposure(req Request) Exposure {
	x := Exposure{
		DailyVolume:   e.counters.Get(Key(BucketVolume, req.Symbol, string(req.Side))),
		CompanyOrders: int(e.counters.Get(Key(BucketCompany, CompanyRoot(req.Symbol), string(req.Side)))),
		CompanyPeers:  e.Peers(req.Symbol),
	}
	if e.pos != nil {
		x.Position = e.pos.NetExposure(req.Symbol)
		x.Baseline = e.pos.Baseline(req.Symbol)
	}
	if e.pending != nil {
		x.PendingBuy, x.PendingSell = e.pending.Pending(req.Symbol)
	}
	e.mu.RLock()
	x.AvgDailyVolume = e.avgVolume[req.Symbol]
	e.mu.RUnlock()
	return x
}

// Evaluate 依次执行各项检查并记录每一项结论。
func (e *Engine) Evaluate(req Request) Decision {
	d, steps := e.guard.Evaluate(req, e.Exposure(req))
	for _, s := range steps {
		e.notifier.NotifyDecision(req, s)
	}
	return d
}

// Commit 登记已被网关接受的普通单：日累计量与公司台账。
func (e *Engine) Commit(symbol string, side order.Side, size float64) {
	e.counters.Add(Key(BucketVolume, symbol, string(side)), size)
	e.counters.Add(Key(BucketCompany, CompanyRoot(symbol), string(side)), 1)
}
