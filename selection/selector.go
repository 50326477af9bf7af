package selection

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"rotation-trader/internal/audit"
	"rotation-trader/market"
	"rotation-trader/order"
	"rotation-trader/risk"
)

// Precondition 阶段的持仓前置条件。
type Precondition int

const (
	PreconditionNone Precondition = iota
	RequiresLong
	RequiresShort
)

func (p Precondition) String() string {
	switch p {
	case RequiresLong:
		return "requires_long"
	case RequiresShort:
		return "requires_short"
	default:
		return "none"
	}
}

// Satisfied 判断当前持仓是否满足前置条件。
func (p Precondition) Satisfied(position float64) bool {
	switch p {
	case RequiresLong:
		return position > 0
	case RequiresShort:
		return position < 0
	default:
		return true
	}
}

// Context 单个阶段的选股参数。
type Context struct {
	Name     string
	Column   string
	Side     order.Side
	Cheap    bool // true 升序（便宜优先），false 降序
	Min, Max float64
	N        int
	Lot      float64
	Requires Precondition
	Front    bool
}

// InRange 分数是否落在闭区间内。
func (c Context) InRange(score float64) bool {
	return score >= c.Min && score <= c.Max
}

// Candidate 通过全部校验的候选。
type Candidate struct {
	Symbol   string
	Score    float64
	Side     order.Side
	Size     float64
	Price    float64 // 目标限价
	Quote    market.Quote
	Decision risk.Decision
}

// Quotes 行情查询。
type Quotes interface {
	Quote(symbol string) (market.Quote, error)
}

// Positions 持仓查询。
type Positions interface {
	NetExposure(symbol string) float64
}

// Pending 在途挂单冲突查询。
type Pending interface {
	HasNear(symbol string, side order.Side, price, band float64) bool
}

// RiskEngine 风控评估。
type RiskEngine interface {
	Evaluate(req risk.Request) risk.Decision
	Exposure(req risk.Request) risk.Exposure
	Limits() risk.Limits
}

// Config 选股常量。
type Config struct {
	PoolFactor     int
	ConflictBand   float64
	FrontRatio     float64
	FrontMinSpread float64
	Tick           float64
}

// DefaultConfig 返回默认常量。
func DefaultConfig() Config {
	return Config{
		PoolFactor:     3,
		ConflictBand:   0.08,
		FrontRatio:     0.35,
		FrontMinSpread: 0.06,
		Tick:           market.DefaultTick,
	}
}

// Selector 组合行情、持仓、挂单与风控，为阶段产出候选。
type Selector struct {
	cfg        Config
	quotes     Quotes
	positions  Positions
	pending    Pending
	risk       RiskEngine
	exclusions *Exclusions
	logger     *zap.Logger
	sink       audit.Sink
}

func NewSelector(cfg Config, quotes Quotes, positions Positions, pending Pending, re RiskEngine, excl *Exclusions, logger *zap.Logger, sink audit.Sink) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if cfg.PoolFactor <= 0 {
		cfg.PoolFactor = 3
	}
	if cfg.Tick <= 0 {
		cfg.Tick = market.DefaultTick
	}
	return &Selector{
		cfg:        cfg,
		quotes:     quotes,
		positions:  positions,
		pending:    pending,
		risk:       re,
		exclusions: excl,
		logger:     logger,
		sink:       sink,
	}
}

type scored struct {
	symbol string
	score  float64
}

// rank 按有效区间、排除名单与持仓前置条件过滤后排序。
func (s *Selector) rank(ctx Context, rows []Row) []scored {
	var res []scored
	for _, r := range rows {
		v, ok := r.Score(ctx.Column)
		if !ok || !ctx.InRange(v) {
			continue
		}
		if s.exclusions.Contains(r.Symbol) {
			continue
		}
		if ctx.Requires != PreconditionNone {
			pos := 0.0
			if s.positions != nil {
				pos = s.positions.NetExposure(r.Symbol)
			}
			if !ctx.Requires.Satisfied(pos) {
				continue
			}
		}
		res = append(res, scored{symbol: r.Symbol, score: v})
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].score != res[j].score {
			if ctx.Cheap {
				return res[i].score < res[j].score
			}
			return res[i].score > res[j].score
		}
		return res[i].symbol < res[j].symbol
	})
	return res
}

// Select 返回至多 N 个候选；空结果表示跳过该阶段。
// 从约 3N 的候选池中按切片逐段补位，直到满 N 或池耗尽。
func (s *Selector) Select(ctx Context, rows []Row) []Candidate {
	if ctx.N <= 0 {
		return nil
	}
	ranked := s.rank(ctx, rows)
	poolSize := ctx.N * s.cfg.PoolFactor
	if poolSize > len(ranked) {
		poolSize = len(ranked)
	}
	pool := ranked[:poolSize]

	var (
		out   []Candidate
		batch = make(map[string]int)
	)
	for start := 0; start < len(pool) && len(out) < ctx.N; {
		end := start + (ctx.N - len(out))
		if end > len(pool) {
			end = len(pool)
		}
		for _, c := range pool[start:end] {
			if cand, ok := s.admit(ctx, c, batch); ok {
				out = append(out, cand)
				batch[risk.CompanyRoot(cand.Symbol)]++
			}
		}
		start = end
	}
	s.logger.Info("phase candidates selected",
		zap.String("phase", ctx.Name),
		zap.String("column", ctx.Column),
		zap.Int("ranked", len(ranked)),
		zap.Int("pool", len(pool)),
		zap.Int("selected", len(out)))
	return out
}

func (s *Selector) admit(ctx Context, c scored, batch map[string]int) (Candidate, bool) {
	q, err := s.quotes.Quote(c.symbol)
	if err != nil || !q.Valid() {
		s.logger.Debug("candidate skipped: no quote", zap.String("symbol", c.symbol), zap.Error(err))
		return Candidate{}, false
	}
	ref := q.Reference()
	if s.pending != nil && s.pending.HasNear(c.symbol, ctx.Side, ref, s.cfg.ConflictBand) {
		s.drop(ctx, c.symbol, "resting same-side order near reference", map[string]float64{"reference": ref, "band": s.cfg.ConflictBand})
		return Candidate{}, false
	}

	req := risk.Request{Symbol: c.symbol, Side: ctx.Side, Size: ctx.Lot}
	x := s.risk.Exposure(req)
	max := s.risk.Limits().CompanyMax(x.CompanyPeers)
	root := risk.CompanyRoot(c.symbol)
	if x.CompanyOrders+batch[root] >= max {
		s.drop(ctx, c.symbol, fmt.Sprintf("company %s concentration", root), map[string]float64{
			"orders":     float64(x.CompanyOrders),
			"in_batch":   float64(batch[root]),
			"max_orders": float64(max),
		})
		return Candidate{}, false
	}

	d := s.risk.Evaluate(req)
	if d.Rejected {
		return Candidate{}, false
	}

	target := TargetPrice(q, s.cfg.Tick)
	if ctx.Front && !s.frontOK(ctx.Side, q, target) {
		s.drop(ctx, c.symbol, "not at front", map[string]float64{
			"target": target, "bid": q.Bid, "ask": q.Ask, "spread": q.Spread(),
		})
		return Candidate{}, false
	}
	return Candidate{
		Symbol:   c.symbol,
		Score:    c.score,
		Side:     ctx.Side,
		Size:     d.Allowed,
		Price:    target,
		Quote:    q,
		Decision: d,
	}, true
}

// frontOK 买单目标价距买一、卖单目标价距卖一不超过 spread*ratio；
// 价差小于阈值时不检查。
func (s *Selector) frontOK(side order.Side, q market.Quote, target float64) bool {
	spread := q.Spread()
	if spread < s.cfg.FrontMinSpread {
		return true
	}
	limit := spread*s.cfg.FrontRatio + 1e-9
	if side == order.SideBuy {
		return math.Abs(target-q.Bid) <= limit
	}
	return math.Abs(q.Ask-target) <= limit
}

func (s *Selector) drop(ctx Context, symbol, reason string, basis map[string]float64) {
	s.logger.Debug("candidate dropped",
		zap.String("phase", ctx.Name),
		zap.String("symbol", symbol),
		zap.String("reason", reason))
	s.sink.Append(audit.Event{
		Kind:    audit.KindSelect,
		Symbol:  symbol,
		Message: ctx.Name + ": " + reason,
		Basis:   basis,
	})
}

// TargetPrice 最新成交价夹在 [bid, ask] 内并对齐 tick。
func TargetPrice(q market.Quote, tick float64) float64 {
	p := q.Reference()
	if p < q.Bid {
		p = q.Bid
	}
	if p > q.Ask {
		p = q.Ask
	}
	return market.RoundToTick(p, tick)
}
