// Package bdata 维护仅追加的成交账本、按方向的加权均价、
// 相对基准的快照零点，以及断线期间成交的离线对账。
package bdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"rotation-trader/internal/audit"
	"rotation-trader/inventory"
	"rotation-trader/order"
)

// ErrReconciliationConflict 账本与券商持仓不一致且找不到可补录的成交。
var ErrReconciliationConflict = errors.New("reconciliation conflict")

// Fill 账本中的一笔成交，写入后不可变。
type Fill struct {
	ID        string
	Symbol    string
	Side      order.Side
	Price     float64
	Size      float64
	Time      time.Time
	Benchmark float64
	Increase  bool
}

// Signed 返回带符号数量。
func (f Fill) Signed() float64 { return f.Side.Sign() * f.Size }

// Snapshot 业绩零点。
type Snapshot struct {
	Symbol       string
	Date         string
	Price        float64
	Benchmark    float64
	Size         float64
	AvgCost      float64
	AvgBenchmark float64
}

// Averages 某标的某方向加仓成交的加权均价与均基准。
type Averages struct {
	Size         float64
	AvgCost      float64
	AvgBenchmark float64
}

type sums struct {
	size, notional, bench float64
}

func (s sums) averages() Averages {
	if s.size == 0 {
		return Averages{}
	}
	return Averages{Size: s.size, AvgCost: s.notional / s.size, AvgBenchmark: s.bench / s.size}
}

type avgKey struct {
	symbol string
	side   order.Side
}

// Tracker 成交账本、快照与持仓的唯一写入者。
type Tracker struct {
	mu         sync.Mutex
	store      Store
	positions  *inventory.Tracker
	fills      []Fill
	sums       map[avgKey]sums
	snapshots  map[string]Snapshot
	projection string
	logger     *zap.Logger
	sink       audit.Sink
	now        func() time.Time
}

// Options 可选依赖。
type Options struct {
	Positions  *inventory.Tracker
	Projection string // CSV 投影路径，空则不写
	Logger     *zap.Logger
	Sink       audit.Sink
	Now        func() time.Time
}

// NewTracker 从存储加载账本与快照。
func NewTracker(ctx context.Context, store Store, opts Options) (*Tracker, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sink == nil {
		opts.Sink = audit.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Positions == nil {
		opts.Positions = inventory.NewTracker()
	}
	t := &Tracker{
		store:      store,
		positions:  opts.Positions,
		sums:       make(map[avgKey]sums),
		snapshots:  make(map[string]Snapshot),
		projection: opts.Projection,
		logger:     opts.Logger,
		sink:       opts.Sink,
		now:        opts.Now,
	}
	fills, err := store.Fills(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	for _, f := range fills {
		t.applyLocked(f)
	}
	snaps, err := store.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	t.snapshots = snaps
	t.logger.Info("bdata loaded", zap.Int("fills", len(fills)), zap.Int("snapshots", len(snaps)))
	return t, nil
}

// Positions 返回持仓视图。
func (t *Tracker) Positions() *inventory.Tracker { return t.positions }

func (t *Tracker) applyLocked(f Fill) {
	t.fills = append(t.fills, f)
	if !f.Increase {
		return
	}
	k := avgKey{f.Symbol, f.Side}
	s := t.sums[k]
	s.size += f.Size
	s.notional += f.Price * f.Size
	s.bench += f.Benchmark * f.Size
	t.sums[k] = s
}

// RecordFill 以当前持仓判断是否加仓后写入账本。
func (t *Tracker) RecordFill(ctx context.Context, f Fill) (Fill, error) {
	f.Increase = inventory.IsIncrease(t.positions.NetExposure(f.Symbol), f.Signed())
	return f, t.AddFill(ctx, f)
}

// AddFill 追加成交、更新均价与持仓；首笔加仓且无快照时建立快照。
func (t *Tracker) AddFill(ctx context.Context, f Fill) error {
	if f.Size <= 0 {
		return fmt.Errorf("fill size %.4f must be > 0", f.Size)
	}
	if f.Time.IsZero() {
		f.Time = t.now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.AppendFill(ctx, f); err != nil {
		return err
	}
	t.applyLocked(f)
	t.positions.Update(f.Symbol, f.Side, f.Price, f.Size)

	if _, ok := t.snapshots[f.Symbol]; !ok && f.Increase {
		avg := t.sums[avgKey{f.Symbol, f.Side}].averages()
		snap := Snapshot{
			Symbol:       f.Symbol,
			Date:         f.Time.Local().Format("2006-01-02"),
			Price:        f.Price,
			Benchmark:    f.Benchmark,
			Size:         f.Signed(),
			AvgCost:      avg.AvgCost,
			AvgBenchmark: avg.AvgBenchmark,
		}
		if err := t.saveSnapshotLocked(ctx, snap); err != nil {
			t.logger.Warn("auto snapshot failed", zap.String("symbol", f.Symbol), zap.Error(err))
		}
	}
	t.logger.Info("fill recorded",
		zap.String("symbol", f.Symbol),
		zap.String("side", string(f.Side)),
		zap.Float64("price", f.Price),
		zap.Float64("size", f.Size),
		zap.Float64("benchmark", f.Benchmark),
		zap.Bool("increase", f.Increase))
	t.writeProjectionLocked()
	return nil
}

// CreateSnapshot 显式设置零点。
func (t *Tracker) CreateSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.Date == "" {
		snap.Date = t.now().Local().Format("2006-01-02")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.saveSnapshotLocked(ctx, snap); err != nil {
		return err
	}
	t.writeProjectionLocked()
	return nil
}

// ResetSnapshot 清除零点；下一次加仓或计算时重新建立。
func (t *Tracker) ResetSnapshot(ctx context.Context, symbol string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.DeleteSnapshot(ctx, symbol); err != nil {
		return err
	}
	delete(t.snapshots, symbol)
	t.writeProjectionLocked()
	return nil
}

func (t *Tracker) saveSnapshotLocked(ctx context.Context, snap Snapshot) error {
	if err := t.store.AppendSnapshot(ctx, snap); err != nil {
		return err
	}
	t.snapshots[snap.Symbol] = snap
	t.logger.Info("snapshot set",
		zap.String("symbol", snap.Symbol),
		zap.Float64("price", snap.Price),
		zap.Float64("benchmark", snap.Benchmark),
		zap.Float64("avg_cost", snap.AvgCost),
		zap.Float64("avg_benchmark", snap.AvgBenchmark))
	return nil
}

// Snapshot 返回某标的零点。
func (t *Tracker) Snapshot(symbol string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.snapshots[symbol]
	return s, ok
}

// Averages 返回某标的某方向加仓均价。
func (t *Tracker) Averages(symbol string, side order.Side) Averages {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sums[avgKey{symbol, side}].averages()
}

// LedgerNet 账本推导的净仓位。
func (t *Tracker) LedgerNet(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledgerNetLocked(symbol)
}

func (t *Tracker) ledgerNetLocked(symbol string) float64 {
	net := 0.0
	for _, f := range t.fills {
		if f.Symbol == symbol {
			net += f.Signed()
		}
	}
	return net
}

// Fills 返回某标的的成交（空 symbol 返回全部）。
func (t *Tracker) Fills(symbol string) []Fill {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []Fill
	for _, f := range t.fills {
		if symbol == "" || f.Symbol == symbol {
			res = append(res, f)
		}
	}
	return res
}

// Symbols 返回账本或快照中出现过的标的。
func (t *Tracker) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[string]bool)
	for _, f := range t.fills {
		seen[f.Symbol] = true
	}
	for s := range t.snapshots {
		seen[s] = true
	}
	res := make([]string, 0, len(seen))
	for s := range seen {
		res = append(res, s)
	}
	sort.Strings(res)
	return res
}

// CalculateAvgOutperformance 计算相对零点的超额表现：
// raw(p, b) = (p - avg_cost) - (b - avg_benchmark)，结果为 raw(当前) - raw(零点)，
// 空头方向取反。无零点时以当前时刻为隐式零点，反推 avg_benchmark 并持久化，返回 0。
func (t *Tracker) CalculateAvgOutperformance(ctx context.Context, symbol string, price, benchmark float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.snapshots[symbol]
	if !ok {
		net := t.positions.NetExposure(symbol)
		side := order.SideBuy
		if net < 0 {
			side = order.SideSell
		}
		avgCost := t.sums[avgKey{symbol, side}].averages().AvgCost
		if avgCost == 0 {
			avgCost = t.positions.Get(symbol).AvgCost
		}
		if avgCost == 0 {
			avgCost = price
		}
		snap = Snapshot{
			Symbol:       symbol,
			Date:         t.now().Local().Format("2006-01-02"),
			Price:        price,
			Benchmark:    benchmark,
			Size:         net,
			AvgCost:      avgCost,
			AvgBenchmark: benchmark - (price - avgCost),
		}
		if err := t.saveSnapshotLocked(ctx, snap); err != nil {
			return 0, err
		}
		t.writeProjectionLocked()
		return 0, nil
	}
	raw := func(p, b float64) float64 {
		return (p - snap.AvgCost) - (b - snap.AvgBenchmark)
	}
	out := raw(price, benchmark) - raw(snap.Price, snap.Benchmark)
	if snap.Size < 0 {
		out = -out
	}
	if math.Abs(out) < 1e-12 {
		out = 0
	}
	return out, nil
}
