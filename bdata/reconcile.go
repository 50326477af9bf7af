package bdata

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"rotation-trader/gateway"
	"rotation-trader/internal/audit"
)

// 去重窗口
const (
	DedupeWindow = 5 * time.Minute
	DedupePrice  = 0.01
	// mismatchUnit 账本与券商持仓差异达到该值才对账
	mismatchUnit = 1.0
)

// BrokerView 对账所需的券商查询。
type BrokerView interface {
	Positions(ctx context.Context) ([]gateway.Position, error)
	FillsSince(ctx context.Context, since time.Time) ([]gateway.Fill, error)
}

// Conflict 未能解决的不一致。
type Conflict struct {
	Symbol string
	Ledger float64
	Broker float64
}

// ReconcileReport 对账结果。
type ReconcileReport struct {
	Mismatched []string
	Replayed   int
	Duplicates int
	Conflicts  []Conflict
}

// DetectAndProcessOfflineFills 比较账本净仓位与券商持仓，差异 ≥1 时
// 拉取账本最后时间之后的券商成交并补录（±5 分钟、±0.01 价格视为已入账）。
// 仍不一致的标的记为冲突，账本不做猜测性修改。
func (t *Tracker) DetectAndProcessOfflineFills(ctx context.Context, broker BrokerView, benchmark float64) (ReconcileReport, error) {
	var rep ReconcileReport
	positions, err := broker.Positions(ctx)
	if err != nil {
		return rep, fmt.Errorf("reconcile positions: %w", err)
	}
	brokerNet := make(map[string]float64, len(positions))
	for _, p := range positions {
		brokerNet[p.Symbol] += p.Quantity
	}
	mismatched := t.mismatched(brokerNet)
	if len(mismatched) == 0 {
		return rep, nil
	}
	rep.Mismatched = mismatched

	fills, err := broker.FillsSince(ctx, t.lastFillTime())
	if err != nil {
		return rep, fmt.Errorf("reconcile fills: %w", err)
	}
	sort.SliceStable(fills, func(i, j int) bool { return fills[i].Time.Before(fills[j].Time) })
	want := make(map[string]bool, len(mismatched))
	for _, s := range mismatched {
		want[s] = true
	}
	for _, bf := range fills {
		if !want[bf.Symbol] {
			continue
		}
		f := Fill{
			ID:        bf.ID,
			Symbol:    bf.Symbol,
			Side:      bf.Side,
			Price:     bf.Price,
			Size:      bf.Size,
			Time:      bf.Time,
			Benchmark: benchmark,
		}
		if t.isDuplicate(f) {
			rep.Duplicates++
			continue
		}
		if _, err := t.RecordFill(ctx, f); err != nil {
			return rep, fmt.Errorf("replay fill %s: %w", bf.ID, err)
		}
		rep.Replayed++
		t.sink.Append(audit.Event{
			Kind:    audit.KindReconcile,
			Symbol:  f.Symbol,
			Message: fmt.Sprintf("replayed offline fill %s %.0f@%.2f", f.Side, f.Size, f.Price),
			Basis:   map[string]float64{"price": f.Price, "size": f.Size},
		})
	}

	for _, sym := range mismatched {
		ledger := t.LedgerNet(sym)
		if math.Abs(brokerNet[sym]-ledger) >= mismatchUnit {
			rep.Conflicts = append(rep.Conflicts, Conflict{Symbol: sym, Ledger: ledger, Broker: brokerNet[sym]})
			t.logger.Warn("reconciliation conflict",
				zap.String("symbol", sym),
				zap.Float64("ledger", ledger),
				zap.Float64("broker", brokerNet[sym]))
			t.sink.Append(audit.Event{
				Kind:    audit.KindReconcile,
				Symbol:  sym,
				Message: "conflict: no matching broker fill, ledger unchanged",
				Basis:   map[string]float64{"ledger": ledger, "broker": brokerNet[sym]},
			})
		}
	}
	t.logger.Info("offline reconciliation",
		zap.Int("mismatched", len(mismatched)),
		zap.Int("replayed", rep.Replayed),
		zap.Int("duplicates", rep.Duplicates),
		zap.Int("conflicts", len(rep.Conflicts)))
	if len(rep.Conflicts) > 0 {
		syms := make([]string, 0, len(rep.Conflicts))
		for _, c := range rep.Conflicts {
			syms = append(syms, c.Symbol)
		}
		return rep, fmt.Errorf("%w: %s", ErrReconciliationConflict, strings.Join(syms, ","))
	}
	return rep, nil
}

func (t *Tracker) mismatched(brokerNet map[string]float64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	syms := make(map[string]bool)
	for s := range brokerNet {
		syms[s] = true
	}
	for _, f := range t.fills {
		syms[f.Symbol] = true
	}
	var res []string
	for s := range syms {
		if math.Abs(brokerNet[s]-t.ledgerNetLocked(s)) >= mismatchUnit {
			res = append(res, s)
		}
	}
	sort.Strings(res)
	return res
}

func (t *Tracker) lastFillTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	var last time.Time
	for _, f := range t.fills {
		if f.Time.After(last) {
			last = f.Time
		}
	}
	return last
}

// isDuplicate 同 ID，或同标的同方向同数量且时间 ±5 分钟、价格 ±0.01 内。
func (t *Tracker) isDuplicate(f Fill) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.fills {
		if f.ID != "" && e.ID == f.ID {
			return true
		}
		if e.Symbol != f.Symbol || e.Side != f.Side || math.Abs(e.Size-f.Size) > 1e-9 {
			continue
		}
		dt := e.Time.Sub(f.Time)
		if dt < 0 {
			dt = -dt
		}
		if dt <= DedupeWindow && math.Abs(e.Price-f.Price) <= DedupePrice+1e-9 {
			return true
		}
	}
	return false
}
