package engine

import (
	"fmt"

	"rotation-trader/order"
	"rotation-trader/selection"
)

// Phase 状态机位置。IDLE 与 FINISHED 之间是 14 个有序阶段。
type Phase int

const (
	PhaseIdle Phase = iota
	Phase1
	Phase2
	Phase3
	Phase4
	Phase5
	Phase6
	Phase7
	Phase8
	Phase9
	Phase10
	Phase11
	Phase12
	Phase13
	Phase14
	PhaseFinished
)

// PhaseCount 每个周期的阶段数
const PhaseCount = 14

// String 返回状态名称
func (p Phase) String() string {
	switch {
	case p == PhaseIdle:
		return "IDLE"
	case p == PhaseFinished:
		return "FINISHED"
	case p.IsTrading():
		return fmt.Sprintf("PHASE_%d", int(p))
	default:
		return "UNKNOWN"
	}
}

// IsTrading 是否为 1..14 的交易阶段。
func (p Phase) IsTrading() bool {
	return p >= Phase1 && p <= Phase14
}

// 评分有效区间
const (
	ScoreMin = 0
	ScoreMax = 1500
)

// PhaseSpec 单个阶段的定义。
type PhaseSpec struct {
	Phase    Phase
	Title    string
	Column   string
	Side     order.Side
	Cheap    bool
	Min, Max float64
	N        int
	Lot      float64
	Requires selection.Precondition
	Front    bool
}

// Context 转换为选股参数。
func (s PhaseSpec) Context() selection.Context {
	return selection.Context{
		Name:     s.Phase.String(),
		Column:   s.Column,
		Side:     s.Side,
		Cheap:    s.Cheap,
		Min:      s.Min,
		Max:      s.Max,
		N:        s.N,
		Lot:      s.Lot,
		Requires: s.Requires,
		Front:    s.Front,
	}
}

// Table 以 Phase 为键的阶段表。
type Table map[Phase]PhaseSpec

// Lookup 查找阶段定义。
func (t Table) Lookup(p Phase) (PhaseSpec, bool) {
	s, ok := t[p]
	return s, ok
}

// Validate 检查 14 个阶段是否齐全且参数合法。
func (t Table) Validate() error {
	for p := Phase1; p <= Phase14; p++ {
		s, ok := t[p]
		if !ok {
			return fmt.Errorf("phase table: %s missing", p)
		}
		if s.Column == "" {
			return fmt.Errorf("phase table: %s has no ranking column", p)
		}
		if s.Side != order.SideBuy && s.Side != order.SideSell {
			return fmt.Errorf("phase table: %s invalid side %q", p, s.Side)
		}
		if s.Min > s.Max {
			return fmt.Errorf("phase table: %s range [%.2f, %.2f] inverted", p, s.Min, s.Max)
		}
		if s.N <= 0 || s.Lot <= 0 {
			return fmt.Errorf("phase table: %s needs positive N and lot", p)
		}
	}
	return nil
}

// DefaultTable 默认阶段表。
// 1-8 按评分列取前/后 N 名，区间为完整有效区间；
// 9-14 为旧版阈值阶段，区间是固定阈值带。
func DefaultTable(n int, lot float64) Table {
	rows := []PhaseSpec{
		{Phase: Phase1, Title: "Buy cheapest at front", Column: "buy_score", Side: order.SideBuy, Cheap: true, Front: true},
		{Phase: Phase2, Title: "Buy cheapest", Column: "buy_score", Side: order.SideBuy, Cheap: true},
		{Phase: Phase3, Title: "Sell richest at front", Column: "sell_score", Side: order.SideSell, Front: true},
		{Phase: Phase4, Title: "Sell richest", Column: "sell_score", Side: order.SideSell},
		{Phase: Phase5, Title: "Add to longs", Column: "buy_score", Side: order.SideBuy, Cheap: true, Requires: selection.RequiresLong},
		{Phase: Phase6, Title: "Trim longs", Column: "sell_score", Side: order.SideSell, Requires: selection.RequiresLong},
		{Phase: Phase7, Title: "Add to shorts", Column: "sell_score", Side: order.SideSell, Requires: selection.RequiresShort},
		{Phase: Phase8, Title: "Cover shorts", Column: "buy_score", Side: order.SideBuy, Cheap: true, Requires: selection.RequiresShort},
	}
	for i := range rows {
		rows[i].Min, rows[i].Max = ScoreMin, ScoreMax
	}
	rows = append(rows,
		PhaseSpec{Phase: Phase9, Title: "Legacy deep value buy", Column: "legacy_score", Side: order.SideBuy, Cheap: true, Min: 0, Max: 100},
		PhaseSpec{Phase: Phase10, Title: "Legacy overextended sell", Column: "legacy_score", Side: order.SideSell, Min: 1400, Max: 1500},
		PhaseSpec{Phase: Phase11, Title: "Legacy short cover", Column: "legacy_score", Side: order.SideBuy, Cheap: true, Min: 0, Max: 100, Requires: selection.RequiresShort},
		PhaseSpec{Phase: Phase12, Title: "Legacy long trim", Column: "legacy_score", Side: order.SideSell, Min: 1400, Max: 1500, Requires: selection.RequiresLong},
		PhaseSpec{Phase: Phase13, Title: "Legacy value buy at front", Column: "legacy_score", Side: order.SideBuy, Cheap: true, Min: 100, Max: 300, Front: true},
		PhaseSpec{Phase: Phase14, Title: "Legacy rich sell at front", Column: "legacy_score", Side: order.SideSell, Min: 1200, Max: 1400, Front: true},
	)
	t := make(Table, len(rows))
	for _, r := range rows {
		r.N = n
		r.Lot = lot
		t[r.Phase] = r
	}
	return t
}
