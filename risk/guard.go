package risk

import "math"

// Evaluator 单项风控检查。
type Evaluator func(l Limits, req Request, x Exposure) Decision

// DefaultChain 候选校验顺序：company → daily volume → liquidity → drift，
// position_safety 最后执行。
func DefaultChain() []Evaluator {
	return []Evaluator{CompanyLimit, DailyVolumeLimit, LiquidityLimit, DriftLimit, PositionSafety}
}

// MultiGuard 顺序执行多个检查：首个拒绝即否决，否则取所有截断的最小值。
type MultiGuard struct {
	Limits Limits
	Chain  []Evaluator
}

// Evaluate 返回汇总结论以及每一项的结论（用于审计）。
func (m MultiGuard) Evaluate(req Request, x Exposure) (Decision, []Decision) {
	chain := m.Chain
	if len(chain) == 0 {
		chain = DefaultChain()
	}
	size := math.Floor(req.Size + 1e-9)
	out := Decision{Allowed: size}
	steps := make([]Decision, 0, len(chain))
	for _, ev := range chain {
		if ev == nil {
			continue
		}
		d := ev(m.Limits, req, x)
		steps = append(steps, d)
		if d.Rejected {
			return d, steps
		}
		if d.Allowed < out.Allowed {
			out.Allowed = d.Allowed
			out.Check = d.Check
			out.Reason = d.Reason
			out.Basis = d.Basis
		}
	}
	if out.Allowed < 1 {
		out.Rejected = true
		out.Reason = "size below one share"
	}
	return out, steps
}
