package reverse

import (
	"math"

	"rotation-trader/market"
	"rotation-trader/order"
)

// 定价方式
const (
	PricingPassive = "passive"
	PricingDepth   = "depth"
	PricingTarget  = "target"
)

// Price 计算反向单价格。fillSide 为原成交方向。
//
// 最小利润目标 = 成交价 ± MinProfit。若对手最优价已越过目标，
// 挂在最优价内侧 spread*PassiveRatio 处（不劣于目标）；
// 否则从目标价起按 tick 向外合成至 DepthRange 的档位，取第二档内侧一个 tick；
// 区间不足两档时使用目标价。
func (g *Generator) Price(fillSide order.Side, fillPrice float64, q market.Quote) (float64, string) {
	tick := g.cfg.Tick
	sell := fillSide == order.SideBuy
	dir := 1.0
	if !sell {
		dir = -1
	}
	target := market.RoundToTick(fillPrice+dir*g.cfg.MinProfit, tick)
	if !q.Valid() {
		return target, PricingTarget
	}

	spread := q.Spread()
	if sell && q.Ask >= target-1e-9 {
		p := market.RoundToTick(q.Ask-spread*g.cfg.PassiveRatio, tick)
		return math.Max(p, target), PricingPassive
	}
	if !sell && q.Bid <= target+1e-9 {
		p := market.RoundToTick(q.Bid+spread*g.cfg.PassiveRatio, tick)
		return math.Min(p, target), PricingPassive
	}

	// 成交价外侧 [MinProfit, DepthRange] 区间按 tick 合成档位
	n := int(math.Round((g.cfg.DepthRange-g.cfg.MinProfit)/tick)) + 1
	levels := market.SyntheticLevels(target, sell, n, tick)
	if len(levels) < 2 {
		return target, PricingTarget
	}
	if sell {
		return market.AddTicks(levels[1], -1, tick), PricingDepth
	}
	return market.AddTicks(levels[1], 1, tick), PricingDepth
}
