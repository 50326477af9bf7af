package risk

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"rotation-trader/internal/audit"
	"rotation-trader/order"
)

// Canceller 提供活跃挂单并执行撤单（由 order.Manager 实现）。
type Canceller interface {
	GetActiveOrders() []order.Order
	Cancel(ctx context.Context, id string) error
}

// SweepPlan 单个标的的撤单计划。
type SweepPlan struct {
	Symbol     string
	Position   float64
	Projected  float64 // 全部成交后的投影仓位（撤单前）
	Final      float64 // 执行计划后的投影仓位
	MaxAllowed float64
	Cancel     []order.Order
}

// PlanSweep 计算防反转撤单计划：
// 投影仓位越过零轴时，多头撤价格最高的卖单、空头撤价格最低的买单，直到不再反转；
// 随后撤掉最大的同向单直到 |投影| ≤ MAXALW。只撤普通单。
func PlanSweep(symbol string, position, maxalw float64, orders []order.Order) SweepPlan {
	plan := SweepPlan{Symbol: symbol, Position: position, MaxAllowed: maxalw}
	proj := position
	var normal []order.Order
	for _, o := range orders {
		if o.Symbol != symbol {
			continue
		}
		proj += o.Signed()
		if o.Kind != order.KindReverse {
			normal = append(normal, o)
		}
	}
	plan.Projected = proj
	canceled := make(map[string]bool)

	flips := func(p float64) bool {
		return (position > 0 && p < 0) || (position < 0 && p > 0)
	}
	if flips(proj) {
		side := order.SideSell
		if position < 0 {
			side = order.SideBuy
		}
		cands := filterSide(normal, side)
		sort.SliceStable(cands, func(i, j int) bool {
			if side == order.SideSell {
				return cands[i].Price > cands[j].Price
			}
			return cands[i].Price < cands[j].Price
		})
		for _, o := range cands {
			if !flips(proj) {
				break
			}
			proj -= o.Signed()
			canceled[o.ID] = true
			plan.Cancel = append(plan.Cancel, o)
		}
	}

	for math.Abs(proj) > maxalw+1e-9 {
		var pick *order.Order
		for i := range normal {
			o := normal[i]
			if canceled[o.ID] || (o.Signed() > 0) != (proj > 0) {
				continue
			}
			// 撤单后不得越到另一侧更远
			if math.Abs(proj-o.Signed()) >= math.Abs(proj) {
				continue
			}
			if pick == nil || o.Remaining() > pick.Remaining() {
				pick = &normal[i]
			}
		}
		if pick == nil {
			break
		}
		proj -= pick.Signed()
		canceled[pick.ID] = true
		plan.Cancel = append(plan.Cancel, *pick)
	}
	plan.Final = proj
	return plan
}

func filterSide(orders []order.Order, side order.Side) []order.Order {
	var res []order.Order
	for _, o := range orders {
		if o.Side == side {
			res = append(res, o)
		}
	}
	return res
}

// PositionReversalSweep 对每个有挂单的标的执行撤单计划，返回已撤订单。
// 单笔撤单失败不中断，最后返回汇总错误。
func (e *Engine) PositionReversalSweep(ctx context.Context, c Canceller) ([]order.Order, error) {
	logger := e.notifier.logger
	bySymbol := make(map[string][]order.Order)
	for _, o := range c.GetActiveOrders() {
		bySymbol[o.Symbol] = append(bySymbol[o.Symbol], o)
	}
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var (
		done    []order.Order
		failed  int
		lastErr error
	)
	for _, sym := range symbols {
		pos := 0.0
		if e.pos != nil {
			pos = e.pos.NetExposure(sym)
		}
		plan := PlanSweep(sym, pos, e.MaxAllowed(sym), bySymbol[sym])
		for _, o := range plan.Cancel {
			if err := c.Cancel(ctx, o.ID); err != nil {
				failed++
				lastErr = err
				logger.Warn("sweep cancel failed", zap.String("order_id", o.ID), zap.Error(err))
				continue
			}
			done = append(done, o)
			e.notifier.sink.Append(audit.Event{
				Kind:    audit.KindSweep,
				Symbol:  sym,
				Message: fmt.Sprintf("canceled %s %.0f@%.2f", o.Side, o.Remaining(), o.Price),
				Basis: map[string]float64{
					"position":  plan.Position,
					"projected": plan.Projected,
					"final":     plan.Final,
					"maxalw":    plan.MaxAllowed,
				},
			})
		}
		if len(plan.Cancel) > 0 {
			logger.Info("position reversal sweep",
				zap.String("symbol", sym),
				zap.Float64("position", plan.Position),
				zap.Float64("projected", plan.Projected),
				zap.Float64("final", plan.Final),
				zap.Int("canceled", len(plan.Cancel)))
		}
	}
	if failed > 0 {
		return done, fmt.Errorf("sweep: %d cancels failed: %w", failed, lastErr)
	}
	return done, nil
}
