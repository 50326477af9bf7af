package engine

import (
	"errors"

	"go.uber.org/zap"

	"rotation-trader/bdata"
	"rotation-trader/gateway"
	"rotation-trader/internal/audit"
	"rotation-trader/order"
	"rotation-trader/reverse"
)

func (e *Engine) seedSeenFills() {
	for _, sym := range e.bdata.Symbols() {
		for _, f := range e.bdata.Fills(sym) {
			if f.ID != "" {
				e.seenFills[f.ID] = true
			}
		}
	}
}

func (e *Engine) benchmark() float64 {
	if e.cfg.BenchmarkSymbol == "" {
		return 0
	}
	return e.quotes.Last(e.cfg.BenchmarkSymbol)
}

// handleFill 成交依次进入 BDATA、反向单生成器与指标。
func (e *Engine) handleFill(f gateway.Fill) {
	if f.ID != "" {
		if e.seenFills[f.ID] {
			return
		}
		e.seenFills[f.ID] = true
	}
	if f.Time.IsZero() {
		f.Time = e.now()
	}
	if f.OrderID != "" {
		if _, err := e.orders.ApplyFill(f.OrderID, f.Size); err != nil && !errors.Is(err, order.ErrUnknownOrder) {
			e.logger.Debug("order fill not applied", zap.String("order_id", f.OrderID), zap.Error(err))
		}
	}

	ctx, cancel := e.callCtx()
	defer cancel()
	bench := e.benchmark()
	rec, err := e.bdata.RecordFill(ctx, bdata.Fill{
		ID:        f.ID,
		Symbol:    f.Symbol,
		Side:      f.Side,
		Price:     f.Price,
		Size:      f.Size,
		Time:      f.Time,
		Benchmark: bench,
	})
	if err != nil {
		e.logger.LogError(err, map[string]interface{}{"step": "record fill", "symbol": f.Symbol})
		return
	}
	e.metrics.RecordFill(f.Size)
	e.metrics.UpdatePosition(f.Symbol, e.inventory.NetExposure(f.Symbol))
	e.count(func(s *Statistics) {
		s.Fills++
		s.LastFillTime = f.Time
	})
	e.logger.LogFill("recorded", map[string]interface{}{
		"fill_id":  f.ID,
		"symbol":   f.Symbol,
		"side":     string(f.Side),
		"price":    f.Price,
		"size":     f.Size,
		"increase": rec.Increase,
	})

	if bench > 0 {
		price := e.quotes.Last(f.Symbol)
		if price <= 0 {
			price = f.Price
		}
		if v, err := e.bdata.CalculateAvgOutperformance(ctx, f.Symbol, price, bench); err == nil {
			e.metrics.UpdateOutperformance(f.Symbol, v)
		}
	}

	placed, err := e.reverse.OnFill(ctx, reverse.Fill{
		Symbol:   f.Symbol,
		Side:     f.Side,
		Price:    f.Price,
		Size:     f.Size,
		Increase: rec.Increase,
	})
	switch {
	case err != nil && gateway.IsDisconnected(err):
		e.markDisconnected(err)
	case err != nil:
		e.metrics.RecordOrderRejected(string(order.KindReverse))
		e.logger.Warn("reverse order not placed", zap.String("symbol", f.Symbol), zap.Error(err))
	case placed != nil:
		e.metrics.RecordOrderSubmitted(string(order.KindReverse))
		e.metrics.RecordReverse(placed.Quantity)
		e.count(func(s *Statistics) { s.ReverseOrders++ })
	}
}

// pollFills 补拉推送流可能遗漏的成交。
func (e *Engine) pollFills() {
	st := e.State()
	if !st.Active || st.Disconnected {
		return
	}
	ctx, cancel := e.callCtx()
	fills, err := e.broker.FillsSince(ctx, e.lastPoll)
	cancel()
	if err != nil {
		if gateway.IsDisconnected(err) {
			e.markDisconnected(err)
			return
		}
		e.logger.Warn("fill poll failed", zap.Error(err))
		return
	}
	for _, f := range fills {
		if f.Time.After(e.lastPoll) {
			e.lastPoll = f.Time
		}
		e.handleFill(f)
	}
}

// ---- 断线与重连 ----

func (e *Engine) markDisconnected(err error) {
	st := e.State()
	if st.Disconnected {
		return
	}
	e.update(func(s *ChainState) { s.Disconnected = true })
	e.metrics.RecordDisconnect()
	_ = e.alerts.GatewayDisconnected(st.Phase.String(), err)
	e.sink.Append(audit.Event{Kind: audit.KindPhase, Message: st.Phase.String() + ": gateway disconnected, progression halted"})
	e.logger.LogError(err, map[string]interface{}{"phase": st.Phase.String(), "step": "gateway"})
}

func (e *Engine) reconnected() {
	st := e.update(func(s *ChainState) { s.Disconnected = false })
	_ = e.alerts.GatewayReconnected()
	e.logger.Info("gateway reconnected", zap.String("phase", st.Phase.String()))

	ctx, cancel := e.callCtx()
	rep, err := e.bdata.DetectAndProcessOfflineFills(ctx, e.broker, e.benchmark())
	cancel()
	e.metrics.RecordReconcile(rep.Replayed, len(rep.Conflicts))
	for _, c := range rep.Conflicts {
		_ = e.alerts.ReconciliationConflict(c.Symbol, c.Ledger, c.Broker)
	}
	switch {
	case err == nil:
	case errors.Is(err, bdata.ErrReconciliationConflict):
		e.logger.Warn("offline reconciliation left conflicts", zap.Error(err))
	case gateway.IsDisconnected(err):
		e.markDisconnected(err)
		return
	default:
		e.logger.LogError(err, map[string]interface{}{"step": "offline reconciliation"})
	}
	e.seedSeenFills()
	e.lastPoll = e.now()

	if st.Active {
		e.startCycle()
	}
}
