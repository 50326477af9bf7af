package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rotation-trader/bdata"
	"rotation-trader/gateway"
	"rotation-trader/infrastructure/logger"
	"rotation-trader/internal/audit"
	"rotation-trader/internal/scheduler"
	"rotation-trader/inventory"
	"rotation-trader/market"
	"rotation-trader/order"
	"rotation-trader/reverse"
	"rotation-trader/risk"
	"rotation-trader/selection"
)

// Config 引擎配置
type Config struct {
	Table           Table
	FillPoll        time.Duration // 成交轮询间隔
	RestartDelay    time.Duration // FINISHED 后重新开始周期的延迟
	CallTimeout     time.Duration // 单次网关调用超时
	BenchmarkSymbol string        // 基准标的，用于超额表现
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Table:        DefaultTable(5, 100),
		FillPoll:     60 * time.Second,
		RestartDelay: 180 * time.Second,
		CallTimeout:  10 * time.Second,
	}
}

// Metrics 引擎使用的指标接口（由 monitor 实现）。
type Metrics interface {
	RecordCycle()
	RecordPhase(phase, outcome string)
	RecordCandidates(phase string, n int)
	SetChainState(state int)
	RecordOrderSubmitted(kind string)
	RecordOrderRejected(kind string)
	RecordOrderCanceled(kind, reason string)
	RecordReverse(size float64)
	RecordFill(size float64)
	UpdatePosition(symbol string, qty float64)
	UpdateOutperformance(symbol string, value float64)
	RecordReconcile(replayed, conflicts int)
	RecordDisconnect()
}

// Alerter 引擎发出的告警（由 alert.Manager 实现）。
type Alerter interface {
	GatewayDisconnected(phase string, err error) error
	GatewayReconnected() error
	ReconciliationConflict(symbol string, ledger, broker float64) error
}

// Components 引擎依赖组件
type Components struct {
	Broker     gateway.Broker
	Orders     *order.Manager
	Reconciler *order.Reconciler
	Quotes     *market.Service
	Risk       *risk.Engine
	Selector   *selection.Selector
	Reverse    *reverse.Generator
	BData      *bdata.Tracker
	Inventory  *inventory.Tracker
	Baseline   inventory.BaselineLoader
	Scores     selection.ScoreSource
	Presenter  Presenter
	Scheduler  scheduler.Scheduler
	Metrics    Metrics
	Alerts     Alerter
	Audit      audit.Sink
	Logger     *logger.Logger
	Now        func() time.Time
}

// ChainState 状态机快照。
type ChainState struct {
	Phase        Phase
	Waiting      bool // waiting_for_approval
	Cycle        int
	Active       bool
	Disconnected bool
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime      time.Time
	Cycles         int64
	PhasesRun      int64
	PhasesSkipped  int64
	OrdersSent     int64
	OrdersRejected int64
	ReverseOrders  int64
	Fills          int64
	LastFillTime   time.Time
}

// Engine 阶段编排器。所有状态变更都在单一事件循环中执行：
// 外部回调与定时器只向 FIFO 队列投递闭包。
type Engine struct {
	cfg Config

	broker     gateway.Broker
	orders     *order.Manager
	reconciler *order.Reconciler
	quotes     *market.Service
	risk       *risk.Engine
	selector   *selection.Selector
	reverse    *reverse.Generator
	bdata      *bdata.Tracker
	inventory  *inventory.Tracker
	baseline   inventory.BaselineLoader
	scores     selection.ScoreSource
	presenter  Presenter
	sched      scheduler.Scheduler
	metrics    Metrics
	alerts     Alerter
	sink       audit.Sink
	logger     *logger.Logger
	now        func() time.Time

	// 事件队列
	qmu    sync.Mutex
	queue  []func()
	notify chan struct{}

	// 只在事件循环中访问
	ctx          context.Context
	handle       Handle
	candidates   []selection.Candidate
	selected     []string
	rows         []selection.Row
	lastPoll     time.Time
	seenFills    map[string]bool
	baselineDate string

	// 对外可读的状态
	mu    sync.RWMutex
	state ChainState
	stats Statistics
}

// New 创建阶段编排器
func New(cfg Config, c Components) (*Engine, error) {
	if err := validateComponents(c); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}
	if cfg.Table == nil {
		cfg.Table = DefaultConfig().Table
	}
	if err := cfg.Table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.FillPoll <= 0 {
		cfg.FillPoll = 60 * time.Second
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 180 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if c.Metrics == nil {
		c.Metrics = nopMetrics{}
	}
	if c.Alerts == nil {
		c.Alerts = nopAlerter{}
	}
	if c.Audit == nil {
		c.Audit = audit.Nop{}
	}
	if c.Logger == nil {
		c.Logger = logger.Wrap(zap.NewNop())
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Inventory == nil {
		c.Inventory = c.BData.Positions()
	}

	e := &Engine{
		cfg:        cfg,
		broker:     c.Broker,
		orders:     c.Orders,
		reconciler: c.Reconciler,
		quotes:     c.Quotes,
		risk:       c.Risk,
		selector:   c.Selector,
		reverse:    c.Reverse,
		bdata:      c.BData,
		inventory:  c.Inventory,
		baseline:   c.Baseline,
		scores:     c.Scores,
		presenter:  c.Presenter,
		sched:      c.Scheduler,
		metrics:    c.Metrics,
		alerts:     c.Alerts,
		sink:       c.Audit,
		logger:     c.Logger,
		now:        c.Now,
		notify:     make(chan struct{}, 1),
		ctx:        context.Background(),
		seenFills:  make(map[string]bool),
	}
	e.seedSeenFills()
	return e, nil
}

func validateComponents(c Components) error {
	switch {
	case c.Broker == nil:
		return errors.New("broker is required")
	case c.Orders == nil:
		return errors.New("order manager is required")
	case c.Quotes == nil:
		return errors.New("quote service is required")
	case c.Risk == nil:
		return errors.New("risk engine is required")
	case c.Selector == nil:
		return errors.New("selector is required")
	case c.Reverse == nil:
		return errors.New("reverse generator is required")
	case c.BData == nil:
		return errors.New("bdata tracker is required")
	case c.Scores == nil:
		return errors.New("score source is required")
	case c.Presenter == nil:
		return errors.New("presenter is required")
	case c.Scheduler == nil:
		return errors.New("scheduler is required")
	}
	return nil
}

// ---- 事件循环 ----

// post 投递闭包到 FIFO 队列。
func (e *Engine) post(fn func()) {
	e.qmu.Lock()
	e.queue = append(e.queue, fn)
	e.qmu.Unlock()
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *Engine) pop() (func(), bool) {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	if len(e.queue) == 0 {
		return nil, false
	}
	fn := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return fn, true
}

// Serve 运行事件循环直到 ctx 结束。
func (e *Engine) Serve(ctx context.Context) error {
	e.ctx = ctx
	e.logger.Info("orchestrator loop started")
	for {
		for {
			fn, ok := e.pop()
			if !ok {
				break
			}
			fn()
		}
		select {
		case <-ctx.Done():
			e.logger.Info("orchestrator loop stopped")
			return ctx.Err()
		case <-e.notify:
		}
	}
}

// Drain 在调用方 goroutine 上执行队列直到为空，返回执行的闭包数。
// 供测试与单步调试使用，不能与 Serve 同时使用。
func (e *Engine) Drain() int {
	n := 0
	for {
		fn, ok := e.pop()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

func (e *Engine) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.ctx, e.cfg.CallTimeout)
}

// ---- 对外可读状态 ----

// State 返回状态机快照。
func (e *Engine) State() ChainState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetStatistics 获取统计信息
func (e *Engine) GetStatistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// ChainStateTitle 返回当前阶段标签。
func (e *Engine) ChainStateTitle() string {
	st := e.State()
	title := st.Phase.String()
	if spec, ok := e.cfg.Table.Lookup(st.Phase); ok {
		title = fmt.Sprintf("%s %s", title, spec.Title)
	}
	if st.Disconnected {
		title += " (gateway disconnected)"
	} else if st.Waiting {
		title += " (waiting for approval)"
	}
	return title
}

func (e *Engine) update(fn func(s *ChainState)) ChainState {
	e.mu.Lock()
	fn(&e.state)
	st := e.state
	e.mu.Unlock()
	e.metrics.SetChainState(int(st.Phase))
	return st
}

func (e *Engine) count(fn func(s *Statistics)) {
	e.mu.Lock()
	fn(&e.stats)
	e.mu.Unlock()
}

// ---- 外部控制 ----

// Start 激活自动轮动：启动成交轮询并进入新周期。
func (e *Engine) Start() { e.post(e.start) }

// Stop 强制回到 IDLE，取消重启与轮询定时器。
func (e *Engine) Stop() { e.post(e.stop) }

// StartCycle 立即开始新周期。
func (e *Engine) StartCycle() { e.post(e.startCycle) }

// Advance 推进到下一阶段；等待确认时无效。
func (e *Engine) Advance() { e.post(e.advance) }

// FinishCycle 结束当前周期。
func (e *Engine) FinishCycle() { e.post(e.finishCycle) }

// OnWindowOpened 展示端窗口已打开。
func (e *Engine) OnWindowOpened(h Handle) { e.post(func() { e.windowOpened(h) }) }

// OnDataReady 展示端候选表已有实时行情。
func (e *Engine) OnDataReady(h Handle) { e.post(func() { e.dataReady(h) }) }

// ConfirmOrders 展示端确认下单；tickers 为空时使用 SetSelectedTickers 的选择。
func (e *Engine) ConfirmOrders(h Handle, tickers []string) {
	cp := append([]string(nil), tickers...)
	e.post(func() { e.confirm(h, cp) })
}

// SetSelectedTickers 展示端当前勾选的标的。
func (e *Engine) SetSelectedTickers(tickers []string) {
	cp := append([]string(nil), tickers...)
	e.post(func() { e.selected = cp })
}

// OnFill 成交推送入口。
func (e *Engine) OnFill(f gateway.Fill) { e.post(func() { e.handleFill(f) }) }

// OnReconnected 网关恢复：离线对账后开始新周期。
func (e *Engine) OnReconnected() { e.post(e.reconnected) }

func (e *Engine) start() {
	if e.State().Active {
		return
	}
	e.lastPoll = e.now()
	e.update(func(s *ChainState) { s.Active = true })
	e.count(func(s *Statistics) { s.StartTime = e.now() })
	e.sched.Every(scheduler.FillPoll, e.cfg.FillPoll, func() { e.post(e.pollFills) })
	e.logger.Info("rotation started",
		zap.Duration("fill_poll", e.cfg.FillPoll),
		zap.Duration("restart_delay", e.cfg.RestartDelay))
	e.startCycle()
}

func (e *Engine) stop() {
	e.sched.Cancel(scheduler.CycleRestart)
	e.sched.Cancel(scheduler.FillPoll)
	e.closeWindow()
	e.update(func(s *ChainState) {
		s.Active = false
		s.Waiting = false
		s.Phase = PhaseIdle
	})
	e.logger.Info("rotation stopped")
}

// ---- 周期 ----

func (e *Engine) startCycle() {
	st := e.State()
	if !st.Active || st.Disconnected {
		return
	}
	e.sched.Cancel(scheduler.CycleRestart)
	e.closeWindow()
	st = e.update(func(s *ChainState) {
		s.Cycle++
		s.Waiting = false
	})
	e.count(func(s *Statistics) { s.Cycles++ })
	e.metrics.RecordCycle()
	e.logger.Info("cycle starting", zap.Int("cycle", st.Cycle))

	e.reloadBaseline()
	if err := e.prepareCycle(st.Cycle); err != nil {
		if gateway.IsDisconnected(err) {
			e.markDisconnected(err)
			return
		}
		e.logger.LogError(err, map[string]interface{}{"cycle": st.Cycle, "step": "prepare"})
	}
	e.enter(Phase1)
}

// prepareCycle 同步持仓与挂单、加载评分并刷新行情；
// 从第二个周期起撤销全部普通挂单，保留反向单。
func (e *Engine) prepareCycle(cycle int) error {
	ctx, cancel := e.callCtx()
	defer cancel()

	positions, err := e.broker.Positions(ctx)
	if err != nil {
		if err := e.recoverable("sync positions", cycle, err); err != nil {
			return err
		}
	}
	inv := make([]inventory.Position, 0, len(positions))
	for _, p := range positions {
		inv = append(inv, inventory.Position{Symbol: p.Symbol, Quantity: p.Quantity, AvgCost: p.AvgCost})
		e.metrics.UpdatePosition(p.Symbol, p.Quantity)
	}
	if err == nil {
		e.inventory.Sync(inv)
	}

	if e.reconciler != nil {
		if err := e.reconciler.Sync(ctx); err != nil {
			if err := e.recoverable("sync open orders", cycle, err); err != nil {
				return err
			}
		}
	}

	if cycle >= 2 {
		canceled, err := e.orders.CancelWhere(ctx, func(o order.Order) bool { return !o.IsReverse() })
		for _, o := range canceled {
			e.metrics.RecordOrderCanceled(string(o.Kind), "cycle_restart")
		}
		e.logger.Info("stale normal orders canceled", zap.Int("cycle", cycle), zap.Int("canceled", len(canceled)))
		if err != nil {
			// 单笔撤单失败（已成交或被拒）不影响本周期的评分与行情准备
			if err := e.recoverable("cancel stale orders", cycle, err); err != nil {
				return err
			}
		}
	}

	rows, err := e.scores.Scores(ctx)
	if err != nil {
		e.logger.LogError(err, map[string]interface{}{"step": "load scores"})
		rows = nil
	}
	e.rows = rows
	symbols := selection.Symbols(rows)
	e.risk.SetUniverse(symbols)

	refresh := symbols
	if e.cfg.BenchmarkSymbol != "" {
		refresh = append(append([]string(nil), symbols...), e.cfg.BenchmarkSymbol)
	}
	n, err := e.quotes.Refresh(ctx, e.broker, refresh)
	if err != nil {
		if err := e.recoverable("refresh quotes", cycle, err); err != nil {
			return err
		}
	}
	for _, sym := range symbols {
		if q, err := e.quotes.Quote(sym); err == nil {
			e.risk.SetAverageVolume(sym, q.Volume)
		}
	}
	e.logger.Info("cycle prepared",
		zap.Int("cycle", cycle),
		zap.Int("positions", len(positions)),
		zap.Int("scored", len(rows)),
		zap.Int("quotes", n))
	return nil
}

// recoverable 断线时返回包装后的错误以暂停推进；其他错误记录后继续。
func (e *Engine) recoverable(step string, cycle int, err error) error {
	if gateway.IsDisconnected(err) {
		return fmt.Errorf("%s: %w", step, err)
	}
	e.logger.Warn("cycle preparation step failed, continuing",
		zap.String("step", step),
		zap.Int("cycle", cycle),
		zap.Error(err))
	e.sink.Append(audit.Event{Kind: audit.KindPhase, Message: fmt.Sprintf("cycle %d: %s failed: %v", cycle, step, err)})
	return nil
}

// reloadBaseline 重新读取日初基准；无基准文件时每天首次以当前持仓为基准。
func (e *Engine) reloadBaseline() {
	today := risk.DateKey(e.now())
	if e.baseline != nil {
		b, err := e.baseline.LoadBaseline()
		switch {
		case err == nil:
			e.inventory.SetBaseline(b)
			e.baselineDate = today
			e.logger.Info("baseline loaded", zap.Int("symbols", len(b)))
			return
		case !errors.Is(err, inventory.ErrNoBaseline):
			e.logger.LogError(err, map[string]interface{}{"step": "load baseline"})
		}
	}
	if e.baselineDate != today {
		b := e.inventory.CaptureBaseline()
		e.baselineDate = today
		e.logger.Info("baseline captured from positions", zap.Int("symbols", len(b)))
	}
}

func (e *Engine) advance() {
	st := e.State()
	if st.Waiting || st.Disconnected || !st.Phase.IsTrading() {
		return
	}
	next := st.Phase + 1
	if next > Phase14 {
		e.finishCycle()
		return
	}
	e.enter(next)
}

// enter 进入阶段并打开展示窗口；失败时记录并推进。
func (e *Engine) enter(p Phase) {
	spec, _ := e.cfg.Table.Lookup(p)
	e.candidates = nil
	e.selected = nil
	e.update(func(s *ChainState) {
		s.Phase = p
		s.Waiting = false
	})
	e.count(func(s *Statistics) { s.PhasesRun++ })

	h, err := e.presenter.Open(spec)
	if err != nil {
		e.logger.Warn("presentation surface unavailable, advancing",
			zap.String("phase", p.String()), zap.Error(err))
		e.metrics.RecordPhase(p.String(), "failed")
		e.sink.Append(audit.Event{Kind: audit.KindPhase, Message: p.String() + ": presentation unavailable: " + err.Error()})
		e.post(e.advance)
		return
	}
	e.handle = h
	e.logger.Info("phase entered",
		zap.String("phase", p.String()),
		zap.String("title", spec.Title),
		zap.String("handle", string(h)))
}

func (e *Engine) current(h Handle) (PhaseSpec, bool) {
	st := e.State()
	if h == "" || h != e.handle || !st.Phase.IsTrading() || !st.Active {
		return PhaseSpec{}, false
	}
	return e.cfg.Table.Lookup(st.Phase)
}

func (e *Engine) windowOpened(h Handle) {
	spec, ok := e.current(h)
	if !ok {
		e.logger.Debug("stale window callback ignored", zap.String("handle", string(h)))
		return
	}
	e.logger.Debug("phase window opened", zap.String("phase", spec.Phase.String()), zap.String("handle", string(h)))
}

// dataReady 执行选股；无候选时跳过阶段。
func (e *Engine) dataReady(h Handle) {
	spec, ok := e.current(h)
	if !ok || e.State().Waiting || e.State().Disconnected {
		return
	}
	cands := e.selector.Select(spec.Context(), e.rows)
	phase := spec.Phase.String()
	e.metrics.RecordCandidates(phase, len(cands))
	if len(cands) == 0 {
		e.metrics.RecordPhase(phase, "skipped")
		e.count(func(s *Statistics) { s.PhasesSkipped++ })
		e.sink.Append(audit.Event{Kind: audit.KindPhase, Message: phase + ": no admissible candidates, skipped"})
		e.logger.Info("phase skipped", zap.String("phase", phase))
		e.closeWindow()
		e.post(e.advance)
		return
	}

	e.candidates = cands
	e.update(func(s *ChainState) { s.Waiting = true })
	if err := e.presenter.Present(h, cands); err != nil {
		e.logger.Warn("present candidates failed, advancing", zap.String("phase", phase), zap.Error(err))
		e.metrics.RecordPhase(phase, "failed")
		e.update(func(s *ChainState) { s.Waiting = false })
		e.closeWindow()
		e.post(e.advance)
		return
	}
	e.metrics.RecordPhase(phase, "presented")
	e.logger.Info("candidates presented", zap.String("phase", phase), zap.Int("candidates", len(cands)))
}

// confirm 提交已确认候选；网关拒单只记录不重试，断线则暂停推进。
func (e *Engine) confirm(h Handle, tickers []string) {
	spec, ok := e.current(h)
	if !ok || !e.State().Waiting {
		return
	}
	if tickers == nil {
		tickers = e.selected
	}
	want := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		want[t] = true
	}

	phase := spec.Phase.String()
	for _, c := range e.candidates {
		if !want[c.Symbol] {
			continue
		}
		if err := e.submit(phase, c); err != nil && gateway.IsDisconnected(err) {
			e.update(func(s *ChainState) { s.Waiting = false })
			e.closeWindow()
			e.markDisconnected(err)
			return
		}
	}
	e.update(func(s *ChainState) { s.Waiting = false })
	e.closeWindow()
	e.post(e.advance)
}

func (e *Engine) submit(phase string, c selection.Candidate) error {
	req := risk.Request{Symbol: c.Symbol, Side: c.Side, Size: c.Size}
	d := e.risk.Evaluate(req)
	if d.Rejected {
		e.sink.Append(audit.Event{Kind: audit.KindOrder, Symbol: c.Symbol, Message: phase + ": dropped at submission: " + d.Reason, Basis: d.Basis})
		return nil
	}
	ctx, cancel := e.callCtx()
	defer cancel()
	o, err := e.orders.Submit(ctx, order.Order{
		Symbol:   c.Symbol,
		Side:     c.Side,
		Type:     "LIMIT",
		Price:    c.Price,
		Quantity: d.Allowed,
		Kind:     order.KindNormal,
	})
	if err != nil {
		e.metrics.RecordOrderRejected(string(order.KindNormal))
		e.count(func(s *Statistics) { s.OrdersRejected++ })
		e.sink.Append(audit.Event{
			Kind:    audit.KindOrder,
			Symbol:  c.Symbol,
			Message: fmt.Sprintf("%s: %s %.0f@%.2f rejected: %v", phase, c.Side, d.Allowed, c.Price, err),
			Basis:   map[string]float64{"size": d.Allowed, "price": c.Price},
		})
		return err
	}
	e.risk.Commit(o.Symbol, o.Side, o.Quantity)
	e.metrics.RecordOrderSubmitted(string(o.Kind))
	e.count(func(s *Statistics) { s.OrdersSent++ })
	e.logger.LogOrder("submitted", o.ID, map[string]interface{}{
		"phase":  phase,
		"symbol": o.Symbol,
		"side":   string(o.Side),
		"price":  o.Price,
		"qty":    o.Quantity,
	})
	e.sink.Append(audit.Event{
		Kind:    audit.KindOrder,
		Symbol:  o.Symbol,
		Message: fmt.Sprintf("%s: %s %.0f@%.2f submitted", phase, o.Side, o.Quantity, o.Price),
		Basis:   map[string]float64{"size": o.Quantity, "price": o.Price, "score": c.Score},
	})
	return nil
}

// finishCycle 执行反转清扫、清理展示状态；仍激活时安排重启。
func (e *Engine) finishCycle() {
	if e.State().Disconnected {
		return
	}
	ctx, cancel := e.callCtx()
	canceled, err := e.risk.PositionReversalSweep(ctx, e.orders)
	cancel()
	for _, o := range canceled {
		e.metrics.RecordOrderCanceled(string(o.Kind), "reversal_sweep")
	}
	if err != nil {
		if gateway.IsDisconnected(err) {
			e.markDisconnected(err)
			return
		}
		e.logger.LogError(err, map[string]interface{}{"step": "reversal sweep"})
	}
	e.closeWindow()
	e.candidates = nil
	e.selected = nil

	st := e.update(func(s *ChainState) {
		s.Phase = PhaseFinished
		s.Waiting = false
	})
	if !st.Active {
		e.update(func(s *ChainState) { s.Phase = PhaseIdle })
		e.logger.Info("cycle finished, halting", zap.Int("cycle", st.Cycle))
		return
	}
	e.sched.After(scheduler.CycleRestart, e.cfg.RestartDelay, func() { e.post(e.startCycle) })
	e.logger.Info("cycle finished",
		zap.Int("cycle", st.Cycle),
		zap.Int("swept", len(canceled)),
		zap.Duration("restart_in", e.cfg.RestartDelay))
}

func (e *Engine) closeWindow() {
	if e.handle == "" {
		return
	}
	e.presenter.Close(e.handle)
	e.handle = ""
}

type nopMetrics struct{}

func (nopMetrics) RecordCycle() {}
func (nopMetrics) RecordPhase(string, string) {}
func (nopMetrics) RecordCandidates(string, int) {}
func (nopMetrics) SetChainState(int) {}
func (nopMetrics) RecordOrderSubmitted(string) {}
func (nopMetrics) RecordOrderRejected(string) {}
func (nopMetrics) RecordOrderCanceled(string, string) {}
func (nopMetrics) RecordReverse(float64) {}
func (nopMetrics) RecordFill(float64) {}
func (nopMetrics) UpdatePosition(string, float64) {}
func (nopMetrics) UpdateOutperformance(string, float64) {}
func (nopMetrics) RecordReconcile(int, int) {}
func (nopMetrics) RecordDisconnect() {}

type nopAlerter struct{}

func (nopAlerter) GatewayDisconnected(string, error) error { return nil }
func (nopAlerter) GatewayReconnected() error { return nil }
func (nopAlerter) ReconciliationConflict(string, float64, float64) error { return nil }
