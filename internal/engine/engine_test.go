package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation-trader/bdata"
	"rotation-trader/gateway"
	"rotation-trader/internal/audit"
	"rotation-trader/internal/scheduler"
	"rotation-trader/inventory"
	"rotation-trader/market"
	"rotation-trader/order"
	"rotation-trader/reverse"
	"rotation-trader/risk"
	"rotation-trader/selection"
)

type recordingPresenter struct {
	mu        sync.Mutex
	openErr   error
	seq       int
	opened    []PhaseSpec
	presented map[Handle][]selection.Candidate
	closed    []Handle
	last      Handle
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{presented: make(map[Handle][]selection.Candidate)}
}

func (p *recordingPresenter) Open(spec PhaseSpec) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return "", p.openErr
	}
	p.seq++
	p.opened = append(p.opened, spec)
	p.last = Handle(spec.Phase.String())
	return p.last, nil
}

func (p *recordingPresenter) Present(h Handle, c []selection.Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presented[h] = c
	return nil
}

func (p *recordingPresenter) Close(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, h)
}

type recordingAlerts struct {
	disconnects int
	reconnects  int
	conflicts   []string
}

func (a *recordingAlerts) GatewayDisconnected(string, error) error {
	a.disconnects++
	return nil
}

func (a *recordingAlerts) GatewayReconnected() error {
	a.reconnects++
	return nil
}

func (a *recordingAlerts) ReconciliationConflict(symbol string, _, _ float64) error {
	a.conflicts = append(a.conflicts, symbol)
	return nil
}

type harness struct {
	e      *Engine
	paper  *gateway.Paper
	sched  *scheduler.Manual
	orders *order.Manager
	bd     *bdata.Tracker
	quotes *market.Service
	sink   *audit.Log
	alerts *recordingAlerts
	start  time.Time
}

func rows() []selection.Row {
	return []selection.Row{
		{Symbol: "AAA", Scores: map[string]float64{"buy_score": 10, "sell_score": 1000}},
		{Symbol: "BBB", Scores: map[string]float64{"buy_score": 20, "sell_score": 900}},
	}
}

func newHarness(t *testing.T, src selection.ScoreSource, pres Presenter) *harness {
	t.Helper()
	return newHarnessWith(t, src, pres, nil)
}

// newHarnessWith 允许用 wrap 包装 paper 网关（注入撤单失败等）。
func newHarnessWith(t *testing.T, src selection.ScoreSource, pres Presenter, wrap func(*gateway.Paper) gateway.Broker) *harness {
	t.Helper()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	sched := scheduler.NewManual(start)
	paper := gateway.NewPaper()
	paper.SetClock(sched.Now)
	for _, q := range []market.Quote{
		{Symbol: "AAA", Bid: 10.00, Ask: 10.04, Last: 10.02, Volume: 1e6},
		{Symbol: "BBB", Bid: 20.00, Ask: 20.04, Last: 20.02, Volume: 1e6},
		{Symbol: "CCC", Bid: 30.00, Ask: 30.04, Last: 30.02, Volume: 1e6},
		{Symbol: "SPY", Bid: 399.99, Ask: 400.01, Last: 400, Volume: 1e8},
	} {
		paper.SetQuote(q)
	}
	var broker gateway.Broker = paper
	if wrap != nil {
		broker = wrap(paper)
	}

	orders := order.NewManager(broker, nil)
	inv := inventory.NewTracker()
	bd, err := bdata.NewTracker(context.Background(), bdata.NewMemoryStore(), bdata.Options{Positions: inv, Now: sched.Now})
	require.NoError(t, err)
	counters := risk.NewDailyCounters(nil, risk.ClockFunc(sched.Now), nil)
	sink := audit.NewLog(nil, 500)
	re := risk.NewEngine(risk.DefaultLimits(), inv, orders.Book(), counters, risk.NewNotifier(nil, sink, nil))
	quotes := market.NewService(nil)
	sel := selection.NewSelector(selection.DefaultConfig(), quotes, inv, orders.Book(), re, nil, nil, sink)
	gen := reverse.NewGenerator(reverse.DefaultConfig(), counters, quotes, orders, nil, sink)
	alerts := &recordingAlerts{}

	cfg := DefaultConfig()
	cfg.Table = DefaultTable(2, 100)
	cfg.BenchmarkSymbol = "SPY"
	e, err := New(cfg, Components{
		Broker:     broker,
		Orders:     orders,
		Reconciler: order.NewReconciler(broker, orders, nil),
		Quotes:     quotes,
		Risk:       re,
		Selector:   sel,
		Reverse:    gen,
		BData:      bd,
		Scores:     src,
		Presenter:  pres,
		Scheduler:  sched,
		Alerts:     alerts,
		Audit:      sink,
		Now:        sched.Now,
	})
	require.NoError(t, err)
	if ap, ok := pres.(*AutoPresenter); ok {
		ap.Bind(e)
	}
	paper.SetFillCallback(e.OnFill)
	return &harness{e: e, paper: paper, sched: sched, orders: orders, bd: bd, quotes: quotes, sink: sink, alerts: alerts, start: start}
}

type cancelRejecting struct {
	*gateway.Paper
}

func (c cancelRejecting) CancelOrder(context.Context, order.Order) error {
	return errors.New("cancel rejected: order already executing")
}

// rotatingSource 第一次返回 first，之后返回 later。
type rotatingSource struct {
	calls        int
	first, later []selection.Row
}

func (s *rotatingSource) Scores(context.Context) ([]selection.Row, error) {
	s.calls++
	if s.calls == 1 {
		return s.first, nil
	}
	return s.later, nil
}

func activeKinds(orders []order.Order) map[order.Kind]int {
	res := make(map[order.Kind]int)
	for _, o := range orders {
		res[o.Kind]++
	}
	return res
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(DefaultConfig(), Components{})
	assert.Error(t, err)
}

func TestFullCycleWithAutoPresenter(t *testing.T) {
	h := newHarness(t, selection.StaticSource(rows()), NewAutoPresenter())
	h.e.Start()
	h.e.Drain()

	st := h.e.State()
	assert.Equal(t, PhaseFinished, st.Phase)
	assert.Equal(t, 1, st.Cycle)
	assert.True(t, st.Active)
	assert.True(t, h.sched.Active(scheduler.CycleRestart))
	assert.True(t, h.sched.Active(scheduler.FillPoll))

	active := h.orders.GetActiveOrders()
	require.Len(t, active, 4, "phase 1 buys and phase 3 sells for both tickers")
	for _, o := range active {
		assert.Equal(t, order.KindNormal, o.Kind)
		assert.Equal(t, 100.0, o.Quantity)
	}
	stats := h.e.GetStatistics()
	assert.EqualValues(t, 4, stats.OrdersSent)
	assert.EqualValues(t, PhaseCount, stats.PhasesRun)
}

func TestCycleRestartCancelsNormalKeepsReverse(t *testing.T) {
	h := newHarness(t, selection.StaticSource(rows()), NewAutoPresenter())
	h.e.Start()
	h.e.Drain()

	rev, err := h.orders.Submit(context.Background(), order.Order{
		Symbol: "CCC", Side: order.SideSell, Price: 40, Quantity: 100, Hidden: true, Kind: order.KindReverse,
	})
	require.NoError(t, err)

	h.sched.Advance(180 * time.Second)
	h.e.Drain()

	st := h.e.State()
	assert.Equal(t, 2, st.Cycle)
	assert.Equal(t, PhaseFinished, st.Phase)
	active := h.orders.GetActiveOrders()
	kinds := activeKinds(active)
	assert.Equal(t, 1, kinds[order.KindReverse])
	assert.Zero(t, kinds[order.KindNormal], "company ledger blocks repeats within the session")
	_, ok := h.orders.Status(rev.ID)
	assert.True(t, ok)
}

func TestCancelFailureStillPreparesCycle(t *testing.T) {
	src := &rotatingSource{
		first: []selection.Row{{Symbol: "AAA", Scores: map[string]float64{"buy_score": 10, "sell_score": 1000}}},
		later: []selection.Row{{Symbol: "CCC", Scores: map[string]float64{"buy_score": 10, "sell_score": 1000}}},
	}
	h := newHarnessWith(t, src, NewAutoPresenter(), func(p *gateway.Paper) gateway.Broker {
		return cancelRejecting{Paper: p}
	})
	h.e.Start()
	h.e.Drain()
	require.NotEmpty(t, h.orders.Book().BySymbol("AAA"))

	h.sched.Advance(180 * time.Second)
	h.e.Drain()

	st := h.e.State()
	assert.Equal(t, 2, st.Cycle)
	assert.False(t, st.Disconnected)
	assert.Equal(t, PhaseFinished, st.Phase)
	assert.NotEmpty(t, h.orders.Book().BySymbol("AAA"), "failed cancels leave the orders in place")
	ccc := h.orders.Book().BySymbol("CCC")
	require.NotEmpty(t, ccc, "cycle 2 trades on the reloaded scores")
	for _, o := range ccc {
		assert.Equal(t, order.KindNormal, o.Kind)
	}

	var failed bool
	for _, ev := range h.sink.Recent(100) {
		if ev.Kind == audit.KindPhase && strings.Contains(ev.Message, "cancel stale orders failed") {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestStopForcesIdle(t *testing.T) {
	h := newHarness(t, selection.StaticSource(rows()), NewAutoPresenter())
	h.e.Start()
	h.e.Drain()
	h.e.Stop()
	h.e.Drain()

	st := h.e.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.Active)
	assert.Empty(t, h.sched.Names())
	assert.Equal(t, "IDLE", h.e.ChainStateTitle())

	h.e.StartCycle()
	h.e.Drain()
	assert.Equal(t, PhaseIdle, h.e.State().Phase, "inactive engine does not start cycles")
}

func TestWaitingForApprovalBlocksAdvance(t *testing.T) {
	p := newRecordingPresenter()
	h := newHarness(t, selection.StaticSource(rows()), p)
	h.e.Start()
	h.e.Drain()

	require.Equal(t, Phase1, h.e.State().Phase)
	handle := p.last
	h.e.OnWindowOpened(handle)
	h.e.OnDataReady(handle)
	h.e.Drain()

	st := h.e.State()
	assert.True(t, st.Waiting)
	require.Len(t, p.presented[handle], 2)
	assert.Equal(t, "PHASE_1 Buy cheapest at front (waiting for approval)", h.e.ChainStateTitle())

	h.e.Advance()
	h.e.Drain()
	assert.Equal(t, Phase1, h.e.State().Phase)

	h.e.ConfirmOrders("stale", []string{"AAA"})
	h.e.Drain()
	assert.True(t, h.e.State().Waiting)

	h.e.SetSelectedTickers([]string{"AAA"})
	h.e.ConfirmOrders(handle, nil)
	h.e.Drain()

	st = h.e.State()
	assert.False(t, st.Waiting)
	assert.Equal(t, Phase2, st.Phase)
	active := h.orders.GetActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, "AAA", active[0].Symbol)
	assert.Contains(t, p.closed, handle)
}

func TestPresentationFailureAdvancesToFinish(t *testing.T) {
	p := newRecordingPresenter()
	p.openErr = errors.New("window unavailable")
	h := newHarness(t, selection.StaticSource(rows()), p)
	h.e.Start()
	h.e.Drain()

	assert.Equal(t, PhaseFinished, h.e.State().Phase)
	assert.Empty(t, h.orders.GetActiveOrders())
}

func TestEmptyScoresSkipEveryPhase(t *testing.T) {
	h := newHarness(t, selection.StaticSource(nil), NewAutoPresenter())
	h.e.Start()
	h.e.Drain()

	assert.Equal(t, PhaseFinished, h.e.State().Phase)
	assert.EqualValues(t, PhaseCount, h.e.GetStatistics().PhasesSkipped)
}

func TestDisconnectHaltsUntilReconnected(t *testing.T) {
	p := newRecordingPresenter()
	h := newHarness(t, selection.StaticSource(rows()), p)
	h.e.Start()
	h.e.Drain()

	handle := p.last
	h.e.OnDataReady(handle)
	h.e.Drain()
	require.True(t, h.e.State().Waiting)

	h.paper.SetConnected(false)
	h.e.ConfirmOrders(handle, []string{"AAA", "BBB"})
	h.e.Drain()

	st := h.e.State()
	assert.True(t, st.Disconnected)
	assert.Equal(t, Phase1, st.Phase)
	assert.Equal(t, 1, h.alerts.disconnects)
	assert.Contains(t, h.e.ChainStateTitle(), "gateway disconnected")

	h.e.Advance()
	h.e.Drain()
	assert.Equal(t, Phase1, h.e.State().Phase)

	h.paper.SetConnected(true)
	h.paper.InjectFill(gateway.Fill{ID: "off-1", Symbol: "AAA", Side: order.SideBuy, Price: 10, Size: 100, Time: h.start.Add(time.Minute)})
	h.e.OnReconnected()
	h.e.Drain()

	st = h.e.State()
	assert.False(t, st.Disconnected)
	assert.Equal(t, 2, st.Cycle)
	assert.Equal(t, Phase1, st.Phase)
	assert.Equal(t, 1, h.alerts.reconnects)
	assert.Equal(t, 100.0, h.bd.LedgerNet("AAA"))
	assert.Empty(t, h.alerts.conflicts)
}

func TestFillRoutesToLedgerAndReverse(t *testing.T) {
	h := newHarness(t, selection.StaticSource(nil), NewAutoPresenter())
	h.quotes.OnQuote(market.Quote{Symbol: "ABC", Bid: 5.00, Ask: 5.02, Last: 5.01, Volume: 1e6})
	h.quotes.OnQuote(market.Quote{Symbol: "SPY", Bid: 399.99, Ask: 400.01, Last: 400})

	fill := gateway.Fill{ID: "f-1", Symbol: "ABC", Side: order.SideBuy, Price: 5.00, Size: 250, Time: h.start}
	h.e.OnFill(fill)
	h.e.OnFill(fill)
	h.e.Drain()

	require.Len(t, h.bd.Fills("ABC"), 1)
	assert.Equal(t, 250.0, h.bd.Positions().NetExposure("ABC"))
	snap, ok := h.bd.Snapshot("ABC")
	require.True(t, ok)
	assert.Equal(t, 400.0, snap.Benchmark)

	var rev []order.Order
	for _, o := range h.orders.GetActiveOrders() {
		if o.IsReverse() {
			rev = append(rev, o)
		}
	}
	require.Len(t, rev, 1)
	assert.Equal(t, order.SideSell, rev[0].Side)
	assert.Equal(t, 250.0, rev[0].Quantity)
	assert.True(t, rev[0].Hidden)
	assert.GreaterOrEqual(t, rev[0].Price, 5.05-1e-9)
	assert.EqualValues(t, 1, h.e.GetStatistics().ReverseOrders)
}

func TestPartialFillKeepsRemainderPending(t *testing.T) {
	h := newHarness(t, selection.StaticSource(nil), NewAutoPresenter())
	sent, err := h.orders.Submit(context.Background(), order.Order{
		Symbol: "AAA", Side: order.SideSell, Price: 10.50, Quantity: 300,
	})
	require.NoError(t, err)

	h.e.OnFill(gateway.Fill{ID: "pf-1", OrderID: sent.ID, Symbol: "AAA", Side: order.SideSell, Price: 10.50, Size: 100, Time: h.start})
	h.e.Drain()

	buy, sell := h.orders.Book().Pending("AAA")
	assert.Zero(t, buy)
	assert.Equal(t, 200.0, sell)
	active := h.orders.GetActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, order.StatusPartial, active[0].Status)
	assert.Equal(t, 100.0, active[0].Filled)
	assert.Equal(t, -100.0, h.bd.LedgerNet("AAA"))

	h.e.OnFill(gateway.Fill{ID: "pf-2", OrderID: sent.ID, Symbol: "AAA", Side: order.SideSell, Price: 10.50, Size: 200, Time: h.start.Add(time.Second)})
	h.e.Drain()

	_, sell = h.orders.Book().Pending("AAA")
	assert.Zero(t, sell)
	st, ok := h.orders.Status(sent.ID)
	require.True(t, ok)
	assert.Equal(t, order.StatusFilled, st)
}

func TestFillPollRecoversMissedFills(t *testing.T) {
	h := newHarness(t, selection.StaticSource(nil), NewAutoPresenter())
	h.e.Start()
	h.e.Drain()

	h.paper.InjectFill(gateway.Fill{ID: "m-1", Symbol: "BBB", Side: order.SideSell, Price: 20, Size: 50, Time: h.start.Add(30 * time.Second)})
	h.sched.Advance(60 * time.Second)
	h.e.Drain()
	require.Len(t, h.bd.Fills("BBB"), 1)
	assert.Equal(t, -50.0, h.bd.Positions().NetExposure("BBB"))

	h.sched.Advance(60 * time.Second)
	h.e.Drain()
	assert.Len(t, h.bd.Fills("BBB"), 1)
}

func TestServeRunsQueuedWork(t *testing.T) {
	h := newHarness(t, selection.StaticSource(rows()), NewAutoPresenter())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.e.Serve(ctx) }()

	h.e.Start()
	assert.Eventually(t, func() bool { return h.e.State().Phase == PhaseFinished }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
