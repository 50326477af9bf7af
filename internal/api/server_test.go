package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation-trader/internal/audit"
	"rotation-trader/internal/engine"
	"rotation-trader/market"
	"rotation-trader/order"
	"rotation-trader/selection"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	selected []string
	confirm  []string
	handle   engine.Handle
	state    engine.ChainState
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeController) Start()       { f.record("start") }
func (f *fakeController) Stop()        { f.record("stop") }
func (f *fakeController) StartCycle()  { f.record("cycle") }
func (f *fakeController) Advance()     { f.record("advance") }
func (f *fakeController) FinishCycle() { f.record("finish") }

func (f *fakeController) OnWindowOpened(h engine.Handle) {
	f.record("opened")
	f.handle = h
}

func (f *fakeController) OnDataReady(h engine.Handle) {
	f.record("ready")
	f.handle = h
}

func (f *fakeController) ConfirmOrders(h engine.Handle, tickers []string) {
	f.record("confirm")
	f.handle = h
	f.confirm = tickers
}

func (f *fakeController) SetSelectedTickers(tickers []string) {
	f.record("select")
	f.selected = tickers
}

func (f *fakeController) State() engine.ChainState { return f.state }

func (f *fakeController) ChainStateTitle() string { return "PHASE_3 Sell richest at front" }

func (f *fakeController) GetStatistics() engine.Statistics {
	return engine.Statistics{Cycles: 2, OrdersSent: 7}
}

func newTestServer(t *testing.T) (*Server, *fakeController, *WebPresenter, *audit.Log) {
	t.Helper()
	ctl := &fakeController{state: engine.ChainState{Phase: engine.Phase3, Cycle: 2, Active: true, Waiting: true}}
	p := NewWebPresenter()
	log := audit.NewLog(nil, 10)
	s, err := New(Config{}, ctl, Options{
		Presenter:  p,
		Audit:      log,
		Exclusions: selection.NewExclusions("XYZ", "ABC"),
		Metrics:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("rotator_core_cycles_total 2\n")) }),
	})
	require.NoError(t, err)
	return s, ctl, p, log
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresController(t *testing.T) {
	_, err := New(Config{}, nil, Options{})
	assert.Error(t, err)
}

func TestStateEndpoint(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := do(t, s.Router(), http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PHASE_3", resp.Phase)
	assert.Equal(t, "PHASE_3 Sell richest at front", resp.Title)
	assert.Equal(t, 2, resp.Cycle)
	assert.True(t, resp.Waiting)
	assert.EqualValues(t, 7, resp.Stats.OrdersSent)
}

func TestCommands(t *testing.T) {
	s, ctl, _, _ := newTestServer(t)
	r := s.Router()
	for _, path := range []string{"/api/start", "/api/cycle", "/api/advance", "/api/finish", "/api/stop"} {
		rec := do(t, r, http.MethodPost, path, "")
		assert.Equal(t, http.StatusAccepted, rec.Code, path)
	}
	assert.Equal(t, []string{"start", "cycle", "advance", "finish", "stop"}, ctl.calls)
}

func TestAuditAndExclusions(t *testing.T) {
	s, _, _, log := newTestServer(t)
	log.Append(audit.Event{Kind: audit.KindRisk, Symbol: "AAA", Message: "company_limit: rejected"})
	log.Append(audit.Event{Kind: audit.KindOrder, Symbol: "BBB", Message: "PHASE_1: BUY 100@10.00 submitted"})
	r := s.Router()

	rec := do(t, r, http.MethodGet, "/api/audit?n=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Events []string `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Contains(t, resp.Events[0], "BBB PHASE_1: BUY 100@10.00 submitted")

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/audit?n=abc", "").Code)

	rec = do(t, r, http.MethodGet, "/api/exclusions", "")
	assert.JSONEq(t, `{"exclusions":["ABC","XYZ"]}`, rec.Body.String())
}

func TestMetricsAndHealth(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	r := s.Router()
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", "").Code)
	rec := do(t, r, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "rotator_core_cycles_total 2")
}

func TestWindowFlow(t *testing.T) {
	s, ctl, p, _ := newTestServer(t)
	r := s.Router()

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/window", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/api/window/x/ready", "").Code)

	spec := engine.DefaultTable(5, 100)[engine.Phase3]
	h, err := p.Open(spec)
	require.NoError(t, err)
	require.NoError(t, p.Present(h, []selection.Candidate{{
		Symbol: "AAA", Score: 1200, Side: order.SideSell, Size: 100, Price: 10.02,
		Quote: market.Quote{Symbol: "AAA", Bid: 10, Ask: 10.04, Last: 10.02},
	}}))

	rec := do(t, r, http.MethodGet, "/api/window", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var w Window
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, h, w.Handle)
	assert.Equal(t, "PHASE_3", w.Phase)
	assert.Equal(t, "SELL", w.Side)
	require.Len(t, w.Candidates, 1)
	assert.Equal(t, 10.04, w.Candidates[0].Ask)

	base := "/api/window/" + string(h)
	assert.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, base+"/opened", "").Code)
	assert.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, base+"/ready", "").Code)
	assert.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, base+"/select", `{"tickers":["AAA"]}`).Code)
	assert.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, base+"/confirm", "").Code)
	assert.Equal(t, []string{"AAA"}, ctl.selected)
	assert.Nil(t, ctl.confirm, "confirm without body uses the selected tickers")
	assert.Equal(t, h, ctl.handle)

	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/api/window/PHASE_1-99/confirm", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, base+"/confirm", `{"tickers":`).Code)

	p.Close(h)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/window", "").Code)
	assert.Equal(t, []string{"opened", "ready", "select", "confirm"}, ctl.calls)
}

func TestPresenterRejectsStaleHandle(t *testing.T) {
	p := NewWebPresenter()
	assert.ErrorIs(t, p.Present("nope", nil), ErrNoWindow)

	spec := engine.DefaultTable(5, 100)[engine.Phase1]
	h1, err := p.Open(spec)
	require.NoError(t, err)
	h2, err := p.Open(spec)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.ErrorIs(t, p.Present(h1, nil), ErrStaleHandle)

	p.Close(h1)
	_, ok := p.Current()
	assert.True(t, ok, "closing a stale handle keeps the current window")
	p.Close(h2)
	_, ok = p.Current()
	assert.False(t, ok)
}
