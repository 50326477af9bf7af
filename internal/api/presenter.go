package api

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"rotation-trader/internal/engine"
	"rotation-trader/selection"
)

var (
	// ErrNoWindow 当前没有打开的阶段窗口
	ErrNoWindow = errors.New("no phase window open")
	// ErrStaleHandle 句柄与当前窗口不一致
	ErrStaleHandle = errors.New("stale window handle")
)

// Window 网页端看到的阶段窗口。
type Window struct {
	Handle     engine.Handle   `json:"handle"`
	Phase      string          `json:"phase"`
	Title      string          `json:"title"`
	Side       string          `json:"side"`
	OpenedAt   time.Time       `json:"opened_at"`
	Candidates []CandidateView `json:"candidates"`
}

// CandidateView 候选的展示字段。
type CandidateView struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
	Side   string  `json:"side"`
	Size   float64 `json:"size"`
	Price  float64 `json:"price"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Reason string  `json:"reason,omitempty"`
}

// WebPresenter 通过 HTTP 展示候选：引擎打开窗口后由浏览器轮询
// GET /api/window，并回调 opened/ready/select/confirm。
type WebPresenter struct {
	mu     sync.Mutex
	seq    int
	window *Window
	now    func() time.Time
}

func NewWebPresenter() *WebPresenter {
	return &WebPresenter{now: time.Now}
}

func (p *WebPresenter) Open(spec engine.PhaseSpec) (engine.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	h := engine.Handle(fmt.Sprintf("%s-%d", spec.Phase, p.seq))
	p.window = &Window{
		Handle:   h,
		Phase:    spec.Phase.String(),
		Title:    spec.Title,
		Side:     string(spec.Side),
		OpenedAt: p.now(),
	}
	return h, nil
}

func (p *WebPresenter) Present(h engine.Handle, candidates []selection.Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window == nil {
		return ErrNoWindow
	}
	if p.window.Handle != h {
		return fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	views := make([]CandidateView, 0, len(candidates))
	for _, c := range candidates {
		views = append(views, CandidateView{
			Symbol: c.Symbol,
			Score:  c.Score,
			Side:   string(c.Side),
			Size:   c.Size,
			Price:  c.Price,
			Bid:    c.Quote.Bid,
			Ask:    c.Quote.Ask,
			Last:   c.Quote.Last,
			Reason: c.Decision.Reason,
		})
	}
	p.window.Candidates = views
	return nil
}

func (p *WebPresenter) Close(h engine.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window != nil && p.window.Handle == h {
		p.window = nil
	}
}

// Current 返回当前窗口的副本。
func (p *WebPresenter) Current() (Window, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window == nil {
		return Window{}, false
	}
	w := *p.window
	w.Candidates = append([]CandidateView(nil), p.window.Candidates...)
	return w, true
}

// check 校验句柄仍对应当前窗口。
func (p *WebPresenter) check(h engine.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window == nil {
		return ErrNoWindow
	}
	if p.window.Handle != h {
		return fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return nil
}
