package engine

import (
	"fmt"
	"sync"

	"rotation-trader/selection"
)

// Handle 标识一次阶段展示窗口。
type Handle string

// Presenter 候选展示端口：打开窗口、展示候选、关闭窗口。
// 展示端通过 Callbacks 通知窗口就绪与确认结果。
type Presenter interface {
	Open(spec PhaseSpec) (Handle, error)
	Present(h Handle, candidates []selection.Candidate) error
	Close(h Handle)
}

// Callbacks 引擎暴露给展示端的回调，全部为异步投递。
type Callbacks interface {
	OnWindowOpened(h Handle)
	OnDataReady(h Handle)
	ConfirmOrders(h Handle, tickers []string)
}

// AutoPresenter 无人值守模式：窗口立即就绪，全部候选自动确认。
type AutoPresenter struct {
	mu  sync.Mutex
	cb  Callbacks
	seq int
}

func NewAutoPresenter() *AutoPresenter {
	return &AutoPresenter{}
}

// Bind 绑定回调（通常是引擎本身）。
func (p *AutoPresenter) Bind(cb Callbacks) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

func (p *AutoPresenter) Open(spec PhaseSpec) (Handle, error) {
	p.mu.Lock()
	cb := p.cb
	if cb == nil {
		p.mu.Unlock()
		return "", fmt.Errorf("auto presenter not bound")
	}
	p.seq++
	h := Handle(fmt.Sprintf("%s#%d", spec.Phase, p.seq))
	p.mu.Unlock()

	cb.OnWindowOpened(h)
	cb.OnDataReady(h)
	return h, nil
}

func (p *AutoPresenter) Present(h Handle, candidates []selection.Candidate) error {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb == nil {
		return fmt.Errorf("auto presenter not bound")
	}

	tickers := make([]string, 0, len(candidates))
	for _, c := range candidates {
		tickers = append(tickers, c.Symbol)
	}
	cb.ConfirmOrders(h, tickers)
	return nil
}

func (p *AutoPresenter) Close(Handle) {}
