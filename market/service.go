package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// QuoteSource 批量拉取行情（由网关实现）。
type QuoteSource interface {
	MarketData(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// Service 维护最新行情缓存，并向订阅者广播。
type Service struct {
	pub    *Publisher
	mu     sync.RWMutex
	quotes map[string]Quote
	now    func() time.Time
}

func NewService(pub *Publisher) *Service {
	if pub == nil {
		pub = NewPublisher()
	}
	return &Service{
		pub:    pub,
		quotes: make(map[string]Quote),
		now:    time.Now,
	}
}

// OnQuote 更新并广播。
func (s *Service) OnQuote(q Quote) {
	if q.Symbol == "" {
		return
	}
	if q.Ts.IsZero() {
		q.Ts = s.now()
	}
	s.mu.Lock()
	s.quotes[q.Symbol] = q
	s.mu.Unlock()
	s.pub.PublishQuote(q)
}

// Refresh 从行情源拉取一批标的并写入缓存，返回成功更新的数量。
func (s *Service) Refresh(ctx context.Context, src QuoteSource, symbols []string) (int, error) {
	if src == nil || len(symbols) == 0 {
		return 0, nil
	}
	quotes, err := src.MarketData(ctx, symbols)
	if err != nil {
		return 0, fmt.Errorf("refresh quotes: %w", err)
	}
	n := 0
	for sym, q := range quotes {
		if q.Symbol == "" {
			q.Symbol = sym
		}
		s.OnQuote(q)
		n++
	}
	return n, nil
}

// Quote 返回缓存行情；缺失或无效时返回 ErrNoQuote。
func (s *Service) Quote(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok || !q.Valid() {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}
	return q, nil
}

// Last 返回最新成交价；若缺失则返回 0。
func (s *Service) Last(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quotes[symbol].Reference()
}

// Mid 返回当前中间价；若缺失则返回 0。
func (s *Service) Mid(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quotes[symbol].Mid()
}
