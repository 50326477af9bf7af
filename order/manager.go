package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway 提供基础下单/撤单抽象；由 gateway.Broker 实现。
type Gateway interface {
	PlaceOrder(ctx context.Context, o Order) error
	CancelOrder(ctx context.Context, o Order) error
}

var (
	ErrUnknownOrder = errors.New("unknown order")
	// ErrRejected 网关拒绝下单（OrderRejected），本周期不重试
	ErrRejected = errors.New("order rejected")
)

const (
	normalPrefix  = "nrm-"
	reversePrefix = "rev-"
)

// Manager 维护订单状态并通过 Gateway 下发。
type Manager struct {
	gw          Gateway
	book        *Book
	sm          *StateMachine
	logger      *zap.Logger
	mu          sync.RWMutex
	constraints map[string]SymbolConstraints
	defaults    SymbolConstraints
	now         func() time.Time
}

func NewManager(gw Gateway, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		gw:       gw,
		book:     NewBook(),
		sm:       NewStateMachine(),
		logger:   logger,
		defaults: DefaultConstraints(),
		now:      time.Now,
	}
}

// Book 返回本地挂单视图。
func (m *Manager) Book() *Book { return m.book }

// Submit 同步调用 Gateway 下单并登记状态。
func (m *Manager) Submit(ctx context.Context, o Order) (*Order, error) {
	if o.Type == "" {
		o.Type = "LIMIT"
	}
	if o.Kind == "" {
		o.Kind = KindNormal
	}
	if err := m.validateConstraint(o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if o.ID == "" {
		o.ID = NewID(o.Kind)
	}
	if o.ClientID == "" {
		o.ClientID = o.ID
	}
	o.Status = StatusNew
	o.CreatedAt = m.now()
	m.book.Set(o)

	if m.gw != nil {
		if err := m.gw.PlaceOrder(ctx, o); err != nil {
			_ = m.updateStatus(o.ID, StatusRejected, err)
			m.book.Remove(o.ID)
			m.logger.Warn("order rejected by gateway",
				zap.String("order_id", o.ID),
				zap.String("symbol", o.Symbol),
				zap.String("side", string(o.Side)),
				zap.Float64("price", o.Price),
				zap.Float64("qty", o.Quantity),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %s %s %.0f@%.2f: %w", ErrRejected, o.Symbol, o.Side, o.Quantity, o.Price, err)
		}
	}
	if err := m.updateStatus(o.ID, StatusAck, nil); err != nil {
		return nil, err
	}
	o.Status = StatusAck
	m.logger.Info("order submitted",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.String("kind", string(o.Kind)),
		zap.Bool("hidden", o.Hidden),
		zap.Float64("price", o.Price),
		zap.Float64("qty", o.Quantity))
	return &o, nil
}


// ApplyFill 累加成交数量：未满额为 PARTIAL，累计达到委托数量后为 FILLED。
// 返回更新后的订单。
func (m *Manager) ApplyFill(id string, size float64) (Order, error) {
	o, ok := m.book.Get(id)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if size <= 0 {
		return o, nil
	}
	next := StatusPartial
	filled := o.Filled + size
	if filled >= o.Quantity-1e-9 {
		next = StatusFilled
		filled = o.Quantity
	}
	if err := m.sm.ValidateTransition(o.Status, next); err != nil {
		return o, err
	}
	o.Filled = filled
	o.Status = next
	m.book.Set(o)
	return o, nil
}

// Cancel 调用 Gateway 撤单并从本地视图移除。
func (m *Manager) Cancel(ctx context.Context, id string) error {
	o, ok := m.book.Get(id)
	if !ok {
		return ErrUnknownOrder
	}
	if m.gw != nil {
		if err := m.gw.CancelOrder(ctx, o); err != nil {
			return fmt.Errorf("cancel %s: %w", id, err)
		}
	}
	if err := m.updateStatus(id, StatusCanceled, nil); err != nil {
		return err
	}
	m.book.Remove(id)
	m.logger.Info("order canceled",
		zap.String("order_id", id),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.String("kind", string(o.Kind)),
		zap.Float64("price", o.Price),
		zap.Float64("qty", o.Quantity))
	return nil
}

// CancelWhere 撤销所有满足条件的活跃订单，返回成功撤销的订单。
// 单笔失败不中断，最后返回汇总错误。
func (m *Manager) CancelWhere(ctx context.Context, match func(Order) bool) ([]Order, error) {
	var (
		canceled []Order
		failed   int
		lastErr  error
	)
	for _, o := range m.book.Active() {
		if !match(o) {
			continue
		}
		if err := m.Cancel(ctx, o.ID); err != nil {
			failed++
			lastErr = err
			continue
		}
		canceled = append(canceled, o)
	}
	if failed > 0 {
		return canceled, fmt.Errorf("failed to cancel %d orders: %w", failed, lastErr)
	}
	return canceled, nil
}

// GetActiveOrders 返回活跃订单。
func (m *Manager) GetActiveOrders() []Order {
	return m.book.Active()
}

// Status 返回订单当前状态，如不存在则第二个返回值为 false。
func (m *Manager) Status(id string) (Status, bool) {
	o, ok := m.book.Get(id)
	if !ok {
		return "", false
	}
	return o.Status, true
}

func (m *Manager) updateStatus(id string, st Status, err error) error {
	o, ok := m.book.Get(id)
	if !ok {
		return ErrUnknownOrder
	}
	if verr := m.sm.ValidateTransition(o.Status, st); verr != nil {
		return verr
	}
	o.Status = st
	if err != nil {
		o.LastError = err.Error()
	}
	m.book.Set(o)
	return nil
}

// NewID 生成带类型前缀的订单 ID，便于重启后从交易所回报恢复 Kind。
func NewID(kind Kind) string {
	prefix := normalPrefix
	if kind == KindReverse {
		prefix = reversePrefix
	}
	return prefix + uuid.New().String()
}

// KindFromID 从订单/客户端 ID 前缀推断 Kind，未知前缀视为普通单。
func KindFromID(id string) Kind {
	if strings.HasPrefix(id, reversePrefix) {
		return KindReverse
	}
	return KindNormal
}

// SetConstraints 设置各标的的精度限制；未配置的标的使用默认限制。
func (m *Manager) SetConstraints(c map[string]SymbolConstraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		m.constraints[sym] = sc
	}
}

func (m *Manager) validateConstraint(o Order) error {
	if o.Quantity <= 0 {
		return fmt.Errorf("qty %.4f must be > 0", o.Quantity)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("invalid side %q", o.Side)
	}
	m.mu.RLock()
	c, ok := m.constraints[o.Symbol]
	m.mu.RUnlock()
	if !ok {
		c = m.defaults
	}
	if strings.EqualFold(o.Type, "MARKET") {
		return nil
	}
	return c.Validate(o.Price, o.Quantity)
}
