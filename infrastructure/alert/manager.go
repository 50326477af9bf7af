package alert

import (
	"fmt"
	"sync"
	"time"
)

// 告警级别
const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

// Alert 告警信息
type Alert struct {
	Level     string                 // "INFO", "WARNING", "CRITICAL"
	Message   string                 // 告警消息
	Timestamp time.Time              // 告警时间
	Fields    map[string]interface{} // 附加字段
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 告警管理器，通道在构造时固定。
type Manager struct {
	channels []Channel
	throttle *Throttler
}

// Throttler 告警限流器，同一 key 在 interval 内只放行一次。
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow 检查是否允许发送（限流）
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	lastTime, exists := t.lastSent[key]
	if !exists || now.Sub(lastTime) >= t.interval {
		t.lastSent[key] = now
		return true
	}
	return false
}

// NewManager 创建告警管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// SendAlert 发送告警。被限流时静默丢弃；全部通道失败才返回错误。
func (m *Manager) SendAlert(alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	key := fmt.Sprintf("%s:%s", alert.Level, alert.Message)
	if sym, ok := alert.Fields["symbol"]; ok {
		key = fmt.Sprintf("%s:%v", key, sym)
	}
	if !m.throttle.Allow(key) {
		return nil
	}

	var lastErr error
	successCount := 0
	for _, ch := range m.channels {
		if err := ch.Send(alert); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
		} else {
			successCount++
		}
	}
	if successCount == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// SendInfo 发送INFO级别告警
func (m *Manager) SendInfo(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: LevelInfo, Message: message, Fields: fields})
}

// SendWarning 发送WARNING级别告警
func (m *Manager) SendWarning(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: LevelWarning, Message: message, Fields: fields})
}

// SendCritical 发送CRITICAL级别告警
func (m *Manager) SendCritical(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: LevelCritical, Message: message, Fields: fields})
}

// GatewayDisconnected 网关断线，阶段推进已暂停。
func (m *Manager) GatewayDisconnected(phase string, err error) error {
	return m.SendCritical("gateway disconnected, phase progression halted", map[string]interface{}{
		"phase": phase,
		"error": fmt.Sprint(err),
	})
}

// GatewayReconnected 网关恢复。
func (m *Manager) GatewayReconnected() error {
	return m.SendInfo("gateway reconnected", nil)
}

// ReconciliationConflict 账实差异无法由券商成交解释，账本保持不变。
func (m *Manager) ReconciliationConflict(symbol string, ledger, broker float64) error {
	return m.SendWarning("reconciliation conflict", map[string]interface{}{
		"symbol": symbol,
		"ledger": ledger,
		"broker": broker,
	})
}
