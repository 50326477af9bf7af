package risk

import (
	"sync"

	"go.uber.org/zap"
)

// 计数桶
const (
	BucketVolume  = "volume"  // 同方向日累计下单量，键 symbol|side
	BucketCompany = "company" // 同公司同方向下单数，键 root|side
)

// CounterStore 日计数持久化；重启后在同一交易日内恢复。
type CounterStore interface {
	LoadCounters(date string) (map[string]float64, error)
	SaveCounter(date, key string, value float64) error
}

// DailyCounters 按本地日期自动归零的计数器。
// 每次访问时检测日期变化，而不是依赖定时任务。
type DailyCounters struct {
	mu     sync.Mutex
	clock  Clock
	store  CounterStore
	logger *zap.Logger
	date   string
	values map[string]float64
}

func NewDailyCounters(store CounterStore, clock Clock, logger *zap.Logger) *DailyCounters {
	if clock == nil {
		clock = NowLocal
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyCounters{
		clock:  clock,
		store:  store,
		logger: logger,
		values: make(map[string]float64),
	}
}

// Key 组合计数键。
func Key(bucket string, parts ...string) string {
	k := bucket
	for _, p := range parts {
		k += "|" + p
	}
	return k
}

// Get 返回今日计数。
func (c *DailyCounters) Get(key string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked()
	return c.values[key]
}

// Add 累加并返回新值。
func (c *DailyCounters) Add(key string, delta float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked()
	c.values[key] += delta
	v := c.values[key]
	if c.store != nil {
		if err := c.store.SaveCounter(c.date, key, v); err != nil {
			c.logger.Warn("persist daily counter failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v
}

// Date 返回当前计数所属日期。
func (c *DailyCounters) Date() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked()
	return c.date
}

// Snapshot 返回今日全部计数的拷贝。
func (c *DailyCounters) Snapshot() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked()
	out := make(map[string]float64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *DailyCounters) rollLocked() {
	d := DateKey(c.clock.Now())
	if d == c.date {
		return
	}
	prev := c.date
	c.date = d
	c.values = make(map[string]float64)
	if c.store != nil {
		loaded, err := c.store.LoadCounters(d)
		if err != nil {
			c.logger.Warn("load daily counters failed", zap.String("date", d), zap.Error(err))
		}
		for k, v := range loaded {
			c.values[k] = v
		}
	}
	if prev != "" {
		c.logger.Info("daily counters reset", zap.String("from", prev), zap.String("to", d))
	}
}
