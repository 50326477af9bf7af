package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OpenOrdersSource 交易所活跃挂单查询（用于对账）。
type OpenOrdersSource interface {
	OpenOrders(ctx context.Context) ([]Order, error)
}

// Reconciler 以交易所挂单为准同步本地视图。
// 交易所不认识 Kind，已知订单沿用本地 Kind，未知订单按 ID 前缀推断。
type Reconciler struct {
	src     OpenOrdersSource
	manager *Manager
	logger  *zap.Logger

	mu                   sync.RWMutex
	totalReconciliations int64
	added                int64
	removed              int64
	lastReconcileTime    time.Time
}

// NewReconciler 创建订单对账器
func NewReconciler(src OpenOrdersSource, manager *Manager, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{src: src, manager: manager, logger: logger}
}

// Sync 执行一次完整对账。
func (r *Reconciler) Sync(ctx context.Context) error {
	remote, err := r.src.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("get open orders failed: %w", err)
	}
	book := r.manager.Book()
	local := make(map[string]Order)
	for _, o := range book.List() {
		local[o.ID] = o
	}

	merged := make([]Order, 0, len(remote))
	var added, removed int64
	seen := make(map[string]bool, len(remote))
	for _, o := range remote {
		if o.ID == "" {
			continue
		}
		seen[o.ID] = true
		if prev, ok := local[o.ID]; ok {
			o.Kind = prev.Kind
			// 交易所未回报成交量时保留本地累计
			if o.Filled < prev.Filled {
				o.Filled = prev.Filled
				if o.Status == "" || o.Status == StatusAck {
					o.Status = StatusPartial
				}
			}
			if o.CreatedAt.IsZero() {
				o.CreatedAt = prev.CreatedAt
			}
		} else {
			o.Kind = KindFromID(firstNonEmpty(o.ClientID, o.ID))
			added++
		}
		if o.Status == "" {
			o.Status = StatusAck
		}
		merged = append(merged, o)
	}
	for id := range local {
		if !seen[id] {
			removed++
		}
	}
	book.Replace(merged)

	r.mu.Lock()
	r.totalReconciliations++
	r.added += added
	r.removed += removed
	r.lastReconcileTime = time.Now()
	r.mu.Unlock()

	if added > 0 || removed > 0 {
		r.logger.Info("open orders reconciled",
			zap.Int("remote", len(merged)),
			zap.Int64("added", added),
			zap.Int64("removed", removed))
	}
	return nil
}

// GetStatistics 获取对账统计信息
func (r *Reconciler) GetStatistics() ReconcilerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ReconcilerStats{
		TotalReconciliations: r.totalReconciliations,
		Added:                r.added,
		Removed:              r.removed,
		LastReconcileTime:    r.lastReconcileTime,
	}
}

// ReconcilerStats 对账统计信息
type ReconcilerStats struct {
	TotalReconciliations int64
	Added                int64
	Removed              int64
	LastReconcileTime    time.Time
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
