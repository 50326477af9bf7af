package order

import (
	"math"
	"sort"
	"sync"
)

// Book 记录本地挂单视图，支持按标的/方向聚合查询。
type Book struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewBook() *Book {
	return &Book{orders: make(map[string]Order)}
}

func (b *Book) Set(o Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
}

func (b *Book) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Remove 删除订单记录。
func (b *Book) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.orders, id)
}

// Replace 用外部快照整体覆盖本地视图。
func (b *Book) Replace(orders []Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = make(map[string]Order, len(orders))
	for _, o := range orders {
		b.orders[o.ID] = o
	}
}

// List 返回全部订单（拷贝），按创建时间和 ID 排序保证稳定。
func (b *Book) List() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// Active 返回仍在盘口的订单。
func (b *Book) Active() []Order {
	all := b.List()
	res := all[:0]
	for _, o := range all {
		if isActive(o.Status) {
			res = append(res, o)
		}
	}
	return res
}

// BySymbol 返回某标的仍在盘口的订单。
func (b *Book) BySymbol(symbol string) []Order {
	var res []Order
	for _, o := range b.Active() {
		if o.Symbol == symbol {
			res = append(res, o)
		}
	}
	return res
}

// Pending 返回某标的在途买/卖未成交数量之和。
func (b *Book) Pending(symbol string) (buy, sell float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.orders {
		if o.Symbol != symbol || !isActive(o.Status) {
			continue
		}
		if o.Side == SideBuy {
			buy += o.Remaining()
		} else {
			sell += o.Remaining()
		}
	}
	return buy, sell
}

// HasNear 是否已有同方向挂单距 price 不超过 band。
func (b *Book) HasNear(symbol string, side Side, price, band float64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.orders {
		if o.Symbol != symbol || o.Side != side || !isActive(o.Status) {
			continue
		}
		if math.Abs(o.Price-price) <= band+1e-9 {
			return true
		}
	}
	return false
}

// Symbols 返回有活跃挂单的标的（排序）。
func (b *Book) Symbols() []string {
	seen := make(map[string]bool)
	for _, o := range b.Active() {
		seen[o.Symbol] = true
	}
	res := make([]string, 0, len(seen))
	for s := range seen {
		res = append(res, s)
	}
	sort.Strings(res)
	return res
}

func isActive(st Status) bool {
	switch st {
	case StatusNew, StatusAck, StatusPartial:
		return true
	default:
		return false
	}
}
