package order

import (
	"strings"
	"time"
)

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusAck      Status = "ACK"
	StatusPartial  Status = "PARTIAL"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
)

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide 宽松解析方向字符串（大小写不敏感，支持 B/S）。
func ParseSide(s string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "BOT":
		return SideBuy, true
	case "SELL", "S", "SLD":
		return SideSell, true
	default:
		return "", false
	}
}

// Opposite 返回反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign 买为 +1，卖为 -1。
func (s Side) Sign() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// Kind 区分普通挂单与反向（止盈）挂单。
type Kind string

const (
	// KindNormal 阶段下单，周期重启时撤销
	KindNormal Kind = "NORMAL"
	// KindReverse 反向止盈单，永不自动撤销
	KindReverse Kind = "REVERSE"
)

// Order holds a pending order view.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      string // LIMIT/MARKET
	Price     float64
	Quantity  float64
	Filled    float64 // 累计成交数量
	Hidden    bool
	Kind      Kind
	Status    Status
	ClientID  string
	LastError string
	CreatedAt time.Time
}

// Remaining 未成交数量。
func (o Order) Remaining() float64 {
	if r := o.Quantity - o.Filled; r > 0 {
		return r
	}
	return 0
}

// Signed 返回未成交部分的带符号数量（买正卖负）。
func (o Order) Signed() float64 {
	return o.Side.Sign() * o.Remaining()
}

// IsReverse 是否为反向止盈单。
func (o Order) IsReverse() bool {
	return o.Kind == KindReverse
}
