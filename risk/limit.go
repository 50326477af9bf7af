package risk

import (
	"fmt"
	"math"
	"strings"

	"rotation-trader/order"
)

// Check 风控检查名。
type Check string

const (
	CheckCompany        Check = "company_limit"
	CheckDailyVolume    Check = "daily_volume_limit"
	CheckLiquidity      Check = "liquidity_limit"
	CheckDrift          Check = "drift_limit"
	CheckPositionSafety Check = "position_safety"
)

// Limits 配置。
type Limits struct {
	DailyVolumeCap   float64 // 单标的单方向日累计上限
	DriftWindow      float64 // 日初基准 ± 窗口
	LiquidityFloor   float64 // MAXALW 下限
	LiquidityDivisor float64 // MAXALW = max(floor, avg_daily_volume/divisor)
	CompanyPeerDiv   float64 // 公司最大单数 = round(peers/div)
	CompanyMaxOrders int     // 公司最大单数上限
}

// DefaultLimits 返回默认风控常量。
func DefaultLimits() Limits {
	return Limits{
		DailyVolumeCap:   600,
		DriftWindow:      600,
		LiquidityFloor:   200,
		LiquidityDivisor: 10,
		CompanyPeerDiv:   3,
		CompanyMaxOrders: 3,
	}
}

// MaxAllowed 计算 MAXALW。
func (l Limits) MaxAllowed(avgDailyVolume float64) float64 {
	v := 0.0
	if l.LiquidityDivisor > 0 {
		v = avgDailyVolume / l.LiquidityDivisor
	}
	return math.Max(l.LiquidityFloor, v)
}

// CompanyMax 计算公司并发单数上限：clamp(round(peers/div), 1, max)。
func (l Limits) CompanyMax(peers int) int {
	div := l.CompanyPeerDiv
	if div <= 0 {
		div = 3
	}
	n := int(math.Round(float64(peers) / div))
	if n < 1 {
		n = 1
	}
	if l.CompanyMaxOrders > 0 && n > l.CompanyMaxOrders {
		n = l.CompanyMaxOrders
	}
	return n
}

// CompanyRoot 返回标的的公司根（第一个空白分隔的 token，不做归一化）。
func CompanyRoot(symbol string) string {
	f := strings.Fields(symbol)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// Request 一次下单请求。
type Request struct {
	Symbol string
	Side   order.Side
	Size   float64
}

// Exposure 评估所需的单标的状态快照。
type Exposure struct {
	Position       float64 // 当前持仓（多正空负）
	PendingBuy     float64
	PendingSell    float64
	Baseline       float64 // 日初基准
	AvgDailyVolume float64
	DailyVolume    float64 // 今日同方向累计
	CompanyOrders  int     // 今日同公司同方向已下单数
	CompanyPeers   int
}

// Projected 返回含在途挂单的净仓位。
func (x Exposure) Projected() float64 {
	return x.Position + x.PendingBuy - x.PendingSell
}

// Decision 单项或汇总风控结论。
type Decision struct {
	Check    Check
	Allowed  float64
	Rejected bool
	Reason   string
	Basis    map[string]float64
}

// Truncated 是否被截断（未拒绝但小于请求量）。
func (d Decision) Truncated(requested float64) bool {
	return !d.Rejected && d.Allowed < requested
}

// Err 拒绝时返回带数值依据的 sentinel 错误，否则 nil。
func (d Decision) Err() error {
	if !d.Rejected {
		return nil
	}
	var base error
	switch d.Check {
	case CheckCompany:
		base = ErrCompanyLimit
	case CheckDailyVolume:
		base = ErrDailyVolumeLimit
	case CheckLiquidity:
		base = ErrLiquidityLimit
	case CheckDrift:
		base = ErrDriftLimit
	default:
		base = ErrPositionSafety
	}
	return fmt.Errorf("%w: %s", base, d.Reason)
}

func allow(c Check, req Request, room float64, basis map[string]float64) Decision {
	size := math.Floor(math.Min(req.Size, room) + 1e-9)
	if size < 1 {
		return Decision{Check: c, Rejected: true, Reason: fmt.Sprintf("no room (%.0f)", room), Basis: basis}
	}
	d := Decision{Check: c, Allowed: size, Basis: basis}
	if size < req.Size {
		d.Reason = fmt.Sprintf("truncated %.0f -> %.0f", req.Size, size)
	}
	return d
}

// CompanyLimit 同公司同方向已下单数达到上限则拒绝。
func CompanyLimit(l Limits, req Request, x Exposure) Decision {
	max := l.CompanyMax(x.CompanyPeers)
	basis := map[string]float64{
		"peers":      float64(x.CompanyPeers),
		"max_orders": float64(max),
		"orders":     float64(x.CompanyOrders),
	}
	if x.CompanyOrders >= max {
		return Decision{
			Check:    CheckCompany,
			Rejected: true,
			Reason:   fmt.Sprintf("company %s has %d/%d orders", CompanyRoot(req.Symbol), x.CompanyOrders, max),
			Basis:    basis,
		}
	}
	return Decision{Check: CheckCompany, Allowed: req.Size, Basis: basis}
}

// DailyVolumeLimit 同方向日累计 + size ≤ 上限。
func DailyVolumeLimit(l Limits, req Request, x Exposure) Decision {
	room := l.DailyVolumeCap - x.DailyVolume
	return allow(CheckDailyVolume, req, room, map[string]float64{
		"daily_volume": x.DailyVolume,
		"cap":          l.DailyVolumeCap,
		"room":         room,
	})
}

// LiquidityLimit |持仓 + 在途 ± size| ≤ MAXALW。
func LiquidityLimit(l Limits, req Request, x Exposure) Decision {
	maxalw := l.MaxAllowed(x.AvgDailyVolume)
	base := x.Projected()
	room := maxalw - base
	if req.Side == order.SideSell {
		room = maxalw + base
	}
	return allow(CheckLiquidity, req, room, map[string]float64{
		"maxalw":    maxalw,
		"projected": base,
		"room":      room,
	})
}

// DriftLimit 投影仓位保持在 [baseline-window, baseline+window]。
func DriftLimit(l Limits, req Request, x Exposure) Decision {
	base := x.Projected()
	lo, hi := x.Baseline-l.DriftWindow, x.Baseline+l.DriftWindow
	room := hi - base
	if req.Side == order.SideSell {
		room = base - lo
	}
	return allow(CheckDrift, req, room, map[string]float64{
		"baseline":  x.Baseline,
		"lower":     lo,
		"upper":     hi,
		"projected": base,
		"room":      room,
	})
}

// PositionSafety 平反向仓位时不允许越过零轴；同向或空仓不设上限。
func PositionSafety(_ Limits, req Request, x Exposure) Decision {
	basis := map[string]float64{"position": x.Position}
	switch {
	case req.Side == order.SideBuy && x.Position < 0:
		return allow(CheckPositionSafety, req, -x.Position, basis)
	case req.Side == order.SideSell && x.Position > 0:
		return allow(CheckPositionSafety, req, x.Position, basis)
	}
	return Decision{Check: CheckPositionSafety, Allowed: math.Floor(req.Size + 1e-9), Basis: basis}
}
