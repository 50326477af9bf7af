package market

import "github.com/shopspring/decimal"

// DefaultTick 最小报价单位。
const DefaultTick = 0.01

// RoundToTick 将价格四舍五入到 tick 整数倍，避免浮点误差累积。
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		tick = DefaultTick
	}
	t := decimal.NewFromFloat(tick)
	v := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t)
	f, _ := v.Float64()
	return f
}

// FloorToTick 向下取整到 tick。
func FloorToTick(price, tick float64) float64 {
	if tick <= 0 {
		tick = DefaultTick
	}
	t := decimal.NewFromFloat(tick)
	v := decimal.NewFromFloat(price).Div(t).Floor().Mul(t)
	f, _ := v.Float64()
	return f
}

// CeilToTick 向上取整到 tick。
func CeilToTick(price, tick float64) float64 {
	if tick <= 0 {
		tick = DefaultTick
	}
	t := decimal.NewFromFloat(tick)
	v := decimal.NewFromFloat(price).Div(t).Ceil().Mul(t)
	f, _ := v.Float64()
	return f
}

// AddTicks 在价格上加减 n 个 tick，结果已对齐。
func AddTicks(price float64, n int, tick float64) float64 {
	if tick <= 0 {
		tick = DefaultTick
	}
	v := decimal.NewFromFloat(price).Add(decimal.NewFromFloat(tick).Mul(decimal.NewFromInt(int64(n))))
	return RoundToTick(v.InexactFloat64(), tick)
}
