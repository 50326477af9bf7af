package order

import (
	"fmt"
	"math"
)

// SymbolConstraints 描述价格步长、数量步长与最低价格。
type SymbolConstraints struct {
	TickSize float64
	StepSize float64
	MinQty   float64
	MaxQty   float64
	MinPrice float64
}

// DefaultConstraints 美股整股、分位报价。
func DefaultConstraints() SymbolConstraints {
	return SymbolConstraints{
		TickSize: 0.01,
		StepSize: 1,
		MinQty:   1,
		MinPrice: 0.10,
	}
}

// Validate 检查订单价格/数量是否符合精度与下限。
func (c SymbolConstraints) Validate(price, qty float64) error {
	if c.TickSize > 0 && !isMultiple(price, c.TickSize) {
		return fmt.Errorf("price %.4f not aligned to tickSize %.4f", price, c.TickSize)
	}
	if c.StepSize > 0 && !isMultiple(qty, c.StepSize) {
		return fmt.Errorf("qty %.4f not aligned to stepSize %.4f", qty, c.StepSize)
	}
	if c.MinQty > 0 && qty < c.MinQty {
		return fmt.Errorf("qty %.4f < minQty %.4f", qty, c.MinQty)
	}
	if c.MaxQty > 0 && qty > c.MaxQty {
		return fmt.Errorf("qty %.4f > maxQty %.4f", qty, c.MaxQty)
	}
	if c.MinPrice > 0 && price <= c.MinPrice {
		return fmt.Errorf("price %.4f <= minPrice %.4f", price, c.MinPrice)
	}
	return nil
}

// NormalizeQty 数量向下取整到步长。
func (c SymbolConstraints) NormalizeQty(qty float64) float64 {
	if c.StepSize <= 0 {
		return qty
	}
	return math.Floor(qty/c.StepSize+1e-9) * c.StepSize
}

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) <= 1e-6
}
