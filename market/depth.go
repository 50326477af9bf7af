package market

// SyntheticLevels 在缺少真实深度时，从 from 起按 tick 合成 n 档价格。
// up=true 逐档上移（卖方档位），否则逐档下移；价格不为正时停止。
// 这是启发式估计，不代表真实挂单。
func SyntheticLevels(from float64, up bool, n int, tick float64) []float64 {
	if n <= 0 || from <= 0 {
		return nil
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	step := -1
	if up {
		step = 1
	}
	levels := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		p := AddTicks(from, i*step, tick)
		if p <= 0 {
			break
		}
		levels = append(levels, p)
	}
	return levels
}
