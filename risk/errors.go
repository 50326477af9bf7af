package risk

import "errors"

// LimitExceeded 类错误；通过 errors.Is 判别。
var (
	ErrCompanyLimit     = errors.New("company limit exceeded")
	ErrLiquidityLimit   = errors.New("liquidity limit exceeded")
	ErrDriftLimit       = errors.New("drift limit exceeded")
	ErrDailyVolumeLimit = errors.New("daily volume limit exceeded")
	ErrPositionSafety   = errors.New("position safety violated")
)
