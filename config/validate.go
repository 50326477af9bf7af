package config

import "fmt"

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

func invalid(format string, args ...interface{}) error {
	return ErrInvalid(fmt.Sprintf(format, args...))
}

// Validate ensures required fields are present and constants are sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return invalid("env is required")
	}

	e := cfg.Engine
	if e.PhaseSize <= 0 {
		return invalid("engine.phaseSize must be > 0")
	}
	if e.LotSize < 1 {
		return invalid("engine.lotSize must be >= 1")
	}
	if e.FillPollSeconds <= 0 || e.RestartDelaySeconds <= 0 || e.CallTimeoutSeconds <= 0 {
		return invalid("engine timers must be > 0")
	}

	r := cfg.Risk
	if r.DailyVolumeCap <= 0 {
		return invalid("risk.dailyVolumeCap must be > 0")
	}
	if r.DriftWindow <= 0 {
		return invalid("risk.driftWindow must be > 0")
	}
	if r.LiquidityFloor <= 0 || r.LiquidityDivisor <= 0 {
		return invalid("risk.liquidityFloor/liquidityDivisor must be > 0")
	}
	if r.CompanyPeerDiv <= 0 || r.CompanyMaxOrders < 1 {
		return invalid("risk.companyPeerDiv must be > 0 and companyMaxOrders >= 1")
	}

	v := cfg.Reverse
	if v.Trigger <= 0 || v.DailyCap <= 0 {
		return invalid("reverse.trigger/dailyCap must be > 0")
	}
	if v.MinProfit <= 0 || v.DepthRange < v.MinProfit {
		return invalid("reverse.depthRange %.2f must be >= minProfit %.2f > 0", v.DepthRange, v.MinProfit)
	}
	if v.PassiveRatio < 0 || v.PassiveRatio >= 1 {
		return invalid("reverse.passiveRatio must be in [0,1)")
	}
	if v.MinPrice < 0 {
		return invalid("reverse.minPrice must be >= 0")
	}

	s := cfg.Selection
	if s.PoolFactor < 1 {
		return invalid("selection.poolFactor must be >= 1")
	}
	if s.ConflictBand < 0 || s.FrontRatio < 0 || s.FrontMinSpread < 0 {
		return invalid("selection constants must be >= 0")
	}

	if cfg.Gateway.Mode != "paper" {
		return invalid("gateway.mode %q not supported", cfg.Gateway.Mode)
	}
	if cfg.Gateway.RateLimit < 0 || cfg.Gateway.Burst < 0 {
		return invalid("gateway rate limits must be >= 0")
	}

	if cfg.Files.Scores == "" {
		return invalid("files.scores is required")
	}
	if cfg.Files.LedgerDB == "" {
		return invalid("files.ledgerDB is required")
	}
	if cfg.Alert.ThrottleSeconds < 0 {
		return invalid("alert.throttleSeconds must be >= 0")
	}
	return nil
}
