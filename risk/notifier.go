package risk

import (
	"fmt"

	"go.uber.org/zap"

	"rotation-trader/internal/audit"
)

// Observer 接收风控结论计数（由 monitor 实现）。
type Observer interface {
	RiskDecision(check, outcome string)
}

// Notifier 把每一次风控结论及其数值依据写入 zap 日志、审计日志与指标。
type Notifier struct {
	logger   *zap.Logger
	sink     audit.Sink
	observer Observer
}

func NewNotifier(logger *zap.Logger, sink audit.Sink, observer Observer) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Notifier{logger: logger, sink: sink, observer: observer}
}

// Outcome 返回结论类别：allowed / truncated / rejected。
func Outcome(req Request, d Decision) string {
	switch {
	case d.Rejected:
		return "rejected"
	case d.Truncated(req.Size):
		return "truncated"
	default:
		return "allowed"
	}
}

// NotifyDecision 记录单项检查结论；仅拒绝与截断写入审计日志。
func (n *Notifier) NotifyDecision(req Request, d Decision) {
	outcome := Outcome(req, d)
	if n.observer != nil {
		n.observer.RiskDecision(string(d.Check), outcome)
	}
	fields := []zap.Field{
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("check", string(d.Check)),
		zap.String("outcome", outcome),
		zap.Float64("requested", req.Size),
		zap.Float64("allowed", d.Allowed),
	}
	for k, v := range d.Basis {
		fields = append(fields, zap.Float64(k, v))
	}
	if outcome == "allowed" {
		n.logger.Debug("risk check", fields...)
		return
	}
	if d.Reason != "" {
		fields = append(fields, zap.String("reason", d.Reason))
	}
	n.logger.Info("risk check", fields...)
	n.sink.Append(audit.Event{
		Kind:    audit.KindRisk,
		Symbol:  req.Symbol,
		Message: fmt.Sprintf("%s %s %s %.0f: %s", d.Check, outcome, req.Side, req.Size, d.Reason),
		Basis:   d.Basis,
	})
}
