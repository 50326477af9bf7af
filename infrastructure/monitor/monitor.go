package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 周期与阶段
	cycles     prometheus.Counter
	phases     *prometheus.CounterVec
	candidates *prometheus.CounterVec
	chainState prometheus.Gauge

	// 风控
	riskDecisions *prometheus.CounterVec

	// 订单
	ordersSubmitted *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	ordersCanceled  *prometheus.CounterVec
	reverseVolume   prometheus.Counter

	// 成交与持仓
	fills          prometheus.Counter
	filledVolume   prometheus.Counter
	position       *prometheus.GaugeVec
	outperformance *prometheus.GaugeVec
	quoteMid       *prometheus.GaugeVec
	quoteUpdates   prometheus.Counter

	// 对账
	reconcileReplays   prometheus.Counter
	reconcileConflicts prometheus.Counter

	// 网关
	disconnects    prometheus.Counter
	brokerRequests *prometheus.CounterVec
	brokerErrors   *prometheus.CounterVec
	brokerLatency  *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "rotator",
		Subsystem: "core",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Monitor{
		registry: reg,

		cycles:     counter("cycles_total", "已启动的周期数"),
		phases:     counterVec("phases_total", "阶段执行结果(presented/skipped/failed)", "phase", "outcome"),
		candidates: counterVec("candidates_selected_total", "各阶段入选标的数", "phase"),
		chainState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "chain_state",
			Help:      "状态机位置(0=IDLE,1..14=阶段,15=FINISHED)",
		}),

		riskDecisions: counterVec("risk_decisions_total", "风控检查结论", "check", "outcome"),

		ordersSubmitted: counterVec("orders_submitted_total", "网关接受的订单数", "kind"),
		ordersRejected:  counterVec("orders_rejected_total", "网关拒绝的订单数", "kind"),
		ordersCanceled:  counterVec("orders_canceled_total", "撤单数", "kind", "reason"),
		reverseVolume:   counter("reverse_volume_total", "累计反向单股数"),

		fills:        counter("fills_total", "成交笔数"),
		filledVolume: counter("filled_volume_total", "累计成交股数"),
		position: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "position",
			Help:      "各标的净持仓",
		}, []string{"symbol"}),
		outperformance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "outperformance",
			Help:      "相对零点的超额表现",
		}, []string{"symbol"}),
		quoteMid: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quote_mid",
			Help:      "最近一次刷新的中间价",
		}, []string{"symbol"}),
		quoteUpdates: counter("quote_updates_total", "行情刷新次数"),

		reconcileReplays:   counter("reconcile_replays_total", "离线对账补录的成交数"),
		reconcileConflicts: counter("reconcile_conflicts_total", "未能解释的账实差异"),

		disconnects:    counter("gateway_disconnects_total", "网关断线次数"),
		brokerRequests: counterVec("broker_requests_total", "网关调用总数", "action"),
		brokerErrors:   counterVec("broker_errors_total", "网关调用错误数", "action"),
		brokerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "broker_latency_seconds",
			Help:      "网关调用延迟（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// 周期相关方法
func (m *Monitor) RecordCycle() {
	m.cycles.Inc()
}

func (m *Monitor) RecordPhase(phase, outcome string) {
	m.phases.WithLabelValues(phase, outcome).Inc()
}

func (m *Monitor) RecordCandidates(phase string, n int) {
	m.candidates.WithLabelValues(phase).Add(float64(n))
}

func (m *Monitor) SetChainState(state int) {
	m.chainState.Set(float64(state))
}

// RiskDecision 实现 risk.Observer。
func (m *Monitor) RiskDecision(check, outcome string) {
	m.riskDecisions.WithLabelValues(check, outcome).Inc()
}

// 订单相关方法
func (m *Monitor) RecordOrderSubmitted(kind string) {
	m.ordersSubmitted.WithLabelValues(kind).Inc()
}

func (m *Monitor) RecordOrderRejected(kind string) {
	m.ordersRejected.WithLabelValues(kind).Inc()
}

func (m *Monitor) RecordOrderCanceled(kind, reason string) {
	m.ordersCanceled.WithLabelValues(kind, reason).Inc()
}

func (m *Monitor) RecordReverse(size float64) {
	m.reverseVolume.Add(size)
}

// 成交相关方法
func (m *Monitor) RecordFill(size float64) {
	m.fills.Inc()
	m.filledVolume.Add(size)
}

func (m *Monitor) UpdatePosition(symbol string, qty float64) {
	m.position.WithLabelValues(symbol).Set(qty)
}

func (m *Monitor) UpdateOutperformance(symbol string, value float64) {
	m.outperformance.WithLabelValues(symbol).Set(value)
}

// 对账相关方法
// RecordQuote 记录一次行情刷新。
func (m *Monitor) RecordQuote(symbol string, mid float64) {
	m.quoteUpdates.Inc()
	if mid > 0 {
		m.quoteMid.WithLabelValues(symbol).Set(mid)
	}
}

func (m *Monitor) RecordReconcile(replayed, conflicts int) {
	m.reconcileReplays.Add(float64(replayed))
	m.reconcileConflicts.Add(float64(conflicts))
}

// 网关相关方法
func (m *Monitor) RecordDisconnect() {
	m.disconnects.Inc()
}

// BrokerCall 实现 gateway.CallObserver。
func (m *Monitor) BrokerCall(action string, seconds float64, err error) {
	m.brokerRequests.WithLabelValues(action).Inc()
	m.brokerLatency.WithLabelValues(action).Observe(seconds)
	if err != nil {
		m.brokerErrors.WithLabelValues(action).Inc()
	}
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
