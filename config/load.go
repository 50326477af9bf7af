package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rotation-trader/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string          `yaml:"env"`
	Engine    EngineConfig    `yaml:"engine"`
	Risk      RiskConfig      `yaml:"risk"`
	Reverse   ReverseConfig   `yaml:"reverse"`
	Selection SelectionConfig `yaml:"selection"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Files     FilesConfig     `yaml:"files"`
	Log       logger.Config   `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Alert     AlertConfig     `yaml:"alert"`
}

// EngineConfig 阶段编排参数。
type EngineConfig struct {
	PhaseSize           int     `yaml:"phaseSize"`           // 每阶段最多候选数 N
	LotSize             float64 `yaml:"lotSize"`             // 每个候选的请求数量
	FillPollSeconds     int     `yaml:"fillPollSeconds"`     // 成交轮询间隔
	RestartDelaySeconds int     `yaml:"restartDelaySeconds"` // FINISHED 后重启周期的延迟
	CallTimeoutSeconds  int     `yaml:"callTimeoutSeconds"`  // 单次网关调用超时
	Benchmark           string  `yaml:"benchmark"`           // 基准标的
	AutoConfirm         bool    `yaml:"autoConfirm"`         // 无人值守：自动确认全部候选
	AutoStart           bool    `yaml:"autoStart"`           // 启动即开始轮动
}

// RiskConfig 风控常量。
type RiskConfig struct {
	DailyVolumeCap   float64 `yaml:"dailyVolumeCap"`
	DriftWindow      float64 `yaml:"driftWindow"`
	LiquidityFloor   float64 `yaml:"liquidityFloor"`
	LiquidityDivisor float64 `yaml:"liquidityDivisor"`
	CompanyPeerDiv   float64 `yaml:"companyPeerDiv"`
	CompanyMaxOrders int     `yaml:"companyMaxOrders"`
}

// ReverseConfig 反向单常量。
type ReverseConfig struct {
	Trigger      float64 `yaml:"trigger"`
	DailyCap     float64 `yaml:"dailyCap"`
	MinProfit    float64 `yaml:"minProfit"`
	DepthRange   float64 `yaml:"depthRange"`
	PassiveRatio float64 `yaml:"passiveRatio"`
	MinPrice     float64 `yaml:"minPrice"`
}

// SelectionConfig 选股常量。
type SelectionConfig struct {
	PoolFactor     int     `yaml:"poolFactor"`
	ConflictBand   float64 `yaml:"conflictBand"`
	FrontRatio     float64 `yaml:"frontRatio"`
	FrontMinSpread float64 `yaml:"frontMinSpread"`
}

// GatewayConfig 券商网关。目前只实现 paper 模式。
type GatewayConfig struct {
	Mode      string  `yaml:"mode"`
	RateLimit float64 `yaml:"rateLimit"` // 每秒请求数，0 表示不限速
	Burst     int     `yaml:"burst"`
}

// FilesConfig 每日输入与持久化文件路径。
type FilesConfig struct {
	Scores     string `yaml:"scores"`
	Exclusions string `yaml:"exclusions"`
	Baseline   string `yaml:"baseline"`
	LedgerDB   string `yaml:"ledgerDB"`
	Projection string `yaml:"projection"`
	StateDir   string `yaml:"stateDir"`
	AuditLog   string `yaml:"auditLog"`
}

// APIConfig 控制接口。
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// AlertConfig 告警节流。
type AlertConfig struct {
	ThrottleSeconds int `yaml:"throttleSeconds"`
}

// Default 返回全部默认值。
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Engine: EngineConfig{
			PhaseSize:           5,
			LotSize:             100,
			FillPollSeconds:     60,
			RestartDelaySeconds: 180,
			CallTimeoutSeconds:  10,
			Benchmark:           "SPY",
		},
		Risk: RiskConfig{
			DailyVolumeCap:   600,
			DriftWindow:      600,
			LiquidityFloor:   200,
			LiquidityDivisor: 10,
			CompanyPeerDiv:   3,
			CompanyMaxOrders: 3,
		},
		Reverse: ReverseConfig{
			Trigger:      200,
			DailyCap:     600,
			MinProfit:    0.05,
			DepthRange:   0.10,
			PassiveRatio: 0.15,
			MinPrice:     0.10,
		},
		Selection: SelectionConfig{
			PoolFactor:     3,
			ConflictBand:   0.08,
			FrontRatio:     0.35,
			FrontMinSpread: 0.06,
		},
		Gateway: GatewayConfig{Mode: "paper", RateLimit: 20, Burst: 40},
		Files: FilesConfig{
			Scores:     "data/scores.csv",
			Exclusions: "data/exclusions.txt",
			Baseline:   "data/baseline.csv",
			LedgerDB:   "data/bdata.db",
			Projection: "data/bdata.csv",
			StateDir:   "data/state",
			AuditLog:   "logs/reasoning.log",
		},
		Log:   logger.DefaultConfig(),
		API:   APIConfig{Addr: ":8080"},
		Alert: AlertConfig{ThrottleSeconds: 300},
	}
}

// FillPoll 成交轮询间隔。
func (c EngineConfig) FillPoll() time.Duration { return seconds(c.FillPollSeconds) }

func (c EngineConfig) RestartDelay() time.Duration { return seconds(c.RestartDelaySeconds) }

func (c EngineConfig) CallTimeout() time.Duration { return seconds(c.CallTimeoutSeconds) }

func (c AlertConfig) Throttle() time.Duration { return seconds(c.ThrottleSeconds) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Load reads YAML config from path on top of the defaults and validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads .env (if present) and the YAML config, then
// applies RT_* environment overrides.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) error {
	strs := map[string]*string{
		"RT_ENV":             &cfg.Env,
		"RT_API_ADDR":        &cfg.API.Addr,
		"RT_BENCHMARK":       &cfg.Engine.Benchmark,
		"RT_SCORES_FILE":     &cfg.Files.Scores,
		"RT_EXCLUSIONS_FILE": &cfg.Files.Exclusions,
		"RT_BASELINE_FILE":   &cfg.Files.Baseline,
		"RT_LEDGER_DB":       &cfg.Files.LedgerDB,
		"RT_STATE_DIR":       &cfg.Files.StateDir,
		"RT_LOG_LEVEL":       &cfg.Log.Level,
	}
	for k, dst := range strs {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("RT_AUTO_CONFIRM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RT_AUTO_CONFIRM: %w", err)
		}
		cfg.Engine.AutoConfirm = b
	}
	return nil
}
