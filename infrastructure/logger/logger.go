package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 封装zap日志器，提供结构化日志功能
type Logger struct {
	*zap.Logger
	config Config
	files  []*lumberjack.Logger
}

// Config 日志配置
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // 日志文件路径
	ErrorFile  string   `yaml:"error_file"`  // 错误日志单独文件
	Format     string   `yaml:"format"`      // json 或 console
	MaxSize    int      `yaml:"max_size"`    // 单个日志文件最大MB
	MaxBackups int      `yaml:"max_backups"` // 保留的旧日志文件数
	MaxAge     int      `yaml:"max_age"`     // 保留天数
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Outputs:    []string{"stdout"},
		Format:     "json",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	l := &Logger{config: cfg}
	cores := []zapcore.Core{}

	// 标准输出
	if contains(cfg.Outputs, "stdout") {
		var encoder zapcore.Encoder
		if cfg.Format == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	// 文件输出（按大小滚动）
	fileEncoderConfig := zap.NewProductionEncoderConfig()
	fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		w := l.rolling(cfg.OutputFile)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.AddSync(w), level))
	}

	// 错误日志单独文件
	if cfg.ErrorFile != "" {
		w := l.rolling(cfg.ErrorFile)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.AddSync(w), zapcore.ErrorLevel))
	}

	core := zapcore.NewTee(cores...)
	l.Logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

// Wrap 包装已有 zap.Logger（测试用）。
func Wrap(z *zap.Logger) *Logger {
	return &Logger{Logger: z}
}

func (l *Logger) rolling(path string) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    l.config.MaxSize,
		MaxBackups: l.config.MaxBackups,
		MaxAge:     l.config.MaxAge,
		LocalTime:  true,
	}
	l.files = append(l.files, w)
	return w
}

// LogOrder 记录订单相关事件
func (l *Logger) LogOrder(event string, orderID string, fields map[string]interface{}) {
	l.Info("order_event", l.fields(fields, "event", event, "order_id", orderID)...)
}

// LogFill 记录成交事件
func (l *Logger) LogFill(event string, fields map[string]interface{}) {
	l.Info("fill_event", l.fields(fields, "event", event)...)
}

// LogRisk 记录风控事件
func (l *Logger) LogRisk(event string, fields map[string]interface{}) {
	l.Warn("risk_event", l.fields(fields, "event", event)...)
}

// LogError 记录错误并附带上下文
func (l *Logger) LogError(err error, context map[string]interface{}) {
	l.Error("error_event", l.fields(context, "error", err.Error())...)
}

func (l *Logger) fields(extra map[string]interface{}, kv ...string) []zap.Field {
	out := make([]zap.Field, 0, len(extra)+len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, zap.String(kv[i], kv[i+1]))
	}
	out = append(out, zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)))
	for k, v := range extra {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Close 刷新并关闭滚动文件
func (l *Logger) Close() error {
	_ = l.Sync()
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
