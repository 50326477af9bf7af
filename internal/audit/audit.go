// Package audit 提供人类可读的决策日志（reasoning log），
// 记录每一次拒绝、截断、对账与下单事件及其数值依据。
package audit

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 事件类别
const (
	KindRisk      = "RISK"
	KindOrder     = "ORDER"
	KindReverse   = "REVERSE"
	KindReconcile = "RECONCILE"
	KindPhase     = "PHASE"
	KindSweep     = "SWEEP"
	KindSelect    = "SELECT"
)

// Event 一条审计事件。
type Event struct {
	Time    time.Time
	Kind    string
	Symbol  string
	Message string
	Basis   map[string]float64
}

// String 渲染为单行文本，Basis 按键排序。
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Time.Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(e.Kind)
	b.WriteString("]")
	if e.Symbol != "" {
		b.WriteString(" ")
		b.WriteString(e.Symbol)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	if len(e.Basis) > 0 {
		keys := make([]string, 0, len(e.Basis))
		for k := range e.Basis {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%g", k, e.Basis[k])
		}
	}
	return b.String()
}

// Sink 仅追加的审计日志接口。
type Sink interface {
	Append(e Event)
}

// Nop 丢弃所有事件。
type Nop struct{}

func (Nop) Append(Event) {}

// Log 把事件写入 writer，并在内存保留最近的若干条供查询。
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	recent []Event
	keep   int
	now    func() time.Time
}

// NewLog 基于任意 writer 创建审计日志；keep<=0 时保留 200 条。
func NewLog(w io.Writer, keep int) *Log {
	if keep <= 0 {
		keep = 200
	}
	l := &Log{w: w, keep: keep, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// FileOptions 滚动文件参数。
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewFileLog 写入按大小滚动的文件。
func NewFileLog(opts FileOptions) *Log {
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		LocalTime:  true,
	}
	return NewLog(w, 0)
}

// Append 写入一条事件；写失败时事件仍保留在内存中。
func (l *Log) Append(e Event) {
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w != nil {
		_, _ = io.WriteString(l.w, e.String()+"\n")
	}
	l.recent = append(l.recent, e)
	if len(l.recent) > l.keep {
		l.recent = l.recent[len(l.recent)-l.keep:]
	}
}

// Recent 返回最近 n 条事件（时间正序）。
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.recent) {
		n = len(l.recent)
	}
	out := make([]Event, n)
	copy(out, l.recent[len(l.recent)-n:])
	return out
}

// Close 关闭底层 writer。
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
