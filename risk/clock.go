package risk

import "time"

// Clock 抽象时间便于测试。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NowLocal 默认使用本地时间；日计数按本地日期切换。
var NowLocal Clock = realClock{}

// ClockFunc 将函数适配为 Clock。
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// DateKey 返回本地日期键（YYYY-MM-DD）。
func DateKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
