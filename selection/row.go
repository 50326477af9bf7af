// Package selection 按阶段对评分列表排序、过滤并校验候选标的。
package selection

import (
	"math"
	"strconv"
	"strings"
)

// Row 评分列表中的一行：标的及各列分数。
type Row struct {
	Symbol string
	Scores map[string]float64
}

// Score 返回某列分数；缺失或无法解析时 ok=false。
func (r Row) Score(column string) (float64, bool) {
	v, ok := r.Scores[column]
	return v, ok
}

// ParseRow 按表头解析一行。标的为空或没有任何可解析分数时返回 false；
// 单列无法解析时该列缺失，不影响其它列。
func ParseRow(header, record []string) (Row, bool) {
	symCol := symbolColumn(header)
	if symCol < 0 || symCol >= len(record) {
		return Row{}, false
	}
	sym := strings.TrimSpace(record[symCol])
	if sym == "" {
		return Row{}, false
	}
	row := Row{Symbol: sym, Scores: make(map[string]float64)}
	for i, col := range header {
		if i == symCol || i >= len(record) {
			continue
		}
		v, ok := parseScore(record[i])
		if !ok {
			continue
		}
		row.Scores[normalizeColumn(col)] = v
	}
	if len(row.Scores) == 0 {
		return Row{}, false
	}
	return row, true
}

func parseScore(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func symbolColumn(header []string) int {
	for i, h := range header {
		switch normalizeColumn(h) {
		case "symbol", "ticker":
			return i
		}
	}
	if len(header) > 0 {
		return 0
	}
	return -1
}

func normalizeColumn(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
