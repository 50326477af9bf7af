package selection

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ScoreSource 提供当日评分列表（外部输入）。
type ScoreSource interface {
	Scores(ctx context.Context) ([]Row, error)
}

// CSVSource 从带表头的 CSV 文件读取评分。
type CSVSource struct {
	Path string
}

func (s CSVSource) Scores(_ context.Context) ([]Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open score list: %w", err)
	}
	defer f.Close()
	return ReadRows(f)
}

// ReadRows 读取 CSV 内容，无效行直接跳过。
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read score header: %w", err)
	}
	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read score row: %w", err)
		}
		if row, ok := ParseRow(header, rec); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// StaticSource 固定评分列表，用于测试与演示。
type StaticSource []Row

func (s StaticSource) Scores(context.Context) ([]Row, error) {
	return append([]Row(nil), s...), nil
}

// Symbols 返回行中的全部标的。
func Symbols(rows []Row) []string {
	res := make([]string, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.Symbol)
	}
	return res
}
