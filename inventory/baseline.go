package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// BaselineLoader 提供只读的日初基准仓位。
type BaselineLoader interface {
	LoadBaseline() (map[string]float64, error)
}

// ErrNoBaseline 基准文件不存在；调用方应回退到当前持仓。
var ErrNoBaseline = errors.New("baseline not available")

// FileBaseline 从 "symbol,quantity" 文件读取基准，# 开头为注释。
type FileBaseline struct {
	Path string
}

func (f FileBaseline) LoadBaseline() (map[string]float64, error) {
	if f.Path == "" {
		return nil, ErrNoBaseline
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoBaseline, f.Path)
		}
		return nil, fmt.Errorf("open baseline: %w", err)
	}
	defer fh.Close()
	return ParseBaseline(fh)
}

// ParseBaseline 解析基准内容；无法解析的行被忽略。
func ParseBaseline(r io.Reader) (map[string]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	out := make(map[string]float64)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse baseline: %w", err)
		}
		if len(rec) < 2 {
			continue
		}
		sym := strings.TrimSpace(rec[0])
		qty, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if sym == "" || err != nil {
			continue
		}
		out[sym] = qty
	}
	return out, nil
}
