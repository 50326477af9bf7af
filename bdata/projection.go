package bdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var projectionHeader = []string{
	"ticker", "direction", "price", "size", "time", "benchmark_at_fill", "is_position_increase",
	"snapshot_price", "snapshot_benchmark", "snapshot_avg_cost", "snapshot_avg_benchmark",
}

// writeProjectionLocked 重写 CSV 投影（先写临时文件再 rename）。
// 失败只记日志，不影响账本。
func (t *Tracker) writeProjectionLocked() {
	if t.projection == "" {
		return
	}
	if err := t.writeProjection(t.projection); err != nil {
		t.logger.Warn("write csv projection failed", zap.String("path", t.projection), zap.Error(err))
	}
}

func (t *Tracker) writeProjection(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(projectionHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, f := range t.fills {
		rec := []string{
			f.Symbol,
			string(f.Side),
			ff(f.Price),
			ff(f.Size),
			f.Time.Format(time.RFC3339),
			ff(f.Benchmark),
			strconv.FormatBool(f.Increase),
			"", "", "", "",
		}
		if s, ok := t.snapshots[f.Symbol]; ok {
			rec[7], rec[8], rec[9], rec[10] = ff(s.Price), ff(s.Benchmark), ff(s.AvgCost), ff(s.AvgBenchmark)
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
