package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"rotation-trader/bdata"
	"rotation-trader/inventory"
	"rotation-trader/order"
)

func main() {
	dbPath := flag.String("db", "data/bdata.db", "BDATA 账本路径")
	pricesPath := flag.String("prices", "", "当前价格文件（symbol,price），留空则只输出账本")
	bench := flag.Float64("bench", 0, "当前基准价格")
	symbol := flag.String("symbol", "", "仅统计指定标的 (默认全量)")
	flag.Parse()

	store, err := bdata.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开账本失败: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	tracker, err := bdata.NewTracker(ctx, readOnly{store}, bdata.Options{
		Positions: inventory.NewTracker(),
		Logger:    zap.NewNop(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载账本失败: %v\n", err)
		os.Exit(1)
	}

	prices := map[string]float64{}
	if *pricesPath != "" {
		prices, err = readPrices(*pricesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取价格失败: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("账本: %s\n", *dbPath)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNET\tFILLS\tAVG_BUY\tAVG_SELL\tZERO_PRICE\tZERO_BENCH\tOUTPERF")
	for _, sym := range tracker.Symbols() {
		if *symbol != "" && sym != *symbol {
			continue
		}
		buy := tracker.Averages(sym, order.SideBuy)
		sell := tracker.Averages(sym, order.SideSell)
		snap, hasSnap := tracker.Snapshot(sym)
		outperf := "-"
		// 只对已有零点的标的计算，避免报表写入隐式零点
		if p, ok := prices[sym]; ok && hasSnap && *bench > 0 {
			v, err := tracker.CalculateAvgOutperformance(ctx, sym, p, *bench)
			if err == nil {
				outperf = strconv.FormatFloat(v, 'f', 4, 64)
			}
		}
		zeroPrice, zeroBench := "-", "-"
		if hasSnap {
			zeroPrice = strconv.FormatFloat(snap.Price, 'f', 2, 64)
			zeroBench = strconv.FormatFloat(snap.Benchmark, 'f', 2, 64)
		}
		fmt.Fprintf(w, "%s\t%.0f\t%d\t%.4f\t%.4f\t%s\t%s\t%s\n",
			sym, tracker.LedgerNet(sym), len(tracker.Fills(sym)),
			buy.AvgCost, sell.AvgCost, zeroPrice, zeroBench, outperf)
	}
	_ = w.Flush()
}

func readPrices(path string) (map[string]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res := make(map[string]float64)
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || p <= 0 {
			continue
		}
		res[strings.TrimSpace(parts[0])] = p
	}
	return res, nil
}

// readOnly 报表不修改账本。
type readOnly struct {
	bdata.Store
}

func (readOnly) AppendFill(context.Context, bdata.Fill) error { return nil }

func (readOnly) AppendSnapshot(context.Context, bdata.Snapshot) error { return nil }

func (readOnly) DeleteSnapshot(context.Context, string) error { return nil }
