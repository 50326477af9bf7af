package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rotation-trader/bdata"
	"rotation-trader/config"
	"rotation-trader/gateway"
	"rotation-trader/infrastructure/alert"
	"rotation-trader/infrastructure/logger"
	"rotation-trader/infrastructure/monitor"
	"rotation-trader/internal/api"
	"rotation-trader/internal/audit"
	hotreload "rotation-trader/internal/config"
	"rotation-trader/internal/engine"
	"rotation-trader/internal/scheduler"
	"rotation-trader/internal/statestore"
	"rotation-trader/inventory"
	"rotation-trader/market"
	"rotation-trader/order"
	"rotation-trader/reverse"
	"rotation-trader/risk"
	"rotation-trader/selection"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	quotesPath := flag.String("quotes", "data/quotes.csv", "paper 模式的行情文件（symbol,bid,ask,last,volume）")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	if err := run(cfg, *quotesPath, lg); err != nil {
		lg.Error("rotator exited with error", zap.Error(err))
		_ = lg.Sync()
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, quotesPath string, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	zl := lg.Logger

	for _, path := range []string{cfg.Files.LedgerDB, cfg.Files.AuditLog, cfg.Files.Exclusions, quotesPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
	}

	reasoning := audit.NewFileLog(audit.FileOptions{
		Path:       cfg.Files.AuditLog,
		MaxSizeMB:  50,
		MaxBackups: 10,
		MaxAgeDays: 30,
	})
	defer reasoning.Close()

	mon := monitor.New(monitor.DefaultConfig())
	alerts := alert.NewManager([]alert.Channel{alert.NewLogChannel("log", zl)}, cfg.Alert.Throttle())

	state, err := statestore.Open(statestore.Options{Path: cfg.Files.StateDir})
	if err != nil {
		return err
	}
	defer state.Close()
	if n, err := state.PruneBefore(risk.DateKey(time.Now())); err != nil {
		zl.Warn("prune daily counters failed", zap.Error(err))
	} else if n > 0 {
		zl.Info("stale daily counters pruned", zap.Int("keys", n))
	}
	counters := risk.NewDailyCounters(state, risk.NowLocal, zl)

	paper := gateway.NewPaper()
	var broker gateway.Broker = paper
	if cfg.Gateway.RateLimit > 0 {
		broker = gateway.NewLimited(broker, cfg.Gateway.RateLimit, cfg.Gateway.Burst)
	}
	broker = &gateway.Instrumented{Broker: broker, Observer: mon}

	orders := order.NewManager(broker, zl)
	inv := inventory.NewTracker()

	store, err := bdata.OpenSQLite(cfg.Files.LedgerDB)
	if err != nil {
		return err
	}
	defer store.Close()
	bd, err := bdata.NewTracker(ctx, store, bdata.Options{
		Positions:  inv,
		Projection: cfg.Files.Projection,
		Logger:     zl,
		Sink:       reasoning,
	})
	if err != nil {
		return err
	}

	re := risk.NewEngine(risk.Limits{
		DailyVolumeCap:   cfg.Risk.DailyVolumeCap,
		DriftWindow:      cfg.Risk.DriftWindow,
		LiquidityFloor:   cfg.Risk.LiquidityFloor,
		LiquidityDivisor: cfg.Risk.LiquidityDivisor,
		CompanyPeerDiv:   cfg.Risk.CompanyPeerDiv,
		CompanyMaxOrders: cfg.Risk.CompanyMaxOrders,
	}, inv, orders.Book(), counters, risk.NewNotifier(zl, reasoning, mon))

	pub := market.NewPublisher()
	quoteFeed := pub.SubscribeQuote(256)
	quotes := market.NewService(pub)
	excl := selection.NewExclusions()
	sel := selection.NewSelector(selection.Config{
		PoolFactor:     cfg.Selection.PoolFactor,
		ConflictBand:   cfg.Selection.ConflictBand,
		FrontRatio:     cfg.Selection.FrontRatio,
		FrontMinSpread: cfg.Selection.FrontMinSpread,
		Tick:           market.DefaultTick,
	}, quotes, inv, orders.Book(), re, excl, zl, reasoning)
	gen := reverse.NewGenerator(reverse.Config{
		Trigger:      cfg.Reverse.Trigger,
		DailyCap:     cfg.Reverse.DailyCap,
		MinProfit:    cfg.Reverse.MinProfit,
		DepthRange:   cfg.Reverse.DepthRange,
		PassiveRatio: cfg.Reverse.PassiveRatio,
		MinPrice:     cfg.Reverse.MinPrice,
		Tick:         market.DefaultTick,
	}, counters, quotes, orders, zl, reasoning)

	var (
		presenter engine.Presenter
		auto      *engine.AutoPresenter
		web       *api.WebPresenter
	)
	if cfg.Engine.AutoConfirm {
		auto = engine.NewAutoPresenter()
		presenter = auto
	} else {
		web = api.NewWebPresenter()
		presenter = web
	}

	sched := scheduler.NewReal()
	defer sched.Stop()

	eng, err := engine.New(engine.Config{
		Table:           engine.DefaultTable(cfg.Engine.PhaseSize, cfg.Engine.LotSize),
		FillPoll:        cfg.Engine.FillPoll(),
		RestartDelay:    cfg.Engine.RestartDelay(),
		CallTimeout:     cfg.Engine.CallTimeout(),
		BenchmarkSymbol: cfg.Engine.Benchmark,
	}, engine.Components{
		Broker:     broker,
		Orders:     orders,
		Reconciler: order.NewReconciler(broker, orders, zl),
		Quotes:     quotes,
		Risk:       re,
		Selector:   sel,
		Reverse:    gen,
		BData:      bd,
		Inventory:  inv,
		Baseline:   inventory.FileBaseline{Path: cfg.Files.Baseline},
		Scores:     selection.CSVSource{Path: cfg.Files.Scores},
		Presenter:  presenter,
		Scheduler:  sched,
		Metrics:    mon,
		Alerts:     alerts,
		Audit:      reasoning,
		Logger:     lg,
	})
	if err != nil {
		return err
	}
	if auto != nil {
		auto.Bind(eng)
	}
	paper.SetFillCallback(eng.OnFill)

	reloader, err := hotreload.NewHotReloader(hotreload.DefaultHotReloadConfig(), zl)
	if err != nil {
		return err
	}
	watch := map[string]hotreload.ReloadFunc{
		cfg.Files.Exclusions: func(path string) error {
			if err := excl.LoadFile(path); err != nil {
				return err
			}
			zl.Info("exclusions reloaded", zap.Int("symbols", len(excl.List())))
			return nil
		},
		quotesPath: func(path string) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := paper.LoadQuotes(f)
			zl.Info("paper quotes loaded", zap.Int("quotes", n))
			return err
		},
	}
	for path, fn := range watch {
		if err := reloader.Watch(path, fn); err != nil {
			return err
		}
		if err := reloader.Reload(path); err != nil && path != "" {
			if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			zl.Warn("list file missing, continuing without it", zap.String("path", path))
		}
	}
	if err := reloader.Start(ctx); err != nil {
		return err
	}
	defer reloader.Stop()

	srv, err := api.New(api.Config{Addr: cfg.API.Addr}, eng, api.Options{
		Presenter:  web,
		Audit:      reasoning,
		Exclusions: excl,
		Metrics:    mon.Handler(),
		Logger:     zl,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(3)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case q := <-quoteFeed:
				mon.RecordQuote(q.Symbol, q.Mid())
			}
		}
	}()
	go func() {
		defer wg.Done()
		if err := eng.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			errCh <- err
			stop()
		}
	}()

	zl.Info("rotator started",
		zap.String("env", cfg.Env),
		zap.Bool("auto_confirm", cfg.Engine.AutoConfirm),
		zap.String("api", cfg.API.Addr))
	if cfg.Engine.AutoStart {
		eng.Start()
	}

	<-ctx.Done()
	eng.Stop()
	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return err
	}
	zl.Info("rotator stopped")
	return nil
}
