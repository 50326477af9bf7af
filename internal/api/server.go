// Package api 提供轮动引擎的 HTTP 控制面：启停、状态、审计日志与
// 网页端候选确认。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rotation-trader/internal/audit"
	"rotation-trader/internal/engine"
	"rotation-trader/selection"
)

// Controller 控制面需要的引擎操作（由 *engine.Engine 实现）。
type Controller interface {
	engine.Callbacks
	Start()
	Stop()
	StartCycle()
	Advance()
	FinishCycle()
	SetSelectedTickers(tickers []string)
	State() engine.ChainState
	ChainStateTitle() string
	GetStatistics() engine.Statistics
}

// AuditReader 最近审计事件。
type AuditReader interface {
	Recent(n int) []audit.Event
}

// Config 控制面配置
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server HTTP 控制面。
type Server struct {
	cfg        Config
	ctl        Controller
	presenter  *WebPresenter
	audit      AuditReader
	exclusions *selection.Exclusions
	metrics    http.Handler
	logger     *zap.Logger
}

// Options 可选依赖；Presenter 为空时窗口相关接口返回 404。
type Options struct {
	Presenter  *WebPresenter
	Audit      AuditReader
	Exclusions *selection.Exclusions
	Metrics    http.Handler
	Logger     *zap.Logger
}

func New(cfg Config, ctl Controller, opts Options) (*Server, error) {
	if ctl == nil {
		return nil, errors.New("controller is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		ctl:        ctl,
		presenter:  opts.Presenter,
		audit:      opts.Audit,
		exclusions: opts.Exclusions,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}, nil
}

// Router 构建 gin 路由。
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/start", s.command("start", s.ctl.Start))
	api.POST("/stop", s.command("stop", s.ctl.Stop))
	api.POST("/cycle", s.command("start_cycle", s.ctl.StartCycle))
	api.POST("/advance", s.command("advance", s.ctl.Advance))
	api.POST("/finish", s.command("finish_cycle", s.ctl.FinishCycle))
	api.GET("/audit", s.handleAudit)
	api.GET("/exclusions", s.handleExclusions)

	win := api.Group("/window")
	win.GET("", s.handleWindow)
	win.POST("/:handle/opened", s.windowAction(func(h engine.Handle, _ []string) { s.ctl.OnWindowOpened(h) }))
	win.POST("/:handle/ready", s.windowAction(func(h engine.Handle, _ []string) { s.ctl.OnDataReady(h) }))
	win.POST("/:handle/select", s.windowAction(func(_ engine.Handle, t []string) { s.ctl.SetSelectedTickers(t) }))
	win.POST("/:handle/confirm", s.windowAction(s.ctl.ConfirmOrders))
	return r
}

// Run 监听直到 ctx 结束，然后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control api listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("control api stopped")
	return nil
}

type stateResponse struct {
	Phase        string            `json:"phase"`
	Title        string            `json:"title"`
	Cycle        int               `json:"cycle"`
	Waiting      bool              `json:"waiting_for_approval"`
	Active       bool              `json:"active"`
	Disconnected bool              `json:"disconnected"`
	Stats        engine.Statistics `json:"stats"`
}

func (s *Server) handleState(c *gin.Context) {
	st := s.ctl.State()
	c.JSON(http.StatusOK, stateResponse{
		Phase:        st.Phase.String(),
		Title:        s.ctl.ChainStateTitle(),
		Cycle:        st.Cycle,
		Waiting:      st.Waiting,
		Active:       st.Active,
		Disconnected: st.Disconnected,
		Stats:        s.ctl.GetStatistics(),
	})
}

func (s *Server) command(name string, fn func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		fn()
		s.logger.Info("control command accepted", zap.String("command", name), zap.String("remote", c.ClientIP()))
		c.JSON(http.StatusAccepted, gin.H{"accepted": name})
	}
}

func (s *Server) handleAudit(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusOK, gin.H{"events": []string{}})
		return
	}
	n := 100
	if v := c.Query("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}
	events := s.audit.Recent(n)
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.String())
	}
	c.JSON(http.StatusOK, gin.H{"events": lines})
}

func (s *Server) handleExclusions(c *gin.Context) {
	list := []string{}
	if s.exclusions != nil {
		list = s.exclusions.List()
	}
	c.JSON(http.StatusOK, gin.H{"exclusions": list})
}

func (s *Server) handleWindow(c *gin.Context) {
	if s.presenter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNoWindow.Error()})
		return
	}
	w, ok := s.presenter.Current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNoWindow.Error()})
		return
	}
	c.JSON(http.StatusOK, w)
}

type tickersRequest struct {
	Tickers []string `json:"tickers"`
}

func (s *Server) windowAction(fn func(h engine.Handle, tickers []string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.presenter == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrNoWindow.Error()})
			return
		}
		h := engine.Handle(c.Param("handle"))
		if err := s.presenter.check(h); err != nil {
			status := http.StatusConflict
			if errors.Is(err, ErrNoWindow) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		var req tickersRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		fn(h, req.Tickers)
		c.JSON(http.StatusAccepted, gin.H{"handle": h})
	}
}
