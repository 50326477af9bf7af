// Package config 监听每日列表文件（排除名单、日初基准）的变化并重新加载。
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免编辑器多次写入触发重复加载
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: 2 * time.Second,
	}
}

// ReloadFunc 文件变化后的加载函数，参数为文件路径。
type ReloadFunc func(path string) error

type watched struct {
	handler    ReloadFunc
	lastReload time.Time
}

// HotReloader 列表文件热更新器。监听文件所在目录，
// 以兼容编辑器"写临时文件再 rename"的保存方式。
type HotReloader struct {
	config   HotReloadConfig
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	mu       sync.Mutex
	files    map[string]*watched
	dirs     map[string]bool
	stopChan chan struct{}
	doneChan chan struct{}
	started  bool
}

// NewHotReloader 创建热更新器
func NewHotReloader(cfg HotReloadConfig, logger *zap.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HotReloader{
		config:   cfg,
		watcher:  watcher,
		logger:   logger,
		files:    make(map[string]*watched),
		dirs:     make(map[string]bool),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Watch 注册文件及其加载函数；空路径忽略。
func (h *HotReloader) Watch(path string, fn ReloadFunc) error {
	if path == "" || fn == nil {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[abs] = &watched{handler: fn}
	dir := filepath.Dir(abs)
	if h.config.Enabled && !h.dirs[dir] {
		if err := h.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		h.dirs[dir] = true
	}
	return nil
}

// Reload 立即加载某个已注册文件（启动时与测试使用）。
func (h *HotReloader) Reload(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	h.mu.Lock()
	w, ok := h.files[abs]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("file not registered: %s", path)
	}
	if err := w.handler(abs); err != nil {
		return err
	}
	h.mu.Lock()
	w.lastReload = time.Now()
	h.mu.Unlock()
	return nil
}

// Start 启动热更新监听
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	go h.watch(ctx)
	return nil
}

// Stop 停止热更新
func (h *HotReloader) Stop() error {
	select {
	case <-h.stopChan:
	default:
		close(h.stopChan)
	}
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if started {
		select {
		case <-h.doneChan:
		case <-time.After(time.Second):
		}
	}
	return h.watcher.Close()
}

// watch 监听文件变化
func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				h.handleChange(event.Name)
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// handleChange 处理文件变化
func (h *HotReloader) handleChange(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	h.mu.Lock()
	w, ok := h.files[abs]
	if !ok || time.Since(w.lastReload) < h.config.CooldownTime {
		h.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	h.mu.Unlock()

	if err := w.handler(abs); err != nil {
		h.logger.Warn("reload list file failed", zap.String("path", abs), zap.Error(err))
		return
	}
	h.logger.Info("list file reloaded", zap.String("path", abs))
}

// GetLastReloadTime 获取某文件最后重载时间
func (h *HotReloader) GetLastReloadTime(path string) time.Time {
	abs, _ := filepath.Abs(path)
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.files[abs]; ok {
		return w.lastReload
	}
	return time.Time{}
}
