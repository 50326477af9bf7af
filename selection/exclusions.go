package selection

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Exclusions 永久排除名单，可在运行中整体替换（热加载）。
type Exclusions struct {
	mu  sync.RWMutex
	set map[string]bool
}

func NewExclusions(symbols ...string) *Exclusions {
	e := &Exclusions{}
	e.Replace(symbols)
	return e
}

// Contains 是否被排除。
func (e *Exclusions) Contains(symbol string) bool {
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set[symbol]
}

// Replace 用新名单整体替换。
func (e *Exclusions) Replace(symbols []string) {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = true
		}
	}
	e.mu.Lock()
	e.set = set
	e.mu.Unlock()
}

// List 返回排序后的名单。
func (e *Exclusions) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	res := make([]string, 0, len(e.set))
	for s := range e.set {
		res = append(res, s)
	}
	sort.Strings(res)
	return res
}

// LoadFile 从文件重新加载名单。
func (e *Exclusions) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open exclusions: %w", err)
	}
	defer f.Close()
	symbols, err := ReadExclusions(f)
	if err != nil {
		return err
	}
	e.Replace(symbols)
	return nil
}

// ReadExclusions 每行一个标的，# 开头为注释；逗号后的内容忽略。
func ReadExclusions(r io.Reader) ([]string, error) {
	var res []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, ","); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line != "" {
			res = append(res, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read exclusions: %w", err)
	}
	return res, nil
}
