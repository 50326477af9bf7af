package bdata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"rotation-trader/order"
)

// Store 仅追加的成交账本与快照存储。
type Store interface {
	AppendFill(ctx context.Context, f Fill) error
	Fills(ctx context.Context) ([]Fill, error)
	AppendSnapshot(ctx context.Context, s Snapshot) error
	DeleteSnapshot(ctx context.Context, symbol string) error
	Snapshots(ctx context.Context) (map[string]Snapshot, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS fills (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	fill_id      TEXT    NOT NULL DEFAULT '',
	ticker       TEXT    NOT NULL,
	direction    TEXT    NOT NULL,
	price        REAL    NOT NULL,
	size         REAL    NOT NULL,
	ts           INTEGER NOT NULL,
	benchmark    REAL    NOT NULL,
	is_increase  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_ticker ON fills(ticker, ts);
CREATE TABLE IF NOT EXISTS snapshots (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker        TEXT    NOT NULL,
	date          TEXT    NOT NULL DEFAULT '',
	price         REAL    NOT NULL DEFAULT 0,
	benchmark     REAL    NOT NULL DEFAULT 0,
	size          REAL    NOT NULL DEFAULT 0,
	avg_cost      REAL    NOT NULL DEFAULT 0,
	avg_benchmark REAL    NOT NULL DEFAULT 0,
	deleted       INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);
`

// SQLiteStore 基于 modernc sqlite 的持久化；快照表同样仅追加，
// 每个标的以最新一条为准，deleted=1 表示重置。
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite 打开（或创建）数据库并迁移表结构。
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) AppendFill(ctx context.Context, f Fill) error {
	inc := 0
	if f.Increase {
		inc = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fills (fill_id, ticker, direction, price, size, ts, benchmark, is_increase)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Symbol, string(f.Side), f.Price, f.Size, f.Time.UnixNano(), f.Benchmark, inc)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Fills(ctx context.Context) ([]Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fill_id, ticker, direction, price, size, ts, benchmark, is_increase
		FROM fills ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()
	var res []Fill
	for rows.Next() {
		var (
			f   Fill
			dir string
			ts  int64
			inc int
		)
		if err := rows.Scan(&f.ID, &f.Symbol, &dir, &f.Price, &f.Size, &ts, &f.Benchmark, &inc); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.Side = order.Side(dir)
		f.Time = time.Unix(0, ts)
		f.Increase = inc == 1
		res = append(res, f)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (ticker, date, price, benchmark, size, avg_cost, avg_benchmark, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		snap.Symbol, snap.Date, snap.Price, snap.Benchmark, snap.Size, snap.AvgCost, snap.AvgBenchmark, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (ticker, deleted, created_at) VALUES (?, 1, ?)`,
		symbol, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("reset snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Snapshots(ctx context.Context) (map[string]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, date, price, benchmark, size, avg_cost, avg_benchmark, deleted
		FROM snapshots ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	res := make(map[string]Snapshot)
	for rows.Next() {
		var (
			snap    Snapshot
			deleted int
		)
		if err := rows.Scan(&snap.Symbol, &snap.Date, &snap.Price, &snap.Benchmark, &snap.Size, &snap.AvgCost, &snap.AvgBenchmark, &deleted); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if deleted == 1 {
			delete(res, snap.Symbol)
			continue
		}
		res[snap.Symbol] = snap
	}
	return res, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore 内存实现，用于测试与演示。
type MemoryStore struct {
	mu    sync.Mutex
	fills []Fill
	snaps map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

func (m *MemoryStore) AppendFill(_ context.Context, f Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, f)
	return nil
}

func (m *MemoryStore) Fills(context.Context) ([]Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Fill(nil), m.fills...), nil
}

func (m *MemoryStore) AppendSnapshot(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.Symbol] = s
	return nil
}

func (m *MemoryStore) DeleteSnapshot(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, symbol)
	return nil
}

func (m *MemoryStore) Snapshots(context.Context) (map[string]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make(map[string]Snapshot, len(m.snaps))
	for k, v := range m.snaps {
		res[k] = v
	}
	return res, nil
}

func (m *MemoryStore) Close() error { return nil }
