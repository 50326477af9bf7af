// Package statestore 用 Badger 持久化日计数器，使进程在同一交易日内重启后
// 仍能恢复日成交量、公司台账与反向单额度。
package statestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

const counterPrefix = "counters/"

// Options 打开参数；InMemory 用于测试。
type Options struct {
	Path     string
	InMemory bool
}

// Store Badger 键值存储。
type Store struct {
	db *badger.DB
}

// Open 打开存储。
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case strings.TrimSpace(opts.Path) != "":
		bopts = badger.DefaultOptions(opts.Path)
	default:
		return nil, errors.New("statestore: path is required")
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("statestore: open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func counterKey(date, key string) []byte {
	return []byte(counterPrefix + date + "/" + key)
}

func encode(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func decode(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("statestore: bad value length %d", len(b))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// SaveCounter 写入某日某计数的当前值。
func (s *Store) SaveCounter(date, key string, value float64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(counterKey(date, key), encode(value))
	})
}

// LoadCounters 读取某日全部计数。
func (s *Store) LoadCounters(date string) (map[string]float64, error) {
	out := make(map[string]float64)
	prefix := []byte(counterPrefix + date + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), string(prefix))
			err := item.Value(func(val []byte) error {
				v, err := decode(val)
				if err != nil {
					return err
				}
				out[key] = v
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PruneBefore 删除早于 date（YYYY-MM-DD，字典序可比）的计数，返回删除条数。
func (s *Store) PruneBefore(date string) (int, error) {
	var keys [][]byte
	prefix := []byte(counterPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			rest := strings.TrimPrefix(string(k), counterPrefix)
			if d, _, ok := strings.Cut(rest, "/"); ok && d < date {
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}
