package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotReloaderReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exclusions.txt")
	require.NoError(t, os.WriteFile(path, []byte("ABC\n"), 0o644))

	r, err := NewHotReloader(HotReloadConfig{Enabled: true}, nil)
	require.NoError(t, err)
	defer r.Stop()

	var calls atomic.Int32
	require.NoError(t, r.Watch(path, func(string) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, r.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("ABC\nDEF\n"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.False(t, r.GetLastReloadTime(path).IsZero())
}

func TestHotReloaderIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.csv")
	require.NoError(t, os.WriteFile(path, []byte("ABC,1\n"), 0o644))

	r, err := NewHotReloader(HotReloadConfig{Enabled: true}, nil)
	require.NoError(t, err)
	defer r.Stop()

	var calls atomic.Int32
	require.NoError(t, r.Watch(path, func(string) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestHotReloaderManualReload(t *testing.T) {
	r, err := NewHotReloader(HotReloadConfig{Enabled: false}, nil)
	require.NoError(t, err)
	defer r.Stop()

	path := filepath.Join(t.TempDir(), "list.txt")
	var got string
	require.NoError(t, r.Watch(path, func(p string) error {
		got = p
		return nil
	}))
	require.NoError(t, r.Reload(path))
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, got)
	assert.Error(t, r.Reload(filepath.Join(t.TempDir(), "unknown")))
	assert.NoError(t, r.Watch("", nil))
}
