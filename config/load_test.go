package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeTempConfig(t, `
env: prod
engine:
  phaseSize: 3
  benchmark: QQQ
files:
  scores: /var/rt/scores.csv
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, 3, cfg.Engine.PhaseSize)
	assert.Equal(t, "QQQ", cfg.Engine.Benchmark)
	assert.Equal(t, 100.0, cfg.Engine.LotSize)
	assert.Equal(t, 600.0, cfg.Risk.DailyVolumeCap)
	assert.Equal(t, 0.05, cfg.Reverse.MinProfit)
	assert.Equal(t, "/var/rt/scores.csv", cfg.Files.Scores)
	assert.Equal(t, "data/bdata.db", cfg.Files.LedgerDB)
	assert.Equal(t, 60*time.Second, cfg.Engine.FillPoll())
	assert.Equal(t, 180*time.Second, cfg.Engine.RestartDelay())
	assert.Equal(t, 5*time.Minute, cfg.Alert.Throttle())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeTempConfig(t, `
env: dev
reverse:
  minProfit: 0.2
  depthRange: 0.1
`)
	_, err := Load(path)
	require.Error(t, err)
	var inv ErrInvalid
	assert.True(t, errors.As(err, &inv))
	assert.Contains(t, err.Error(), "reverse.depthRange")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
env: dev
api:
  addr: ":9000"
`)
	chdir(t, t.TempDir())
	t.Setenv("RT_API_ADDR", "127.0.0.1:7000")
	t.Setenv("RT_SCORES_FILE", "/tmp/scores.csv")
	t.Setenv("RT_AUTO_CONFIRM", "true")

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.API.Addr)
	assert.Equal(t, "/tmp/scores.csv", cfg.Files.Scores)
	assert.True(t, cfg.Engine.AutoConfirm)
}

func TestLoadWithDotEnv(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RT_BENCHMARK=IWM\n"), 0o644))
	chdir(t, dir)
	t.Setenv("RT_BENCHMARK", "")
	require.NoError(t, os.Unsetenv("RT_BENCHMARK"))

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "IWM", cfg.Engine.Benchmark)
}

func TestLoadWithEnvOverridesBadBool(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	chdir(t, t.TempDir())
	t.Setenv("RT_AUTO_CONFIRM", "maybe")
	_, err := LoadWithEnvOverrides(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Default()))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"empty env", func(c *AppConfig) { c.Env = "" }},
		{"zero phase size", func(c *AppConfig) { c.Engine.PhaseSize = 0 }},
		{"fractional lot", func(c *AppConfig) { c.Engine.LotSize = 0.5 }},
		{"zero drift window", func(c *AppConfig) { c.Risk.DriftWindow = 0 }},
		{"no company orders", func(c *AppConfig) { c.Risk.CompanyMaxOrders = 0 }},
		{"passive ratio", func(c *AppConfig) { c.Reverse.PassiveRatio = 1 }},
		{"unsupported gateway", func(c *AppConfig) { c.Gateway.Mode = "fix" }},
		{"no scores", func(c *AppConfig) { c.Files.Scores = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
