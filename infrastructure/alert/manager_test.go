package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendAlert(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 5*time.Minute)

	require.NoError(t, mgr.SendAlert(Alert{
		Level:   LevelInfo,
		Message: "test message",
		Fields:  map[string]interface{}{"key": "value"},
	}))
	require.Equal(t, 1, mock.Count())
	got := mock.GetAlerts()[0]
	assert.Equal(t, LevelInfo, got.Level)
	assert.Equal(t, "value", got.Fields["key"])
	assert.False(t, got.Timestamp.IsZero())
}

func TestSendAlertLevels(t *testing.T) {
	tests := []struct {
		name    string
		sendFn  func(*Manager) error
		wantLvl string
	}{
		{"SendInfo", func(m *Manager) error { return m.SendInfo("info msg", nil) }, LevelInfo},
		{"SendWarning", func(m *Manager) error { return m.SendWarning("warning msg", nil) }, LevelWarning},
		{"SendCritical", func(m *Manager) error { return m.SendCritical("critical msg", nil) }, LevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockChannel("mock")
			mgr := NewManager([]Channel{mock}, time.Minute)
			require.NoError(t, tt.sendFn(mgr))
			require.Equal(t, 1, mock.Count())
			assert.Equal(t, tt.wantLvl, mock.GetAlerts()[0].Level)
		})
	}
}

func TestThrottlePerSymbol(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	require.NoError(t, mgr.ReconciliationConflict("XYZ", 100, 300))
	require.NoError(t, mgr.ReconciliationConflict("XYZ", 100, 300))
	require.NoError(t, mgr.ReconciliationConflict("ABC", 0, 50))
	assert.Equal(t, 2, mock.Count())
	assert.Equal(t, "ABC", mock.GetAlerts()[1].Fields["symbol"])
}

func TestThrottlerInterval(t *testing.T) {
	th := NewThrottler(time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow("k"))
	assert.False(t, th.Allow("k"))
	assert.True(t, th.Allow("other"))
	now = now.Add(time.Minute)
	assert.True(t, th.Allow("k"))
}

func TestAllChannelsFail(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	mgr := NewManager([]Channel{bad}, time.Minute)
	assert.Error(t, mgr.GatewayDisconnected("PHASE_3", errors.New("eof")))

	good := NewMockChannel("good")
	mgr = NewManager([]Channel{bad, good}, time.Minute)
	assert.NoError(t, mgr.GatewayDisconnected("PHASE_3", errors.New("eof")), "one healthy channel is enough")
	assert.Equal(t, 1, good.Count())
}

func TestLogChannelLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mgr := NewManager([]Channel{NewLogChannel("log", zap.New(core))}, time.Minute)

	require.NoError(t, mgr.GatewayDisconnected("PHASE_1", errors.New("eof")))
	require.NoError(t, mgr.ReconciliationConflict("XYZ", 1, 2))
	require.NoError(t, mgr.GatewayReconnected())

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "PHASE_1", entries[0].ContextMap()["phase"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "XYZ", entries[1].ContextMap()["symbol"])
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
}
