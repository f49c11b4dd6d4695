package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestStdLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelInfo).With("orchestrator")
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "Cycle done", map[string]interface{}{"zeta": 1, "alpha": "x"})
	l.Error(ctx, errors.New("boom"), "Cycle failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "[INFO] orchestrator: Cycle done | alpha=x zeta=1"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "[ERROR] orchestrator: Cycle failed | error: boom"), lines[1])
}

func TestStdLogger_MergesFieldMaps(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelDebug)

	l.Warn(context.Background(), "merged", map[string]interface{}{"a": 1, "b": 2}, map[string]interface{}{"b": 3})

	assert.Contains(t, buf.String(), "[WARN] merged | a=1 b=3")
}

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core)).With("executor")
	ctx := context.Background()

	l.Info(ctx, "Order filled", map[string]interface{}{"ticket": int64(7), "symbol": "EURUSD"})
	l.Error(ctx, errors.New("rejected"), "Order failed")

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "Order filled", entries[0].Message)
	assert.Equal(t, "executor", first["component"])
	assert.Equal(t, int64(7), first["ticket"])
	assert.Equal(t, "EURUSD", first["symbol"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "rejected", entries[1].ContextMap()["error"])
}

func TestNewZapLogger_WritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	l, err := NewZapLogger(ZapConfig{Level: "warn", LogDir: dir, Now: func() time.Time { return day }})
	require.NoError(t, err)

	l.Info(context.Background(), "below threshold")
	l.Warn(context.Background(), "Terminal session lost", map[string]interface{}{"attempts": 3})
	_ = l.Sync()

	path := LogFilePath(dir, day)
	assert.Equal(t, filepath.Join(dir, "live_bot_20240304.log"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below threshold")
	assert.Contains(t, string(data), `"msg":"Terminal session lost"`)
	assert.Contains(t, string(data), `"attempts":3`)
}
