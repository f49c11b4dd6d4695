package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"liveSignalBot/internal/adapters/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points LoadConfig at a file that does not exist so only the process environment counts.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Timeframe)
	assert.Equal(t, 200, cfg.BarCount)
	assert.Equal(t, 2*time.Second, cfg.CloseBuffer)
	assert.True(t, cfg.DemoOnly)
	assert.False(t, cfg.EmergencyStop)
	assert.Equal(t, 0, cfg.MaxDailyTrades)
	assert.Equal(t, 1.0, cfg.MaxPositionSizeLots)
	assert.Equal(t, 0.01, cfg.RiskPercent)
	assert.Equal(t, 2.5, cfg.CommissionPerLot)
	assert.Equal(t, 30*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 10*time.Second, cfg.ConnectionCheck)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "USDT", cfg.QuoteAsset)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("TIMEFRAME", "15m")
	t.Setenv("MAX_DAILY_TRADES", "3")
	t.Setenv("EMERGENCY_STOP", "true")
	t.Setenv("DEMO_ONLY", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("BROKER_UTC_OFFSET", "3")
	t.Setenv("BROKER_FOLLOWS_DST", "true")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")

	cfg, err := LoadConfig(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Timeframe)
	assert.Equal(t, 3, cfg.MaxDailyTrades)
	assert.True(t, cfg.EmergencyStop)
	assert.False(t, cfg.DemoOnly)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 3, cfg.BrokerUTCOffset)
	assert.True(t, cfg.BrokerFollowsDST)
	assert.Equal(t, int64(-100200), cfg.TelegramChatID)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("BAR_COUNT=300\nCOMMISSION_PER_LOT=3.5\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("BAR_COUNT")
		os.Unsetenv("COMMISSION_PER_LOT")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.BarCount)
	assert.Equal(t, 3.5, cfg.CommissionPerLot)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg []string
	}{
		{
			name:    "timeframe not whole minutes",
			env:     map[string]string{"TIMEFRAME": "90s"},
			wantMsg: []string{"TIMEFRAME must be a whole number of minutes"},
		},
		{
			name:    "unparsable timeframe",
			env:     map[string]string{"TIMEFRAME": "five"},
			wantMsg: []string{"invalid TIMEFRAME"},
		},
		{
			name:    "bad numbers collected together",
			env:     map[string]string{"BAR_COUNT": "abc", "RISK_PERCENT": "1.5", "MAX_DAILY_TRADES": "-1"},
			wantMsg: []string{"invalid BAR_COUNT", "RISK_PERCENT must be between", "MAX_DAILY_TRADES cannot be negative"},
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"LOG_FORMAT": "xml"},
			wantMsg: []string{"LOG_FORMAT must be text or json"},
		},
		{
			name:    "telegram token without chat",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"},
			wantMsg: []string{"must be set together"},
		},
		{
			name:    "chat id not numeric",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc", "TELEGRAM_CHAT_ID": "@channel"},
			wantMsg: []string{"invalid TELEGRAM_CHAT_ID"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(noEnvFile(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed")
			for _, msg := range tt.wantMsg {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}
