package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"liveSignalBot/internal/adapters/logger" // Import the logger package for LogLevel

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Files
	StrategiesPath  string
	CredentialsPath string
	DBPath          string
	EventsDir       string

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // "text" or "json"
	LogDir    string

	// Market data
	Timeframe        time.Duration
	BarCount         int
	CloseBuffer      time.Duration // Wait after the bar boundary before fetching
	QuoteAsset       string
	BrokerUTCOffset  int // Hours; ignored when BrokerFollowsDST is set
	BrokerFollowsDST bool

	// Safety
	DemoOnly            bool
	MaxDailyTrades      int     // Per configuration, 0 for unlimited
	EmergencyStop       bool    // Report signals without sending orders
	MaxPositionSizeLots float64 // 0 for no cap
	RiskPercent         float64 // e.g., 0.01 for 1% of equity per trade
	MaxSlippagePoints   int
	CommissionPerLot    float64

	// Connection Settings
	ReconnectDelay       time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
	StartupAttempts      int
	ConnectionCheck      time.Duration
	MaxConsecutiveErrors int
	HeartbeatCycles      int

	// Notifications
	TelegramToken  string
	TelegramChatID int64
}

// LoadConfig loads configuration from environment variables, reading the given .env files
// first (".env" when none is given).
func LoadConfig(envFiles ...string) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Files
	cfg.StrategiesPath = getEnv("STRATEGIES_FILE", "./config/strategies.yaml")
	cfg.CredentialsPath = getEnv("CREDENTIALS_FILE", "./config/credentials.json")
	cfg.DBPath = getEnv("DB_PATH", "./data/live_bot.db")
	cfg.EventsDir = getEnv("EVENTS_DIR", "./logs/events")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}
	cfg.LogDir = getEnv("LOG_DIR", "./logs")

	// Market data
	cfg.Timeframe, err = getEnvAsDurationRequired("TIMEFRAME", 5*time.Minute)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEFRAME: %v", err))
	} else if cfg.Timeframe < time.Minute || cfg.Timeframe%time.Minute != 0 {
		errs = append(errs, "TIMEFRAME must be a whole number of minutes")
	}

	cfg.BarCount, err = getEnvAsIntRequired("BAR_COUNT", 200)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BAR_COUNT: %v", err))
	} else if cfg.BarCount <= 0 {
		errs = append(errs, "BAR_COUNT must be positive")
	}

	closeBufferSeconds := getEnvAsInt("CANDLE_CLOSE_BUFFER_SECONDS", 2)
	if closeBufferSeconds < 0 {
		errs = append(errs, "CANDLE_CLOSE_BUFFER_SECONDS cannot be negative")
	}
	cfg.CloseBuffer = time.Duration(closeBufferSeconds) * time.Second

	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))
	cfg.BrokerUTCOffset = getEnvAsInt("BROKER_UTC_OFFSET", 0)
	if cfg.BrokerUTCOffset < -12 || cfg.BrokerUTCOffset > 14 {
		errs = append(errs, "BROKER_UTC_OFFSET must be between -12 and 14")
	}
	cfg.BrokerFollowsDST = getEnvAsBool("BROKER_FOLLOWS_DST", false)

	// Safety
	cfg.DemoOnly = getEnvAsBool("DEMO_ONLY", true) // Default to demo for safety

	cfg.MaxDailyTrades, err = getEnvAsIntRequired("MAX_DAILY_TRADES", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_TRADES: %v", err))
	} else if cfg.MaxDailyTrades < 0 {
		errs = append(errs, "MAX_DAILY_TRADES cannot be negative")
	}

	cfg.EmergencyStop = getEnvAsBool("EMERGENCY_STOP", false)

	cfg.MaxPositionSizeLots, err = getEnvAsFloatRequired("MAX_POSITION_SIZE_LOTS", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_SIZE_LOTS: %v", err))
	} else if cfg.MaxPositionSizeLots < 0 {
		errs = append(errs, "MAX_POSITION_SIZE_LOTS cannot be negative")
	}

	cfg.RiskPercent, err = getEnvAsFloatRequired("RISK_PERCENT", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PERCENT: %v", err))
	} else if cfg.RiskPercent <= 0 || cfg.RiskPercent >= 1.0 {
		errs = append(errs, "RISK_PERCENT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.MaxSlippagePoints = getEnvAsInt("MAX_SLIPPAGE_POINTS", 20)
	if cfg.MaxSlippagePoints < 0 {
		errs = append(errs, "MAX_SLIPPAGE_POINTS cannot be negative")
	}

	cfg.CommissionPerLot, err = getEnvAsFloatRequired("COMMISSION_PER_LOT", 2.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_PER_LOT: %v", err))
	} else if cfg.CommissionPerLot < 0 {
		errs = append(errs, "COMMISSION_PER_LOT cannot be negative")
	}

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 30)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second
	cfg.ReconnectMaxDelay = time.Duration(getEnvAsInt("RECONNECT_MAX_DELAY_SECONDS", 300)) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 5)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}
	cfg.StartupAttempts = getEnvAsInt("STARTUP_ATTEMPTS", 5)

	connectionCheckSeconds := getEnvAsInt("CONNECTION_CHECK_SECONDS", 10)
	if connectionCheckSeconds <= 0 {
		errs = append(errs, "CONNECTION_CHECK_SECONDS must be positive")
	}
	cfg.ConnectionCheck = time.Duration(connectionCheckSeconds) * time.Second

	cfg.MaxConsecutiveErrors = getEnvAsInt("MAX_CONSECUTIVE_ERRORS", 5)
	if cfg.MaxConsecutiveErrors <= 0 {
		errs = append(errs, "MAX_CONSECUTIVE_ERRORS must be positive")
	}
	cfg.HeartbeatCycles = getEnvAsInt("HEARTBEAT_CYCLES", 12)

	// Notifications
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	chatID := getEnv("TELEGRAM_CHAT_ID", "")
	if chatID != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
		}
	}
	if (cfg.TelegramToken == "") != (chatID == "") {
		errs = append(errs, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// TelegramEnabled reports whether notifications should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDurationRequired(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
