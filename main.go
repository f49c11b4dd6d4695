package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"strings"
	"syscall"

	"liveSignalBot/config"
	"liveSignalBot/internal/adapters/binanceclient"
	"liveSignalBot/internal/adapters/logger"
	"liveSignalBot/internal/adapters/sqlite"
	"liveSignalBot/internal/adapters/telegram"
	"liveSignalBot/internal/app"
	"liveSignalBot/internal/brokertime"
	"liveSignalBot/internal/checkers"
	"liveSignalBot/internal/connection"
	"liveSignalBot/internal/events"
	"liveSignalBot/internal/executor"
	"liveSignalBot/internal/marketdata"
	"liveSignalBot/internal/ports"
	"liveSignalBot/internal/risk"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "liveSignalBot",
		Usage: "Monitor strategy configurations on closed bars and trade their LONG signals",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to the .env file (defaults to ./.env)",
			},
			&cli.StringFlag{
				Name:  "strategies",
				Usage: "Path to the strategies YAML file (overrides STRATEGIES_FILE)",
			},
			&cli.StringFlag{
				Name:  "credentials",
				Usage: "Path to the exchange credentials JSON file (overrides CREDENTIALS_FILE)",
			},
			&cli.BoolFlag{
				Name:  "allow-live",
				Usage: "Permit trading on a live (non-testnet) account",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single cycle on the latest closed bar and exit",
			},
			&cli.BoolFlag{
				Name:  "list-strategies",
				Usage: "Print the available strategy types and configured strategies, then exit",
			},
		},
		Action: runAction,
	}

	// Stop on Ctrl+C or SIGTERM; the orchestrator finishes the current step and tears down.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	// 1. Load Configuration
	var envFiles []string
	if f := cmd.String("env-file"); f != "" {
		envFiles = append(envFiles, f)
	}
	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if p := cmd.String("strategies"); p != "" {
		cfg.StrategiesPath = p
	}
	if p := cmd.String("credentials"); p != "" {
		cfg.CredentialsPath = p
	}
	demoOnly := cfg.DemoOnly && !cmd.Bool("allow-live")

	// 2. Initialize Logger
	appLogger, closeLogger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLogger()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	registry := checkers.NewRegistry(appLogger)
	if cmd.Bool("list-strategies") {
		return listStrategies(cfg.StrategiesPath, registry)
	}

	// 3. Load strategies and credentials
	configs, err := config.LoadStrategies(cfg.StrategiesPath)
	if err != nil {
		return err
	}
	creds, err := config.LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		return err
	}

	// 4. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		return fmt.Errorf("failed to initialize database repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 5. Initialize Exchange Client (Binance Adapter) and the session around it
	binanceClient, err := binanceclient.New(binanceclient.Config{
		Logger:     appLogger,
		QuoteAsset: cfg.QuoteAsset,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Binance client: %w", err)
	}
	connOpts := connection.DefaultOptions()
	connOpts.AllowLive = !demoOnly
	session := connection.NewManager(binanceClient, creds, connOpts, appLogger)

	converter := brokertime.Converter{OffsetHours: cfg.BrokerUTCOffset, FollowsDST: cfg.BrokerFollowsDST}
	bars := marketdata.NewSource(binanceClient, cfg.Timeframe, converter, appLogger)

	// 6. Event sinks
	runID := events.NewRunID()
	fileSink, err := events.NewFileSink(cfg.EventsDir, runID)
	if err != nil {
		return fmt.Errorf("failed to initialize event log: %w", err)
	}
	sinks := []ports.EventSink{events.WithFlush(fileSink)}
	if cfg.TelegramEnabled() {
		notifier, err := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			appLogger.Warn(ctx, "Telegram notifications disabled", map[string]interface{}{"error": err.Error()})
		} else {
			sinks = append(sinks, events.Filter(notifier, telegram.DefaultTypes...))
		}
	}

	// 7. Risk and execution
	sizer := risk.NewSizer(risk.SizingConfig{
		RiskPercent: cfg.RiskPercent,
		MaxLots:     cfg.MaxPositionSizeLots,
	})
	riskManager := risk.NewRiskManager(risk.RiskConfig{
		MaxDailyTrades: cfg.MaxDailyTrades,
		EmergencyStop:  cfg.EmergencyStop,
	}, repo)

	settings := app.DefaultSettings()
	settings.BarCount = cfg.BarCount
	settings.CloseBuffer = cfg.CloseBuffer
	settings.ConnectionCheckEvery = cfg.ConnectionCheck
	settings.StartupAttempts = cfg.StartupAttempts
	settings.MaxReconnectAttempts = cfg.MaxReconnectAttempts
	settings.ReconnectDelay = cfg.ReconnectDelay
	settings.ReconnectMaxDelay = cfg.ReconnectMaxDelay
	settings.MaxConsecutiveErrors = cfg.MaxConsecutiveErrors
	settings.HeartbeatEvery = cfg.HeartbeatCycles
	settings.CommissionPerLot = cfg.CommissionPerLot
	settings.DemoOnly = demoOnly
	settings.Execution = executor.DefaultOptions()
	settings.Execution.MaxSlippagePoints = cfg.MaxSlippagePoints
	settings.Execution.Netting = true // USDⓈ-M one-way mode keeps one position per symbol

	// 8. Initialize the orchestrator
	orchestrator, err := app.New(settings, configs, app.Deps{
		Terminal:  binanceClient,
		Session:   session,
		Bars:      bars,
		Registry:  registry,
		Sizer:     sizer,
		Risk:      riskManager,
		Positions: repo,
		Trades:    repo,
		Events:    events.Fanout(sinks...),
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize orchestrator")
		return err
	}
	appLogger.Info(ctx, "Orchestrator initialized", map[string]interface{}{
		"runID":          runID,
		"configurations": orchestrator.Configurations(),
		"demoOnly":       demoOnly,
		"emergencyStop":  cfg.EmergencyStop,
	})

	// 9. Start the monitor
	if cmd.Bool("once") {
		err = orchestrator.RunOnce(ctx)
	} else {
		err = orchestrator.Run(ctx)
	}
	if err != nil {
		appLogger.Error(context.Background(), err, "Monitor exited with error")
		return err
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
	return nil
}

// newLogger builds the text or JSON logger selected by LOG_FORMAT.
func newLogger(cfg *config.Config) (ports.Logger, func(), error) {
	if cfg.LogFormat != "json" {
		return logger.NewStdLogger(cfg.LogLevel), func() {}, nil
	}
	zl, err := logger.NewZapLogger(logger.ZapConfig{
		Level:  strings.ToLower(cfg.LogLevel.String()),
		LogDir: cfg.LogDir,
	})
	if err != nil {
		return nil, nil, err
	}
	return zl, func() { _ = zl.Sync() }, nil
}

func listStrategies(path string, registry *checkers.Registry) error {
	fmt.Printf("Strategy types: %s\n", strings.Join(registry.Names(), ", "))

	configs, err := config.ReadStrategies(path)
	if err != nil {
		return err
	}
	fmt.Printf("Configurations in %s:\n", path)
	for _, c := range configs {
		status := "disabled"
		if c.Enabled {
			status = "enabled"
		}
		symbols := strings.Join(c.Symbols(), "+")
		fmt.Printf("  %-20s %-12s %-16s %s\n", c.Name, c.StrategyType, symbols, status)
	}
	return nil
}
