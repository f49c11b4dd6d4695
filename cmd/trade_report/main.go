package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"liveSignalBot/internal/adapters/logger"
	"liveSignalBot/internal/adapters/sqlite"
	"liveSignalBot/internal/analytics"
	"liveSignalBot/internal/domain"

	"github.com/urfave/cli/v3"
)

// reportAction prints per-configuration performance from the closed trade history.
func reportAction(ctx context.Context, cmd *cli.Command) error {
	appLogger := logger.NewStdLogger(logger.LevelWarn)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cmd.String("db"),
		Logger: appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open trade history: %w", err)
	}
	defer repo.Close()

	var trades []*domain.ClosedTrade
	if name := cmd.String("config"); name != "" {
		trades, err = repo.FindByConfig(ctx, name, int(cmd.Int("limit")))
	} else {
		trades, err = repo.FindAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Println("No closed trades recorded.")
		return nil
	}

	balance := cmd.Float("initial-balance")
	printReport(os.Stdout, analytics.ByConfiguration(trades, balance), analytics.AnalyzePerformance(trades, balance))
	return nil
}

func printReport(w io.Writer, byConfig map[string]*analytics.PerformanceMetrics, total *analytics.PerformanceMetrics) {
	names := make([]string, 0, len(byConfig))
	for name := range byConfig {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Configuration\tTrades\tWin%\tNet P&L\tCommission\tProfit factor\tMax DD%\tExpectancy\tAvg hold\t")
	row := func(name string, m *analytics.PerformanceMetrics) {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t\n",
			name, m.TotalTrades, m.WinRate*100, m.TotalProfit, m.TotalCommission,
			m.ProfitFactor, m.MaxDrawdown*100, m.Expectancy, m.AverageTradeDuration.Round(time.Minute))
	}
	for _, name := range names {
		row(name, byConfig[name])
	}
	row("TOTAL", total)
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit reasons:")
	for _, reason := range []domain.CloseReason{domain.CloseReasonTakeProfit, domain.CloseReasonStopLoss, domain.CloseReasonManual} {
		fmt.Fprintf(w, "  %-12s %d\n", reason, total.ExitReasons[reason])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Monthly net P&L:")
	for _, mr := range total.GetMonthlyReturns() {
		fmt.Fprintf(w, "  %s  %10.2f\n", mr.Month.Format("2006-01"), mr.Return)
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "trade_report",
		Usage: "Summarize closed trades per strategy configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the SQLite database",
				Value: "./data/live_bot.db",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Only report this configuration",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Most recent trades to include with --config",
				Value: 1000,
			},
			&cli.FloatFlag{
				Name:  "initial-balance",
				Usage: "Starting balance for drawdown and return figures",
				Value: 10000,
			},
		},
		Action: reportAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
