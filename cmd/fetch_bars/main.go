package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"liveSignalBot/internal/adapters/binanceclient"
	"liveSignalBot/internal/adapters/logger"
	"liveSignalBot/internal/utils"

	"github.com/urfave/cli/v3"
)

// fetchAction downloads closed bars for one symbol and writes them to CSV.
func fetchAction(ctx context.Context, cmd *cli.Command) error {
	symbol := strings.ToUpper(cmd.String("symbol"))
	timeframe := cmd.Duration("timeframe")
	end := cmd.Timestamp("end")
	start := end.AddDate(0, 0, -int(cmd.Int("days")))

	appLogger := logger.NewStdLogger(logger.ParseLevel(cmd.String("log-level")))

	client, err := binanceclient.New(binanceclient.Config{Logger: appLogger})
	if err != nil {
		return fmt.Errorf("failed to create Binance client: %w", err)
	}

	log.Printf("Fetching %s %s bars from %s to %s...", symbol, timeframe, start.Format("2006-01-02"), end.Format("2006-01-02"))
	bars, err := client.BarsRange(ctx, symbol, timeframe, start, end)
	if err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"symbol": symbol, "count": len(bars)})

	filename := filepath.Join(cmd.String("data"),
		fmt.Sprintf("%s_%s_%s_to_%s.csv", symbol, timeframe, start.Format("20060102"), end.Format("20060102")))
	if err := utils.WriteBarsToCSV(filename, symbol, timeframe, bars); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "fetch_bars",
		Usage: "Download closed bars for a symbol to CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Exchange symbol, e.g. ETHUSDT",
				Required: true,
			},
			&cli.DurationFlag{
				Name:    "timeframe",
				Aliases: []string{"t"},
				Usage:   "Bar duration",
				Value:   5 * time.Minute,
			},
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"n"},
				Usage:   "Number of days back from the end date",
				Value:   90,
			},
			&cli.TimestampFlag{
				Name:  "end",
				Usage: "End date in `YYYY-MM-DD` format. Defaults to now.",
				Value: time.Now().UTC(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output directory",
				Value:   "data",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "DEBUG, INFO, WARN or ERROR",
				Value: "INFO",
			},
		},
		Action: fetchAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
