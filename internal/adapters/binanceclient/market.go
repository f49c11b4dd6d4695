package binanceclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
)

const maxKlineLimit = 1500

var intervals = map[time.Duration]string{
	time.Minute:      "1m",
	3 * time.Minute:  "3m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "1h",
	2 * time.Hour:    "2h",
	4 * time.Hour:    "4h",
	6 * time.Hour:    "6h",
	8 * time.Hour:    "8h",
	12 * time.Hour:   "12h",
	24 * time.Hour:   "1d",
}

// Interval returns the kline interval name of a timeframe.
func Interval(timeframe time.Duration) (string, error) {
	iv, ok := intervals[timeframe]
	if !ok {
		return "", fmt.Errorf("unsupported timeframe %s: %w", timeframe, ports.ErrInvalidRequest)
	}
	return iv, nil
}

// SymbolInfo returns trading constraints from the cached exchange info.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	op := "SymbolInfo"
	symbol = strings.ToUpper(symbol)

	c.mu.RLock()
	cached := c.symbols
	c.mu.RUnlock()
	if cached == nil {
		client, err := c.api()
		if err != nil {
			return nil, err
		}
		info, err := client.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		cached = make(map[string]*domain.SymbolInfo, len(info.Symbols))
		for i := range info.Symbols {
			si, err := translateSymbol(&info.Symbols[i])
			if err != nil {
				c.logger.Debug(ctx, "Skipping symbol with unreadable filters", map[string]interface{}{
					"symbol": info.Symbols[i].Symbol,
					"error":  err.Error(),
				})
				continue
			}
			cached[si.Name] = si
		}
		c.mu.Lock()
		c.symbols = cached
		c.mu.Unlock()
	}

	si, ok := cached[symbol]
	if !ok {
		return nil, c.handleError(ctx, fmt.Errorf("symbol %s: %w", symbol, ports.ErrNotFound), op)
	}
	out := *si
	return &out, nil
}

// Tick returns the best bid/ask.
func (c *Client) Tick(ctx context.Context, symbol string) (*domain.Tick, error) {
	op := "Tick"
	client, err := c.api()
	if err != nil {
		return nil, err
	}
	tickers, err := client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return nil, c.handleError(ctx, fmt.Errorf("no book ticker for %s: %w", symbol, ports.ErrNotFound), op)
	}

	bid, err := parseFloat(tickers[0].BidPrice, "bid price")
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	ask, err := parseFloat(tickers[0].AskPrice, "ask price")
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return &domain.Tick{Bid: bid, Ask: ask, Time: time.Now().UTC()}, nil
}

// Bars returns the latest count klines, the forming one included.
func (c *Client) Bars(ctx context.Context, symbol string, timeframe time.Duration, count int) ([]domain.Bar, error) {
	op := "Bars"
	client, err := c.api()
	if err != nil {
		return nil, err
	}
	interval, err := Interval(timeframe)
	if err != nil {
		return nil, err
	}
	klines, err := client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(min(count, maxKlineLimit)).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return translateKlines(klines)
}

// BarsRange fetches every kline between start and end, paging through the API limit.
// It works without credentials against the production endpoint.
func (c *Client) BarsRange(ctx context.Context, symbol string, timeframe time.Duration, start, end time.Time) ([]domain.Bar, error) {
	op := "BarsRange"
	interval, err := Interval(timeframe)
	if err != nil {
		return nil, err
	}
	client := c.marketClient()

	var all []domain.Bar
	from := start
	for {
		klines, err := client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		bars, err := translateKlines(klines)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		all = append(all, bars...)

		from = unixMilli(klines[len(klines)-1].CloseTime + 1)
		if from.After(end) || len(klines) < maxKlineLimit {
			break
		}
	}
	return all, nil
}

func translateKlines(klines []*futures.Kline) ([]domain.Bar, error) {
	bars := make([]domain.Bar, 0, len(klines))
	for _, k := range klines {
		b, err := translateKline(k)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}
