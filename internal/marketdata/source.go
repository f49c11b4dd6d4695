package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liveSignalBot/internal/brokertime"
	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
)

// ErrUnorderedBars is returned when the terminal hands back bars that are not strictly ascending.
var ErrUnorderedBars = errors.New("bars are not in ascending time order")

// Source fetches closed bar windows from the terminal.
type Source struct {
	terminal  ports.Terminal
	timeframe time.Duration
	converter brokertime.Converter
	logger    ports.Logger
	now       func() time.Time
}

// NewSource creates a bar source for one timeframe.
func NewSource(terminal ports.Terminal, timeframe time.Duration, converter brokertime.Converter, logger ports.Logger) *Source {
	return &Source{
		terminal:  terminal,
		timeframe: timeframe,
		converter: converter,
		logger:    logger,
		now:       time.Now,
	}
}

// Timeframe returns the bar duration this source serves.
func (s *Source) Timeframe() time.Duration {
	return s.timeframe
}

// Fetch returns up to count closed bars for symbol, oldest first, stamped in UTC.
// The bar still forming at call time is never included.
func (s *Source) Fetch(ctx context.Context, symbol string, count int) ([]domain.Bar, error) {
	if count <= 0 {
		return nil, fmt.Errorf("fetch %s: count must be positive, got %d: %w", symbol, count, ports.ErrInvalidRequest)
	}

	raw, err := s.terminal.Bars(ctx, symbol, s.timeframe, count+1)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars: %w", symbol, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("fetch %s bars: terminal returned no data: %w", symbol, ports.ErrNotFound)
	}

	bars := make([]domain.Bar, len(raw))
	for i, b := range raw {
		b.Time = s.converter.ToUTC(b.Time)
		bars[i] = b
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("fetch %s bars: %s is not after %s: %w",
				symbol, bars[i].Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339), ErrUnorderedBars)
		}
	}

	now := s.now().UTC()
	for len(bars) > 0 && bars[len(bars)-1].Time.Add(s.timeframe).After(now) {
		bars = bars[:len(bars)-1]
	}

	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	if len(bars) < count {
		s.logger.Debug(ctx, "Short bar window", map[string]interface{}{
			"symbol":    symbol,
			"requested": count,
			"received":  len(bars),
		})
	}
	return bars, nil
}
