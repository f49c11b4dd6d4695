package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"liveSignalBot/internal/domain"
)

var barHeader = []string{"open_time", "symbol", "timeframe", "open", "high", "low", "close", "volume"}

// WriteBars writes bars as CSV with a header row. Times are RFC3339 UTC.
func WriteBars(w io.Writer, symbol string, timeframe time.Duration, bars []domain.Bar) error {
	writer := csv.NewWriter(w)

	// Write header
	if err := writer.Write(barHeader); err != nil {
		return err
	}

	tf := timeframe.String()
	for _, b := range bars {
		if err := writer.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			symbol,
			tf,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBarsToCSV creates filename (and its directory) and writes the bars into it.
func WriteBarsToCSV(filename, symbol string, timeframe time.Duration, bars []domain.Bar) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteBars(file, symbol, timeframe, bars)
}

// ReadBars parses CSV written by WriteBars.
func ReadBars(r io.Reader) ([]domain.Bar, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	bars := make([]domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(barHeader) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+2, len(barHeader), len(rec))
		}
		t, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		var vals [5]float64
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(rec[3+j], 64); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+2, barHeader[3+j], err)
			}
		}
		bars = append(bars, domain.Bar{Time: t.UTC(), Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]})
	}
	return bars, nil
}
