package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"liveSignalBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBars(t *testing.T) {
	bars := []domain.Bar{
		{Time: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), Open: 1.1, High: 1.1004, Low: 1.0998, Close: 1.1002, Volume: 120},
		{Time: time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC), Open: 1.1002, High: 1.101, Low: 1.1, Close: 1.1009, Volume: 95.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBars(&buf, "EURUSD", 5*time.Minute, bars))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "open_time,symbol,timeframe,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2024-03-04T10:00:00Z,EURUSD,5m0s,1.1,1.1004,1.0998,1.1002,120", lines[1])

	back, err := ReadBars(&buf)
	require.NoError(t, err)
	assert.Equal(t, bars, back)
}

func TestWriteBarsToCSV_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "bars.csv")
	require.NoError(t, WriteBarsToCSV(path, "DIA", time.Hour, nil))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "open_time,symbol,timeframe,open,high,low,close,volume\n", string(content))
}

func TestReadBars_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short row", content: "h1,h2,h3,h4,h5,h6,h7,h8\n2024-03-04T10:00:00Z,X,5m0s,1,2\n"},
		{name: "bad time", content: "h1,h2,h3,h4,h5,h6,h7,h8\nyesterday,X,5m0s,1,2,3,4,5\n"},
		{name: "bad price", content: "h1,h2,h3,h4,h5,h6,h7,h8\n2024-03-04T10:00:00Z,X,5m0s,1,two,3,4,5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBars(strings.NewReader(tt.content))
			assert.Error(t, err)
		})
	}
}
