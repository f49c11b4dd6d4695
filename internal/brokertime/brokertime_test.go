package brokertime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLastSunday(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), lastSunday(2024, time.March))
	assert.Equal(t, time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC), lastSunday(2024, time.October))
	assert.Equal(t, time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), lastSunday(2025, time.March))
	assert.Equal(t, time.Date(2025, 10, 26, 0, 0, 0, 0, time.UTC), lastSunday(2025, time.October))
}

func TestConverter_ToUTC(t *testing.T) {
	dst := Converter{FollowsDST: true}

	tests := []struct {
		name     string
		conv     Converter
		broker   time.Time
		expected time.Time
	}{
		{
			name:     "identity",
			conv:     UTC,
			broker:   time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "fixed offset",
			conv:     Converter{OffsetHours: 2},
			broker:   time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "summer",
			conv:     dst,
			broker:   time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "winter",
			conv:     dst,
			broker:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "day before summer time",
			conv:     dst,
			broker:   time.Date(2024, 3, 30, 23, 55, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 30, 21, 55, 0, 0, time.UTC),
		},
		{
			name:     "first day of summer time",
			conv:     dst,
			broker:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 30, 21, 0, 0, 0, time.UTC),
		},
		{
			name:     "local location is ignored",
			conv:     Converter{OffsetHours: 3},
			broker:   time.Date(2024, 6, 3, 10, 0, 0, 0, time.FixedZone("X", 5*3600)),
			expected: time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(tt.conv.ToUTC(tt.broker)), "got %s", tt.conv.ToUTC(tt.broker))
		})
	}
}

func TestConverter_FromUTC(t *testing.T) {
	dst := Converter{FollowsDST: true}
	utc := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	broker := dst.FromUTC(utc)
	assert.Equal(t, 12, broker.Hour())
	assert.True(t, utc.Equal(dst.ToUTC(broker)))
}
