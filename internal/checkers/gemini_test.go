package checkers

import (
	"testing"

	"liveSignalBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGEMINI(t *testing.T, params domain.Params) *GEMINI {
	t.Helper()
	if params == nil {
		params = domain.Params{}
	}
	c, err := NewGEMINI("EURUSD_GEMINI", params, &mockLogger{})
	require.NoError(t, err)
	return c.(*GEMINI)
}

func TestGEMINI_CrossOpensWindow(t *testing.T) {
	c := newTestGEMINI(t, nil)
	reference := flatBars(80)

	sig := c.Check(decliningSeries(80), reference)
	assert.Equal(t, "No KAMA cross detected", sig.Reason)
	assert.Equal(t, phaseScanning, c.DescribeState().Phase)

	sig = c.Check(uptrendBars(80, 0), reference)
	assert.False(t, sig.Valid)
	assert.Contains(t, sig.Reason, "KAMA cross: HL2_EMA")
	state := c.DescribeState()
	assert.Equal(t, "CROSS_WINDOW", state.Phase)
	assert.Equal(t, float64(2), state.Temporaries["cross_bar"])
	assert.Equal(t, float64(0), state.Temporaries["bars_since_cross"])
}

func TestGEMINI_CrossWindow(t *testing.T) {
	tests := []struct {
		name       string
		params     domain.Params
		crossBar   int
		window     []domain.Bar
		wantPhase  string
		wantReason string
	}{
		{
			name:       "window expired",
			crossBar:   -20,
			window:     uptrendBars(80, 0),
			wantPhase:  phaseScanning,
			wantReason: "Cross window expired after 21 bars",
		},
		{
			name:       "allowed bars shorten the window",
			params:     domain.Params{"allowed_cross_bars": []interface{}{1, 2, 3}},
			crossBar:   -3,
			window:     uptrendBars(80, 0),
			wantPhase:  phaseScanning,
			wantReason: "Cross window expired after 4 bars",
		},
		{
			name:       "cross invalidated",
			crossBar:   0,
			window:     decliningSeries(80),
			wantPhase:  phaseScanning,
			wantReason: "HL2_EMA dropped below KAMA - cross invalidated",
		},
		{
			name:       "bar not allowed",
			params:     domain.Params{"allowed_cross_bars": []interface{}{3}},
			crossBar:   0,
			window:     uptrendBars(80, 0),
			wantPhase:  "CROSS_WINDOW",
			wantReason: "Bar 1 not in allowed_cross_bars [3]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestGEMINI(t, tc.params)
			c.phase = geminiCrossWindow{crossBar: tc.crossBar}

			sig := c.Check(tc.window, flatBars(80))
			assert.False(t, sig.Valid)
			assert.Equal(t, tc.wantReason, sig.Reason)
			assert.Equal(t, tc.wantPhase, c.DescribeState().Phase)
		})
	}
}

func TestGEMINI_ResetKeepsCrossState(t *testing.T) {
	c := newTestGEMINI(t, nil)
	bars := uptrendBars(80, 0)

	c.Check(bars, flatBars(80))
	require.Equal(t, "CROSS_WINDOW", c.DescribeState().Phase)

	c.Reset()
	assert.Equal(t, phaseScanning, c.DescribeState().Phase)
	assert.True(t, c.prevAbove)

	sig := c.Check(bars, flatBars(80))
	assert.Equal(t, "No KAMA cross detected", sig.Reason)
	assert.Equal(t, phaseScanning, c.DescribeState().Phase)
}
