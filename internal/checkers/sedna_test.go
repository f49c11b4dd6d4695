package checkers

import (
	"testing"

	"liveSignalBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSEDNA(t *testing.T, params domain.Params) *SEDNA {
	t.Helper()
	if params == nil {
		params = domain.Params{}
	}
	params["pip_value"] = 0.0001
	c, err := NewSEDNA("EURUSD_SEDNA", params, &mockLogger{})
	require.NoError(t, err)
	return c.(*SEDNA)
}

func TestSEDNA_RegimeArmsBreakout(t *testing.T) {
	bars := uptrendBars(81, 0)
	c := newTestSEDNA(t, nil)
	require.Equal(t, 51, c.MinBars())

	sig := c.Check(bars[:80], nil)
	assert.False(t, sig.Valid)
	state := c.DescribeState()
	require.Equal(t, "WAITING_BREAKOUT", state.Phase)
	level := bars[79].High + 0.0001
	assert.InDelta(t, level, state.Temporaries["breakout_level"], 1e-9)

	sig = c.Check(bars, nil)
	require.True(t, sig.Valid, sig.Reason)
	assert.Equal(t, domain.Long, sig.Direction)
	assert.InDelta(t, level, sig.EntryPrice, 1e-9)
	assert.InDelta(t, level-3*sig.ReferenceValue, sig.StopLoss, 1e-9)
	assert.InDelta(t, level+8*sig.ReferenceValue, sig.TakeProfit, 1e-9)
	assert.Equal(t, phaseScanning, c.DescribeState().Phase)
}

func TestSEDNA_PullbackFilterWaitsForPullback(t *testing.T) {
	bars := uptrendBars(80, 0)
	top := bars[79].Close
	c := newTestSEDNA(t, domain.Params{"use_pullback_filter": true})

	sig := c.Check(bars, nil)
	assert.Equal(t, "Regime confirmed, waiting for pullback", sig.Reason)
	assert.Equal(t, "AWAITING_PULLBACK", c.DescribeState().Phase)

	bars = appendBar(bars, top, top+0.0001, top-0.0003, top-0.0001)
	sig = c.Check(bars, nil)
	assert.Equal(t, "No valid pullback yet", sig.Reason)
	assert.Equal(t, "AWAITING_PULLBACK", c.DescribeState().Phase)

	bars = appendBar(bars, top-0.0001, top+0.0001, top-0.0004, top)
	c.Check(bars, nil)
	state := c.DescribeState()
	require.Equal(t, "WAITING_BREAKOUT", state.Phase)
	level := top + 0.0002 + 0.0001
	assert.InDelta(t, level, state.Temporaries["breakout_level"], 1e-9)

	bars = appendBar(bars, top, top+0.0005, top-0.0001, top+0.0004)
	sig = c.Check(bars, nil)
	require.True(t, sig.Valid, sig.Reason)
	assert.InDelta(t, level, sig.EntryPrice, 1e-9)
}

func TestSEDNA_PhaseExits(t *testing.T) {
	tests := []struct {
		name       string
		phase      sednaPhase
		window     []domain.Bar
		wantPhase  string
		wantReason string
	}{
		{
			name:       "pullback window expired",
			phase:      sednaAwaitingPullback{triggerBar: -10, patternATR: 0.001},
			window:     uptrendBars(80, 0),
			wantPhase:  phaseScanning,
			wantReason: "Pullback window expired",
		},
		{
			name:       "regime lost while awaiting pullback",
			phase:      sednaAwaitingPullback{triggerBar: 0, patternATR: 0.001},
			window:     decliningSeries(80),
			wantPhase:  phaseScanning,
			wantReason: "Pullback invalidated: HL2_EMA below KAMA",
		},
		{
			name:       "breakout window expired",
			phase:      sednaWaitingBreakout{patternBar: -5, level: 2.0, patternATR: 0.001},
			window:     uptrendBars(80, 0),
			wantPhase:  phaseScanning,
			wantReason: "Breakout window expired",
		},
		{
			name:       "still below breakout level",
			phase:      sednaWaitingBreakout{patternBar: 0, level: 2.0, patternATR: 0.001},
			window:     uptrendBars(80, 0),
			wantPhase:  "WAITING_BREAKOUT",
			wantReason: "Waiting for breakout above 2.00000 (1/5 bars)",
		},
		{
			name:       "scanning below KAMA",
			phase:      sednaScanning{},
			window:     decliningSeries(80),
			wantPhase:  phaseScanning,
			wantReason: "KAMA condition",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestSEDNA(t, domain.Params{"use_pullback_filter": true})
			c.phase = tc.phase

			sig := c.Check(tc.window, nil)
			assert.False(t, sig.Valid)
			assert.Contains(t, sig.Reason, tc.wantReason)
			assert.Equal(t, tc.wantPhase, c.DescribeState().Phase)
			assert.Equal(t, 1, c.DescribeState().BarsProcessed)
		})
	}
}
