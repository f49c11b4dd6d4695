package ports

import "liveSignalBot/internal/domain"

// Checker is a stateful per-configuration signal detector.
type Checker interface {
	// Strategy returns the strategy type name.
	Strategy() string
	// MinBars is the shortest window Check accepts.
	MinBars() int
	// Check advances the phase machine by one bar. It never blocks and never performs I/O.
	// reference is nil for single-feed strategies.
	Check(window, reference []domain.Bar) domain.Signal
	// Reset returns the phase machine to scanning.
	Reset()
	// DescribeState returns a snapshot without mutating state.
	DescribeState() domain.CheckerState
}
