package events

import (
	"context"
	"errors"

	"liveSignalBot/internal/ports"
)

// FlushingSink is a sink with an explicit flush.
type FlushingSink interface {
	ports.EventSink
	Flush() error
}

type flushAfterWrite struct {
	FlushingSink
}

// WithFlush wraps a sink so that every Emit is followed by a Flush.
// A crash loses at most the record being written.
func WithFlush(sink FlushingSink) ports.EventSink {
	return flushAfterWrite{sink}
}

func (f flushAfterWrite) Emit(ctx context.Context, ev ports.Event) error {
	if err := f.FlushingSink.Emit(ctx, ev); err != nil {
		return err
	}
	return f.Flush()
}

type fanout []ports.EventSink

// Fanout sends each event to every sink. A failing sink does not stop the others;
// their errors are joined.
func Fanout(sinks ...ports.EventSink) ports.EventSink {
	return fanout(sinks)
}

func (f fanout) Emit(ctx context.Context, ev ports.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Filter forwards only the listed event types to the wrapped sink.
func Filter(sink ports.EventSink, types ...ports.EventType) ports.EventSink {
	allowed := make(map[ports.EventType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return filtered{sink: sink, allowed: allowed}
}

type filtered struct {
	sink    ports.EventSink
	allowed map[ports.EventType]struct{}
}

func (f filtered) Emit(ctx context.Context, ev ports.Event) error {
	if _, ok := f.allowed[ev.Type]; !ok {
		return nil
	}
	return f.sink.Emit(ctx, ev)
}

func (f filtered) Close() error { return f.sink.Close() }
