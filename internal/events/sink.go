// Package events writes the append-only audit trail: one JSON object per line.
package events

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"liveSignalBot/internal/ports"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NewRunID returns the identifier stamped on every record of one process run.
func NewRunID() string {
	return uuid.NewString()
}

type header struct {
	Timestamp     string `json:"timestamp"`
	EventType     string `json:"event_type"`
	Configuration string `json:"configuration"`
	Symbol        string `json:"symbol"`
	RunID         string `json:"run_id"`
}

var reservedKeys = []string{"timestamp", "event_type", "configuration", "symbol", "run_id"}

// Encode renders an event as a single JSON line (without the newline).
// The fixed keys come first; extra fields follow in key order and cannot override them.
func Encode(ev ports.Event, runID string) ([]byte, error) {
	head, err := sonic.Marshal(header{
		Timestamp:     ev.Timestamp.UTC().Format(timestampLayout),
		EventType:     string(ev.Type),
		Configuration: ev.Configuration,
		Symbol:        ev.Symbol,
		RunID:         runID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event header: %w", err)
	}

	fields := make(map[string]interface{}, len(ev.Fields))
	for k, v := range ev.Fields {
		fields[k] = v
	}
	for _, k := range reservedKeys {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return head, nil
	}

	body, err := sonic.ConfigStd.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s fields: %w", ev.Type, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(head) + len(body))
	buf.Write(head[:len(head)-1])
	buf.WriteByte(',')
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// FileSink appends events to <dir>/trades_multi_YYYYMMDD.jsonl, rotating at UTC midnight.
// Writes are buffered; wrap it with WithFlush for flush-per-record durability.
type FileSink struct {
	dir   string
	runID string
	now   func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
	w    *bufio.Writer
}

// NewFileSink creates the directory if needed. The file is opened on the first event.
func NewFileSink(dir, runID string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event directory %s: %w", dir, err)
	}
	return &FileSink{dir: dir, runID: runID, now: time.Now}, nil
}

// Path returns the file the sink writes to on the given day.
func (s *FileSink) Path(day time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("trades_multi_%s.jsonl", day.UTC().Format("20060102")))
}

// Emit appends one record.
func (s *FileSink) Emit(ctx context.Context, ev ports.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	line, err := Encode(ev, s.runID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotate(s.now()); err != nil {
		return err
	}
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Flush pushes buffered records to disk and syncs the file.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes and closes the current file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *FileSink) rotate(now time.Time) error {
	day := now.UTC().Format("20060102")
	if s.file != nil && day == s.day {
		return nil
	}
	if err := s.closeLocked(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path(now), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event file: %w", err)
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	s.day = day
	return nil
}

func (s *FileSink) flushLocked() error {
	if s.file == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush event file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync event file: %w", err)
	}
	return nil
}

func (s *FileSink) closeLocked() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.flushLocked()
	closeErr := s.file.Close()
	s.file, s.w, s.day = nil, nil, ""
	return errors.Join(flushErr, closeErr)
}
