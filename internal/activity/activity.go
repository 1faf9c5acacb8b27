// Package activity provides the append-only JSONL event log for TextPipe.
//
// Every poll attempt, error, newly observed message and send attempt is written
// as one self-contained JSON object per line. The log never deduplicates.
package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds written by the poller and the sender.
const (
	EventPoll      = "poll"
	EventPollError = "poll_error"
	EventSent      = "sent_sms"
	EventSendError = "send_error"
)

// ErrClosed is returned when logging to a closed Logger.
var ErrClosed = errors.New("activity log is closed")

// DefaultFilePermissions is used when creating a new log file.
const DefaultFilePermissions = 0644

// Record is one activity event. The "ts" and "event" fields are always set.
type Record map[string]any

// Logger appends records to a JSONL file. Safe for concurrent use; records
// from one process keep their write order.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
	now  func() time.Time
}

// Open opens (or creates) the log file at path in append mode.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create activity log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, DefaultFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log %s: %w", path, err)
	}
	slog.Debug("Activity log opened", "path", path)
	return &Logger{file: f, path: path, now: time.Now}, nil
}

// Path returns the file the logger writes to.
func (l *Logger) Path() string {
	return l.path
}

// Now returns the logger's current time as an RFC3339 UTC string.
func (l *Logger) Now() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

// Log writes one record tagged with event. Fields may add any extra keys;
// "ts" and "event" are overwritten.
func (l *Logger) Log(event string, fields Record) error {
	rec := make(Record, len(fields)+2)
	for k, v := range fields {
		rec[k] = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrClosed
	}

	rec["ts"] = l.Now()
	rec["event"] = event

	line, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Activity.Log: failed to marshal record", "event", event, "error", err)
		return fmt.Errorf("failed to marshal activity record: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		slog.Error("Activity.Log: failed to write record", "event", event, "path", l.path, "error", err)
		return fmt.Errorf("failed to write activity record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadAll parses every record in the JSONL file at path. Used by tests and
// tooling that inspect the log.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	dec := json.NewDecoder(f)
	for dec.More() {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return records, fmt.Errorf("failed to decode activity record %d: %w", len(records), err)
		}
		records = append(records, r)
	}
	return records, nil
}
