package activity

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLoggerAppendsOneRecordPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	l.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	if err := l.Log(EventPoll, Record{"status": 200, "payload": map[string]any{"data": []any{}}}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := l.Log(EventPollError, Record{"error": "timeout", "event": "ignored"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["event"] != EventPoll || records[0]["ts"] != "2025-01-02T03:04:05Z" {
		t.Errorf("unexpected first record: %v", records[0])
	}
	if records[0]["status"] != float64(200) {
		t.Errorf("status not preserved: %v", records[0]["status"])
	}
	if records[1]["event"] != EventPollError {
		t.Errorf("event field must not be overridable, got %v", records[1]["event"])
	}
}

func TestLoggerReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	for i := 0; i < 2; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := l.Log(EventSent, nil); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
		l.Close()
	}
	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected records from both runs, got %d", len(records))
	}
}

func TestLoggerConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Log(EventSent, Record{"n": i})
		}(i)
	}
	wg.Wait()

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 20 {
		t.Errorf("expected 20 intact records, got %d", len(records))
	}
}

func TestLoggerClosed(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	l.Close()
	if err := l.Log(EventPoll, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
