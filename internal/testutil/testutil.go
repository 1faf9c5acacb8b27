// Package testutil provides common test helpers for TextPipe packages.
package testutil

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/TextPipe/internal/activity"
	"github.com/BTreeMap/TextPipe/internal/models"
	"github.com/BTreeMap/TextPipe/internal/store"
)

// NewSQLiteStore opens a throwaway SQLite store under t.TempDir and closes it
// when the test ends.
func NewSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(filepath.Join(t.TempDir(), "textpipe.db")))
	if err != nil {
		t.Fatalf("failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// NewActivityLog opens an activity log named name under t.TempDir.
func NewActivityLog(t *testing.T, name string) *activity.Logger {
	t.Helper()
	log, err := activity.Open(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("failed to open activity log: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

// ReadActivity returns every record written to log so far.
func ReadActivity(t *testing.T, log *activity.Logger) []activity.Record {
	t.Helper()
	records, err := activity.ReadAll(log.Path())
	if err != nil {
		t.Fatalf("failed to read activity log: %v", err)
	}
	return records
}

// SeedMessages appends entries to the history store in order.
func SeedMessages(t *testing.T, st store.MessageStore, entries ...models.MessageEntry) {
	t.Helper()
	for i, e := range entries {
		if _, err := st.AddMessage(e); err != nil {
			t.Fatalf("failed to seed message %d: %v", i, err)
		}
	}
}

// Reporter is the part of testing.T the assertion helpers need.
type Reporter interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t Reporter, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
