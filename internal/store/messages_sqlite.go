package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TextPipe/internal/models"
)

// Compile-time check that SQLiteStore implements MessageStore.
var _ MessageStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) AddMessage(e models.MessageEntry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	// timestamp is a TEXT column here; keeping every write in UTC is what
	// makes ORDER BY timestamp chronological.
	result, err := s.db.Exec(
		`INSERT INTO messages (gateway_id, sender, recipient, body, direction, timestamp, raw_json) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.GatewayID, e.Sender, e.Recipient, e.Body, e.Direction, e.Timestamp.UTC(), nilIfEmpty(e.RawJSON),
	)
	if err != nil {
		slog.Error("SQLiteStore.AddMessage failed", "error", err, "direction", e.Direction)
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %w", err)
	}
	slog.Debug("SQLiteStore.AddMessage succeeded", "id", id, "direction", e.Direction)
	return id, nil
}

func (s *SQLiteStore) GetMessages(participant string, limit int) ([]models.MessageEntry, error) {
	query := `SELECT id, gateway_id, sender, recipient, body, direction, timestamp, raw_json FROM messages`
	args := []any{}
	if participant != "" {
		query += ` WHERE sender = ? OR recipient = ?`
		args = append(args, participant, participant)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore.GetMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessageEntries(rows)
}

func (s *SQLiteStore) GetConversation(a, b string, limit int) ([]models.MessageEntry, error) {
	if a == "" || b == "" {
		return []models.MessageEntry{}, nil
	}
	rows, err := s.db.Query(
		`SELECT id, gateway_id, sender, recipient, body, direction, timestamp, raw_json FROM messages
		 WHERE (sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		a, b, b, a, normalizeLimit(limit),
	)
	if err != nil {
		slog.Error("SQLiteStore.GetConversation query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return scanMessageEntries(rows)
}

func (s *SQLiteStore) GetRecipients(participant string) ([]string, error) {
	if participant == "" {
		return []string{}, nil
	}
	rows, err := s.db.Query(
		`SELECT counterpart FROM (
			SELECT CASE WHEN sender = ? THEN recipient ELSE sender END AS counterpart, timestamp, id
			FROM messages WHERE sender = ? OR recipient = ?
		 ) AS c
		 WHERE counterpart <> '' AND counterpart <> ?
		 GROUP BY counterpart
		 ORDER BY MAX(timestamp) DESC, MAX(id) DESC`,
		participant, participant, participant, participant,
	)
	if err != nil {
		slog.Error("SQLiteStore.GetRecipients query failed", "error", err)
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	return scanStrings(rows)
}
