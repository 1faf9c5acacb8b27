package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TextPipe/internal/models"
)

// Compile-time check that PostgresStore implements MessageStore.
var _ MessageStore = (*PostgresStore)(nil)

func (s *PostgresStore) AddMessage(e models.MessageEntry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO messages (gateway_id, sender, recipient, body, direction, timestamp, raw_json) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		e.GatewayID, e.Sender, e.Recipient, e.Body, e.Direction, e.Timestamp.UTC(), nilIfEmpty(e.RawJSON),
	).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore.AddMessage failed", "error", err, "direction", e.Direction)
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	slog.Debug("PostgresStore.AddMessage succeeded", "id", id, "direction", e.Direction)
	return id, nil
}

func (s *PostgresStore) GetMessages(participant string, limit int) ([]models.MessageEntry, error) {
	query := `SELECT id, gateway_id, sender, recipient, body, direction, timestamp, raw_json FROM messages`
	args := []any{}
	if participant != "" {
		query += ` WHERE sender = $1 OR recipient = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`
		args = append(args, participant, normalizeLimit(limit))
	} else {
		query += ` ORDER BY timestamp DESC, id DESC LIMIT $1`
		args = append(args, normalizeLimit(limit))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore.GetMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessageEntries(rows)
}

func (s *PostgresStore) GetConversation(a, b string, limit int) ([]models.MessageEntry, error) {
	if a == "" || b == "" {
		return []models.MessageEntry{}, nil
	}
	rows, err := s.db.Query(
		`SELECT id, gateway_id, sender, recipient, body, direction, timestamp, raw_json FROM messages
		 WHERE (sender = $1 AND recipient = $2) OR (sender = $2 AND recipient = $1)
		 ORDER BY timestamp DESC, id DESC LIMIT $3`,
		a, b, normalizeLimit(limit),
	)
	if err != nil {
		slog.Error("PostgresStore.GetConversation query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return scanMessageEntries(rows)
}

func (s *PostgresStore) GetRecipients(participant string) ([]string, error) {
	if participant == "" {
		return []string{}, nil
	}
	rows, err := s.db.Query(
		`SELECT counterpart FROM (
			SELECT CASE WHEN sender = $1 THEN recipient ELSE sender END AS counterpart, timestamp, id
			FROM messages WHERE sender = $1 OR recipient = $1
		 ) AS c
		 WHERE counterpart <> '' AND counterpart <> $1
		 GROUP BY counterpart
		 ORDER BY MAX(timestamp) DESC, MAX(id) DESC`,
		participant,
	)
	if err != nil {
		slog.Error("PostgresStore.GetRecipients query failed", "error", err)
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	return scanStrings(rows)
}
