package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/TextPipe/internal/models"
)

// outboxColumns is the column list scanOutboxMessage expects.
const outboxColumns = `id, recipient, body, status, attempts, not_before, dedupe_key, locked_at, last_error, created_at, updated_at`

// contactColumns is the column list scanContacts expects.
const contactColumns = `id, name, phone_number, notes, created_at, updated_at`

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanOutboxMessage scans an OutboxMessage from sql.Rows.
func scanOutboxMessage(rows *sql.Rows) (OutboxMessage, error) {
	var m OutboxMessage
	var dedupeKey, lastError sql.NullString
	var lockedAt sql.NullTime
	err := rows.Scan(
		&m.ID, &m.Recipient, &m.Body, &m.Status, &m.Attempts, &m.NotBefore,
		&dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}

func scanOutboxMessages(rows *sql.Rows) ([]OutboxMessage, error) {
	defer rows.Close()
	msgs := []OutboxMessage{}
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox iteration failed: %w", err)
	}
	return msgs, nil
}

func scanMessageEntries(rows *sql.Rows) ([]models.MessageEntry, error) {
	defer rows.Close()
	entries := []models.MessageEntry{}
	for rows.Next() {
		var e models.MessageEntry
		var raw sql.NullString
		if err := rows.Scan(&e.ID, &e.GatewayID, &e.Sender, &e.Recipient, &e.Body, &e.Direction, &e.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		e.RawJSON = raw.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return entries, nil
}

func listSeenIDs(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT message_id FROM inbound_dedup ORDER BY message_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list seen ids failed: %w", err)
	}
	return scanStrings(rows)
}

// scanStrings collects a single text column and closes rows.
func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

func scanContacts(rows *sql.Rows) ([]models.Contact, error) {
	defer rows.Close()
	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact rows: %w", err)
	}
	return contacts, nil
}
