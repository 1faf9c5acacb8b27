package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TextPipe/internal/models"
)

// Compile-time check that SQLiteStore implements ContactStore.
var _ ContactStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) SaveContact(c models.Contact) (models.Contact, error) {
	if err := c.Validate(); err != nil {
		return models.Contact{}, err
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO contacts (name, phone_number, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(phone_number) DO UPDATE SET name = excluded.name, notes = excluded.notes, updated_at = excluded.updated_at`,
		c.Name, c.PhoneNumber, c.Notes, now, now,
	)
	if err != nil {
		slog.Error("SQLiteStore.SaveContact failed", "error", err, "phone_number", c.PhoneNumber)
		return models.Contact{}, fmt.Errorf("failed to save contact: %w", err)
	}

	var saved models.Contact
	err = s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE phone_number = ?`, c.PhoneNumber).
		Scan(&saved.ID, &saved.Name, &saved.PhoneNumber, &saved.Notes, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return models.Contact{}, fmt.Errorf("failed to read saved contact: %w", err)
	}
	slog.Debug("SQLiteStore.SaveContact succeeded", "id", saved.ID)
	return saved, nil
}

func (s *SQLiteStore) GetContacts() ([]models.Contact, error) {
	rows, err := s.db.Query(`SELECT ` + contactColumns + ` FROM contacts ORDER BY name ASC, id ASC`)
	if err != nil {
		slog.Error("SQLiteStore.GetContacts query failed", "error", err)
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	return scanContacts(rows)
}
