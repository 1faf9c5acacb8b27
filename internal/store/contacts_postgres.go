package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TextPipe/internal/models"
)

// Compile-time check that PostgresStore implements ContactStore.
var _ ContactStore = (*PostgresStore)(nil)

func (s *PostgresStore) SaveContact(c models.Contact) (models.Contact, error) {
	if err := c.Validate(); err != nil {
		return models.Contact{}, err
	}
	now := time.Now().UTC()
	var saved models.Contact
	err := s.db.QueryRow(
		`INSERT INTO contacts (name, phone_number, notes, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (phone_number) DO UPDATE SET name = EXCLUDED.name, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
		 RETURNING `+contactColumns,
		c.Name, c.PhoneNumber, c.Notes, now,
	).Scan(&saved.ID, &saved.Name, &saved.PhoneNumber, &saved.Notes, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveContact failed", "error", err, "phone_number", c.PhoneNumber)
		return models.Contact{}, fmt.Errorf("failed to save contact: %w", err)
	}
	slog.Debug("PostgresStore.SaveContact succeeded", "id", saved.ID)
	return saved, nil
}

func (s *PostgresStore) GetContacts() ([]models.Contact, error) {
	rows, err := s.db.Query(`SELECT ` + contactColumns + ` FROM contacts ORDER BY name ASC, id ASC`)
	if err != nil {
		slog.Error("PostgresStore.GetContacts query failed", "error", err)
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	return scanContacts(rows)
}
