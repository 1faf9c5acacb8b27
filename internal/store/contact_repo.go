package store

import "github.com/BTreeMap/TextPipe/internal/models"

// ContactStore keeps the address book.
type ContactStore interface {
	// SaveContact inserts c or, when its phone number already exists,
	// replaces the name and notes. Returns the stored row.
	SaveContact(c models.Contact) (models.Contact, error)

	// GetContacts returns every contact ordered by name.
	GetContacts() ([]models.Contact, error)
}
