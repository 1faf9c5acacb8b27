package store

import "github.com/BTreeMap/TextPipe/internal/models"

// DefaultMessageLimit bounds GetMessages when no positive limit is given.
const DefaultMessageLimit = 100

// MessageStore keeps the history of sent and received messages.
type MessageStore interface {
	// AddMessage appends one entry and returns its row id.
	AddMessage(entry models.MessageEntry) (int64, error)

	// GetMessages returns entries where participant is the sender or the
	// recipient, newest first. An empty participant matches every entry.
	GetMessages(participant string, limit int) ([]models.MessageEntry, error)

	// GetConversation returns entries exchanged between a and b in either
	// direction, newest first. Empty a or b yields no entries.
	GetConversation(a, b string, limit int) ([]models.MessageEntry, error)

	// GetRecipients lists the numbers participant has exchanged messages
	// with, most recent activity first.
	GetRecipients(participant string) ([]string, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultMessageLimit
	}
	return limit
}
