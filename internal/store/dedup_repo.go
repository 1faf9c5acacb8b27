package store

import (
	"time"
)

// DedupRecord is one identifier the poller has already logged.
type DedupRecord struct {
	MessageID     string    `json:"message_id"`
	ParticipantID string    `json:"participant_id"`
	ReceivedAt    time.Time `json:"received_at"`
}

// DedupRepo defines the interface for inbound message deduplication.
type DedupRepo interface {
	// IsDuplicate checks if a message ID has already been recorded.
	IsDuplicate(messageID string) (bool, error)

	// RecordInbound inserts a new inbound message record. Returns false if the
	// message was already recorded (duplicate).
	RecordInbound(messageID, participantID string) (bool, error)

	// ListSeenIDs returns every recorded message ID in ascending order.
	ListSeenIDs() ([]string, error)
}
