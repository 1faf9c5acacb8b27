package store

import (
	"errors"
	"time"
)

// OutboxStatus represents the lifecycle state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusQueued   OutboxStatus = "queued"
	OutboxStatusSending  OutboxStatus = "sending"
	OutboxStatusSent     OutboxStatus = "sent"
	OutboxStatusFailed   OutboxStatus = "failed"
	OutboxStatusCanceled OutboxStatus = "canceled"
)

// ErrOutboxMessageNotFound is returned when no queued message matches a cancel request.
var ErrOutboxMessageNotFound = errors.New("no queued outbox message with that id")

// OutboxMessage is one scheduled outgoing SMS.
type OutboxMessage struct {
	ID        string       `json:"id"`
	Recipient string       `json:"recipient"`
	Body      string       `json:"body"`
	Status    OutboxStatus `json:"status"`
	Attempts  int          `json:"attempts"`
	NotBefore time.Time    `json:"not_before"`
	DedupeKey string       `json:"dedupe_key,omitempty"`
	LockedAt  *time.Time   `json:"locked_at,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// OutboxRepo defines the interface for durable scheduled-message persistence.
type OutboxRepo interface {
	// EnqueueOutboxMessage inserts a new message due at notBefore. If dedupeKey
	// is non-empty and a non-terminal message with that key exists, returns the
	// existing ID.
	EnqueueOutboxMessage(recipient, body string, notBefore time.Time, dedupeKey string) (string, error)

	// ClaimDueOutboxMessages marks up to limit queued messages whose
	// not_before <= now as sending and returns them.
	ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error)

	// MarkOutboxMessageSent marks a message as successfully sent.
	MarkOutboxMessageSent(id string) error

	// FailOutboxMessage records a send failure. Failed messages are not retried.
	FailOutboxMessage(id string, errMsg string) error

	// CancelOutboxMessage cancels a message that is still queued.
	CancelOutboxMessage(id string) error

	// ListOutboxMessages returns messages ordered by due time; an empty
	// recipient lists all of them.
	ListOutboxMessages(recipient string) ([]OutboxMessage, error)

	// RequeueStaleSendingMessages resets messages stuck in sending since before
	// staleBefore back to queued (crash recovery).
	RequeueStaleSendingMessages(staleBefore time.Time) (int, error)
}
