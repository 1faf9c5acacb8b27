// Package models defines the core data structures for TextPipe.
//
// It includes the open-ended gateway message record, the message history entry
// and the JSON envelope returned by the HTTP API.
package models

import (
	"errors"
	"time"
)

// Direction tags used for history entries and activity events.
const (
	// DirectionReceived is the default direction for polled records.
	DirectionReceived = "received"
	// DirectionSent marks messages submitted through the sender.
	DirectionSent = "sent"
)

// Validation errors for scheduled messages.
var (
	ErrMissingRecipient = errors.New("recipient is required")
	ErrMissingMessage   = errors.New("message is required")
	ErrMissingSendAt    = errors.New("send_at is required")
)

// Validation errors for contacts.
var (
	ErrMissingContactName = errors.New("name is required")
	ErrMissingPhoneNumber = errors.New("phone_number is required")
)

// MessageEntry is a flattened copy of a message kept in the history store.
type MessageEntry struct {
	ID        int64     `json:"id"`
	GatewayID string    `json:"gateway_id,omitempty"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	Direction string    `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
	RawJSON   string    `json:"raw_json,omitempty"`
}

// SendRequest is the body accepted by the send endpoint and submitted to the gateway.
type SendRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

// ScheduleRequest is the body accepted by the schedule endpoint.
type ScheduleRequest struct {
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	SendAt    time.Time `json:"send_at"`
	// DedupeKey, when set, collapses repeated requests onto one pending message.
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// Validate checks that every field of the schedule request is set.
func (r ScheduleRequest) Validate() error {
	if r.Recipient == "" {
		return ErrMissingRecipient
	}
	if r.Message == "" {
		return ErrMissingMessage
	}
	if r.SendAt.IsZero() {
		return ErrMissingSendAt
	}
	return nil
}

// Contact is an address book entry keyed by phone number.
type Contact struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the fields a contact must carry.
func (c Contact) Validate() error {
	if c.Name == "" {
		return ErrMissingContactName
	}
	if c.PhoneNumber == "" {
		return ErrMissingPhoneNumber
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusScheduled indicates a message was queued for later delivery.
	APIStatusScheduled APIStatus = "scheduled"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Scheduled creates a scheduled API response carrying the outbox id.
func Scheduled(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusScheduled).
		WithResult(result).
		Build()
}
