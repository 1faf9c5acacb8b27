// Package gateway defines the SMS gateway abstraction used by the poller and the sender.
//
// A gateway returns the raw HTTP status and a parsed payload; it never judges
// whether the gateway considered the request successful.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// RawTextKey wraps a response body that could not be parsed as JSON.
const RawTextKey = "raw_text"

// Result is the HTTP-layer outcome of one gateway call.
type Result struct {
	StatusCode int
	Payload    any
}

// Gateway submits outbound messages and fetches the device message list.
type Gateway interface {
	// SendSMS submits one message to every recipient.
	SendSMS(ctx context.Context, recipients []string, message string) (*Result, error)

	// FetchMessages returns the raw message envelope. When receivedOnly is set,
	// the received-only listing is used instead of the combined one.
	FetchMessages(ctx context.Context, receivedOnly bool) (*Result, error)
}

var errTrailingData = errors.New("trailing data after JSON value")

// DecodePayload parses body as JSON and falls back to {"raw_text": body}.
// Numbers are kept as json.Number so long numeric ids keep every digit.
func DecodePayload(body []byte) any {
	payload, err := decodeJSON(body)
	if err != nil {
		return map[string]any{RawTextKey: string(body)}
	}
	return payload
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return payload, nil
}

// MockClient is an in-memory Gateway for tests.
type MockClient struct {
	mu sync.Mutex

	SendResult  *Result
	SendErr     error
	FetchResult *Result
	FetchErr    error

	Sent    []SentMessage
	Fetches []bool
}

// SentMessage records one SendSMS call on the mock.
type SentMessage struct {
	Recipients []string
	Message    string
}

// NewMockClient returns a mock that answers 200 with an empty list and
// 201 {"success": true} for sends.
func NewMockClient() *MockClient {
	return &MockClient{
		SendResult:  &Result{StatusCode: 201, Payload: map[string]any{"success": true}},
		FetchResult: &Result{StatusCode: 200, Payload: []any{}},
	}
}

func (m *MockClient) SendSMS(ctx context.Context, recipients []string, message string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{Recipients: append([]string(nil), recipients...), Message: message})
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	return m.SendResult, nil
}

func (m *MockClient) FetchMessages(ctx context.Context, receivedOnly bool) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches = append(m.Fetches, receivedOnly)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.FetchResult, nil
}

// SentCount returns the number of SendSMS calls seen so far.
func (m *MockClient) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
