// Package messaging submits outbound SMS through the gateway and records each attempt.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/TextPipe/internal/activity"
	"github.com/BTreeMap/TextPipe/internal/gateway"
	"github.com/BTreeMap/TextPipe/internal/models"
	"github.com/BTreeMap/TextPipe/internal/store"
)

// ErrNoRecipients is returned when Send is called with an empty recipient list.
var ErrNoRecipients = errors.New("at least one recipient is required")

// Opts holds optional sender settings.
type Opts struct {
	History store.MessageStore
	// From is stored as the sender of history entries. Empty when the
	// gateway does not expose the sending number.
	From string
}

// Option defines a configuration option for the sender.
type Option func(*Opts)

// WithHistory records accepted sends in a message store.
func WithHistory(h store.MessageStore) Option {
	return func(o *Opts) { o.History = h }
}

// WithFromNumber sets the number recorded as the sender in history.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.From = from }
}

// Sender submits one message per call. Calls are serialized.
type Sender struct {
	mu      sync.Mutex
	gw      gateway.Gateway
	log     *activity.Logger
	history store.MessageStore
	from    string
	now     func() time.Time
}

// NewSender builds a sender writing its activity to log.
func NewSender(gw gateway.Gateway, log *activity.Logger, opts ...Option) *Sender {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Sender{gw: gw, log: log, history: cfg.History, from: cfg.From, now: time.Now}
}

// Send submits message to recipients and returns the gateway's parsed
// response. The gateway's verdict is not inspected: every HTTP outcome is
// logged and returned as-is. Only a transport failure returns an error.
func (s *Sender) Send(ctx context.Context, recipients []string, message string) (any, error) {
	res, err := s.send(ctx, recipients, message)
	if err != nil {
		return nil, err
	}
	return res.Payload, nil
}

// SendScheduled delivers one outbox message. Unlike Send, a non-2xx status
// is reported as an error so the outbox marks the message failed.
func (s *Sender) SendScheduled(ctx context.Context, msg store.OutboxMessage) error {
	res, err := s.send(ctx, []string{msg.Recipient}, msg.Body)
	if err != nil {
		return err
	}
	if !isSuccess(res.StatusCode) {
		return fmt.Errorf("gateway returned HTTP %d", res.StatusCode)
	}
	return nil
}

func (s *Sender) send(ctx context.Context, recipients []string, message string) (*gateway.Result, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	req := models.SendRequest{Recipients: recipients, Message: message}

	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("Sender.Send: sending SMS", "recipients", len(recipients))
	res, err := s.gw.SendSMS(ctx, recipients, message)
	if err != nil {
		slog.Error("Sender.Send: request failed", "error", err)
		s.record(activity.EventSendError, activity.Record{"request": req, "error": err.Error()})
		return nil, fmt.Errorf("send failed: %w", err)
	}

	slog.Info("Sender.Send: response", "status", res.StatusCode)
	s.record(activity.EventSent, activity.Record{
		"http_status": res.StatusCode,
		"request":     req,
		"response":    res.Payload,
	})

	if isSuccess(res.StatusCode) {
		s.addHistory(req, res.Payload)
	}
	return res, nil
}

func (s *Sender) record(event string, fields activity.Record) {
	if err := s.log.Log(event, fields); err != nil {
		slog.Error("Sender: failed to write activity record", "event", event, "error", err)
	}
}

func (s *Sender) addHistory(req models.SendRequest, response any) {
	if s.history == nil {
		return
	}
	raw, _ := json.Marshal(response)
	now := s.now()
	for _, to := range req.Recipients {
		entry := models.MessageEntry{
			Sender:    s.from,
			Recipient: to,
			Body:      req.Message,
			Direction: models.DirectionSent,
			Timestamp: now,
			RawJSON:   string(raw),
		}
		if _, err := s.history.AddMessage(entry); err != nil {
			slog.Error("Sender.addHistory: failed to store message", "to", to, "error", err)
		}
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
