// Package twiliosms adapts the Twilio Messages API to the TextPipe gateway interface.
package twiliosms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/BTreeMap/TextPipe/internal/gateway"
)

// DefaultListLimit caps how many messages one poll pulls from Twilio.
const DefaultListLimit = 50

// Compile-time check that Client implements gateway.Gateway.
var _ gateway.Gateway = (*Client)(nil)

// MessageAPI is the subset of the Twilio v2010 API the client uses.
type MessageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	ListMessage(params *twilioApi.ListMessageParams) ([]twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	ListLimit  int
	API        MessageAPI
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the account SID used as the basic-auth user.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the auth token used as the basic-auth password.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending number, which also identifies received messages.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithListLimit caps the number of messages returned per fetch.
func WithListLimit(n int) Option {
	return func(o *Opts) { o.ListLimit = n }
}

// WithAPI injects the Twilio API implementation (tests).
func WithAPI(api MessageAPI) Option {
	return func(o *Opts) { o.API = api }
}

// Client sends and lists SMS through Twilio.
type Client struct {
	api        MessageAPI
	fromNumber string
	listLimit  int
}

// NewClient builds a client, falling back to TWILIO_* environment variables
// for credentials not passed as options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultListLimit
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}
	if cfg.API == nil {
		if cfg.AccountSID == "" || cfg.AuthToken == "" {
			return nil, fmt.Errorf("account SID and auth token must be provided")
		}
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		cfg.API = rest.Api
	}

	return &Client{api: cfg.API, fromNumber: cfg.FromNumber, listLimit: cfg.ListLimit}, nil
}

// SendSMS creates one Twilio message per recipient. The first API error stops
// the batch and is surfaced as the HTTP-layer result rather than a Go error.
func (c *Client) SendSMS(ctx context.Context, recipients []string, message string) (*gateway.Result, error) {
	sent := make([]any, 0, len(recipients))
	for _, to := range recipients {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(c.fromNumber)
		params.SetBody(message)

		msg, err := c.api.CreateMessage(params)
		if err != nil {
			if res, ok := restErrorResult(err); ok {
				slog.Warn("Twilio SendSMS rejected", "to", to, "status", res.StatusCode)
				return res, nil
			}
			slog.Error("Twilio SendSMS failed", "to", to, "error", err)
			return nil, fmt.Errorf("failed to send message to %s: %w", to, err)
		}
		sent = append(sent, toRecord(*msg))
		slog.Debug("Twilio message sent", "to", to)
	}
	return &gateway.Result{StatusCode: http.StatusCreated, Payload: map[string]any{"messages": sent}}, nil
}

// FetchMessages lists recent messages. Received-only restricts the listing to
// messages addressed to the configured number.
func (c *Client) FetchMessages(ctx context.Context, receivedOnly bool) (*gateway.Result, error) {
	params := &twilioApi.ListMessageParams{}
	params.SetLimit(c.listLimit)
	if receivedOnly {
		params.SetTo(c.fromNumber)
	}

	msgs, err := c.api.ListMessage(params)
	if err != nil {
		if res, ok := restErrorResult(err); ok {
			return res, nil
		}
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	records := make([]any, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, toRecord(m))
	}
	return &gateway.Result{StatusCode: http.StatusOK, Payload: map[string]any{"messages": records}}, nil
}

// toRecord reshapes a Twilio message into an open record, copying "sid" to
// "id" so that the poller can deduplicate it.
func toRecord(m twilioApi.ApiV2010Message) map[string]any {
	rec := map[string]any{}
	if raw, err := json.Marshal(m); err == nil {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		_ = dec.Decode(&rec)
	}
	if m.Sid != nil {
		rec["id"] = *m.Sid
	}
	if m.DateCreated != nil {
		rec["created_at"] = *m.DateCreated
	}
	return rec
}

func restErrorResult(err error) (*gateway.Result, bool) {
	var restErr *twilioClient.TwilioRestError
	if !errors.As(err, &restErr) {
		return nil, false
	}
	return &gateway.Result{
		StatusCode: restErr.Status,
		Payload: map[string]any{
			"code":      restErr.Code,
			"message":   restErr.Message,
			"more_info": restErr.MoreInfo,
			"status":    restErr.Status,
		},
	}, true
}
