// Package textbee wraps the TextBee SMS gateway REST API.
package textbee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/TextPipe/internal/gateway"
	"github.com/BTreeMap/TextPipe/internal/models"
)

const (
	// DefaultBaseURL is the public TextBee API root.
	DefaultBaseURL = "https://api.textbee.dev/api/v1"
	// DefaultTimeout bounds every HTTP call.
	DefaultTimeout = 30 * time.Second
	// APIKeyHeader carries the account API key.
	APIKeyHeader = "x-api-key"
)

// Compile-time check that Client implements gateway.Gateway.
var _ gateway.Gateway = (*Client)(nil)

// Opts holds configuration options for the TextBee client.
type Opts struct {
	BaseURL    string
	APIKey     string
	DeviceID   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the TextBee client.
type Option func(*Opts)

// WithBaseURL overrides the API root, e.g. to point at a mock server.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAPIKey sets the x-api-key header value.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithDeviceID sets the device path segment.
func WithDeviceID(id string) Option {
	return func(o *Opts) { o.DeviceID = id }
}

// WithTimeout sets the per-call timeout ceiling.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient injects a preconfigured HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client talks to one TextBee device.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	deviceID string
}

// NewClient builds a client. API key and device id are required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	slog.Debug("TextBee client config loaded",
		"base_url", cfg.BaseURL,
		"api_key_set", cfg.APIKey != "",
		"device_id_set", cfg.DeviceID != "",
		"timeout", cfg.Timeout)

	if cfg.APIKey == "" || cfg.DeviceID == "" {
		return nil, fmt.Errorf("api key and device id must be provided")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http:     hc,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		deviceID: cfg.DeviceID,
	}, nil
}

// SendURL is the device send endpoint.
func (c *Client) SendURL() string {
	return fmt.Sprintf("%s/gateway/devices/%s/send-sms", c.baseURL, c.deviceID)
}

// MessagesURL is the combined (sent and received) listing.
func (c *Client) MessagesURL() string {
	return fmt.Sprintf("%s/gateway/devices/%s/messages", c.baseURL, c.deviceID)
}

// ReceivedURL is the received-only listing.
func (c *Client) ReceivedURL() string {
	return fmt.Sprintf("%s/gateway/devices/%s/get-received-sms", c.baseURL, c.deviceID)
}

// SendSMS posts {recipients, message} to the send endpoint.
func (c *Client) SendSMS(ctx context.Context, recipients []string, message string) (*gateway.Result, error) {
	body, err := json.Marshal(models.SendRequest{Recipients: recipients, Message: message})
	if err != nil {
		return nil, fmt.Errorf("failed to encode send request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.SendURL(), body)
}

// FetchMessages gets the message envelope from the configured listing.
func (c *Client) FetchMessages(ctx context.Context, receivedOnly bool) (*gateway.Result, error) {
	url := c.MessagesURL()
	if receivedOnly {
		url = c.ReceivedURL()
	}
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*gateway.Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("TextBee request", "method", method, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	slog.Debug("TextBee response", "method", method, "url", url, "status", resp.StatusCode, "bytes", len(raw))
	return &gateway.Result{StatusCode: resp.StatusCode, Payload: gateway.DecodePayload(raw)}, nil
}
