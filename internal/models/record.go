package models

import (
	"fmt"
	"strings"
)

// Record is one message as returned by the gateway. No schema is enforced;
// fields are read through accessors that report absence instead of failing.
type Record map[string]any

// Key groups consulted on a record, in priority order.
var (
	IDKeys        = []string{"id", "message_id", "_id", "uuid"}
	DirectionKeys = []string{"direction", "type"}
	SenderKeys    = []string{"from", "sender"}
	RecipientKeys = []string{"to", "recipient"}
	BodyKeys      = []string{"message", "text", "body"}
	TimestampKeys = []string{"timestamp", "created_at"}
)

// summaryBodyLimit caps the body length written to the text log.
const summaryBodyLimit = 120

// String returns the value under key when it is present and a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether key is present, whatever its value.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// ID returns the first identifier under IDKeys that is a string with
// non-whitespace content. The value is returned as stored.
func (r Record) ID() (string, bool) {
	for _, k := range IDKeys {
		if s, ok := r.String(k); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// Direction returns the lower-cased direction tag, defaulting to "received".
func (r Record) Direction() string {
	if d := r.firstString(DirectionKeys...); d != "" {
		return strings.ToLower(d)
	}
	return DirectionReceived
}

// Sender returns the first non-empty sender field.
func (r Record) Sender() string { return r.firstString(SenderKeys...) }

// Recipient returns the first non-empty recipient field.
func (r Record) Recipient() string { return r.firstString(RecipientKeys...) }

// Body returns the first non-empty body field.
func (r Record) Body() string { return r.firstString(BodyKeys...) }

// Timestamp returns the first non-empty timestamp field rendered as text.
func (r Record) Timestamp() string { return r.firstValue(TimestampKeys...) }

// Summary renders a single line for the human-readable log.
func (r Record) Summary(now string) string {
	from := r.firstValue(SenderKeys...)
	if from == "" {
		from = "?"
	}
	to := r.firstValue(RecipientKeys...)
	if to == "" {
		to = "?"
	}
	ts := r.Timestamp()
	if ts == "" {
		ts = now
	}
	body := r.Body()
	if runes := []rune(body); len(runes) > summaryBodyLimit {
		body = string(runes[:summaryBodyLimit])
	}
	body = strings.ReplaceAll(body, "\n", " ")
	return fmt.Sprintf("%s | from=%s -> to=%s | %s", ts, from, to, body)
}

func (r Record) firstString(keys ...string) string {
	for _, k := range keys {
		if s, ok := r.String(k); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstValue is like firstString but also accepts non-string values such as
// numeric timestamps.
func (r Record) firstValue(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString {
			if s != "" {
				return s
			}
			continue
		}
		return fmt.Sprint(v)
	}
	return ""
}
