// Package inbox polls the SMS gateway and logs every message not seen before.
package inbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/TextPipe/internal/activity"
	"github.com/BTreeMap/TextPipe/internal/gateway"
	"github.com/BTreeMap/TextPipe/internal/models"
	"github.com/BTreeMap/TextPipe/internal/store"
)

// DefaultPollInterval is the fixed sleep between two poll cycles.
const DefaultPollInterval = 10 * time.Second

// SourcePoll tags message records discovered by polling.
const SourcePoll = "poll"

// timestampLayouts are tried in order when copying a gateway timestamp into history.
var timestampLayouts = []string{time.RFC3339Nano, time.RFC1123Z, time.RFC1123}

// Opts holds optional poller settings.
type Opts struct {
	ReceivedOnly bool
	Interval     time.Duration
	History      store.MessageStore
}

// Option defines a configuration option for the poller.
type Option func(*Opts)

// WithReceivedOnly selects the received-only listing.
func WithReceivedOnly(v bool) Option {
	return func(o *Opts) { o.ReceivedOnly = v }
}

// WithInterval sets the sleep between cycles.
func WithInterval(d time.Duration) Option {
	return func(o *Opts) { o.Interval = d }
}

// WithHistory copies newly observed messages into a message store.
func WithHistory(h store.MessageStore) Option {
	return func(o *Opts) { o.History = h }
}

// Poller owns the in-memory seen-set. It is not safe for concurrent PollOnce
// calls; Seen may be called from any goroutine.
type Poller struct {
	gw           gateway.Gateway
	seenStore    store.SeenStore
	seen         store.SeenSet
	seenCount    atomic.Int64
	log          *activity.Logger
	history      store.MessageStore
	receivedOnly bool
	interval     time.Duration
}

// NewPoller loads the seen-set once and returns a ready poller.
func NewPoller(gw gateway.Gateway, seenStore store.SeenStore, log *activity.Logger, opts ...Option) *Poller {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	seen := seenStore.Load()
	slog.Info("Poller.NewPoller: seen-set loaded", "count", seen.Len(), "received_only", cfg.ReceivedOnly, "interval", cfg.Interval)
	p := &Poller{
		gw:           gw,
		seenStore:    seenStore,
		seen:         seen,
		log:          log,
		history:      cfg.History,
		receivedOnly: cfg.ReceivedOnly,
		interval:     cfg.Interval,
	}
	p.seenCount.Store(int64(seen.Len()))
	return p
}

// Seen returns the number of identifiers currently in the seen-set.
func (p *Poller) Seen() int {
	return int(p.seenCount.Load())
}

// PollOnce runs one cycle and returns the number of newly seen identifiers.
// Records without an identifier are logged every cycle and never counted.
// Errors are logged; nothing escapes the cycle.
func (p *Poller) PollOnce(ctx context.Context) int {
	cycleID := uuid.NewString()
	res, err := p.gw.FetchMessages(ctx, p.receivedOnly)
	if err != nil {
		slog.Error("Poller.PollOnce: fetch failed", "cycle", cycleID, "error", err)
		p.record(activity.EventPollError, activity.Record{"error": err.Error(), "cycle_id": cycleID})
		return 0
	}
	slog.Info("Poller.PollOnce: poll response", "cycle", cycleID, "status", res.StatusCode)
	p.record(activity.EventPoll, activity.Record{"status": res.StatusCode, "payload": res.Payload, "cycle_id": cycleID})

	records := models.Normalize(res.Payload)
	slog.Info("Poller.PollOnce: normalized messages found", "cycle", cycleID, "count", len(records))

	newIDs := 0
	for _, r := range records {
		id, hasID := r.ID()
		if hasID && p.seen.Has(id) {
			continue
		}
		direction := r.Direction()
		if err := p.record(direction+"_sms", activity.Record{"message": r, "source": SourcePoll, "cycle_id": cycleID}); err != nil {
			// Left out of the seen-set so the next cycle logs it again.
			continue
		}
		slog.Info("[LOGGED] " + r.Summary(p.log.Now()))

		if hasID {
			p.seen.Add(id)
			newIDs++
			p.addHistory(id, direction, r)
		}
	}

	if newIDs > 0 {
		p.seenCount.Store(int64(p.seen.Len()))
		if err := p.seenStore.Save(p.seen); err != nil {
			slog.Error("Poller.PollOnce: failed to save seen-set", "cycle", cycleID, "error", err)
		} else {
			slog.Info("Poller.PollOnce: saved new IDs", "cycle", cycleID, "new", newIDs, "total", p.seen.Len())
		}
	}
	return newIDs
}

// Run polls until ctx is cancelled, sleeping a fixed interval between cycles.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("Poller.Run: inbox poller running", "interval", p.interval, "activity_log", p.log.Path())
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for ctx.Err() == nil {
		p.PollOnce(ctx)

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	slog.Info("Poller.Run: stopping poller", "seen", p.seen.Len())
}

func (p *Poller) record(event string, fields activity.Record) error {
	err := p.log.Log(event, fields)
	if err != nil {
		slog.Error("Poller: failed to write activity record", "event", event, "error", err)
	}
	return err
}

func (p *Poller) addHistory(id, direction string, r models.Record) {
	if p.history == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		slog.Warn("Poller.addHistory: failed to encode record", "id", id, "error", err)
	}
	entry := models.MessageEntry{
		GatewayID: id,
		Sender:    r.Sender(),
		Recipient: r.Recipient(),
		Body:      r.Body(),
		Direction: direction,
		Timestamp: parseTimestamp(r.Timestamp()),
		RawJSON:   string(raw),
	}
	if _, err := p.history.AddMessage(entry); err != nil {
		slog.Error("Poller.addHistory: failed to store message", "id", id, "error", err)
	}
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
