package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/TextPipe/internal/models"
	"github.com/BTreeMap/TextPipe/internal/store"
)

// MaxRequestBytes bounds JSON request bodies.
const MaxRequestBytes = 1 << 20

// internalErrorBody is sent when a response value cannot be encoded.
const internalErrorBody = `{"status":"error","message":"Internal server error"}`

var errInvalidLimit = errors.New("limit must be a positive integer")

// respond encodes body before touching the header so an encoding failure
// can still become a clean 500.
func respond(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("Server.respond: encode failed", "error", err, "status", status)
		status = http.StatusInternalServerError
		data = []byte(internalErrorBody)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Debug("Server.respond: write failed", "error", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, models.Success(nil))
}

// sendHandler submits an SMS through the sender and returns the gateway payload.
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.sendHandler: invalid JSON", "error", err, "request_id", RequestIDFrom(r.Context()))
		respond(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	recipients := make([]string, 0, len(req.Recipients))
	for _, rcpt := range req.Recipients {
		if rcpt = strings.TrimSpace(rcpt); rcpt != "" {
			recipients = append(recipients, rcpt)
		}
	}
	if len(recipients) == 0 {
		respond(w, http.StatusBadRequest, models.Error("At least one recipient is required"))
		return
	}
	if req.Message == "" {
		respond(w, http.StatusBadRequest, models.Error("Message is required"))
		return
	}

	payload, err := s.sender.Send(r.Context(), recipients, req.Message)
	if err != nil {
		slog.Error("Server.sendHandler: send failed", "error", err, "recipients", len(recipients), "request_id", RequestIDFrom(r.Context()))
		respond(w, http.StatusBadGateway, models.Error("Failed to reach SMS gateway"))
		return
	}
	respond(w, http.StatusOK, models.Success(payload))
}

// messagesHandler lists history entries, optionally filtered by participant.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	participant := r.URL.Query().Get("participant")
	limit, err := parseLimit(r)
	if err != nil {
		respond(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	entries, err := s.history.GetMessages(participant, limit)
	if err != nil {
		slog.Error("Server.messagesHandler: GetMessages failed", "error", err, "participant", participant)
		respond(w, http.StatusInternalServerError, models.Error("Failed to load messages"))
		return
	}
	if entries == nil {
		entries = []models.MessageEntry{}
	}
	respond(w, http.StatusOK, models.Success(entries))
}

// conversationHandler lists the messages exchanged between two numbers.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	participant := chi.URLParam(r, "participant")
	other := chi.URLParam(r, "other")
	limit, err := parseLimit(r)
	if err != nil {
		respond(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	entries, err := s.history.GetConversation(participant, other, limit)
	if err != nil {
		slog.Error("Server.conversationHandler: GetConversation failed", "error", err, "participant", participant, "other", other)
		respond(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if entries == nil {
		entries = []models.MessageEntry{}
	}
	respond(w, http.StatusOK, models.Success(entries))
}

func (s *Server) recipientsHandler(w http.ResponseWriter, r *http.Request) {
	participant := chi.URLParam(r, "participant")
	recipients, err := s.history.GetRecipients(participant)
	if err != nil {
		slog.Error("Server.recipientsHandler: GetRecipients failed", "error", err, "participant", participant)
		respond(w, http.StatusInternalServerError, models.Error("Failed to load recipients"))
		return
	}
	if recipients == nil {
		recipients = []string{}
	}
	respond(w, http.StatusOK, models.Success(recipients))
}

func (s *Server) listContactsHandler(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.GetContacts()
	if err != nil {
		slog.Error("Server.listContactsHandler: GetContacts failed", "error", err)
		respond(w, http.StatusInternalServerError, models.Error("Failed to load contacts"))
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	respond(w, http.StatusOK, models.Success(contacts))
}

// saveContactHandler creates a contact or updates the one with the same number.
func (s *Server) saveContactHandler(w http.ResponseWriter, r *http.Request) {
	var c models.Contact
	if err := decodeJSON(w, r, &c); err != nil {
		slog.Warn("Server.saveContactHandler: invalid JSON", "error", err, "request_id", RequestIDFrom(r.Context()))
		respond(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	c.Name = strings.TrimSpace(c.Name)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	if err := c.Validate(); err != nil {
		respond(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	saved, err := s.contacts.SaveContact(c)
	if err != nil {
		slog.Error("Server.saveContactHandler: SaveContact failed", "error", err, "phone_number", c.PhoneNumber)
		respond(w, http.StatusInternalServerError, models.Error("Failed to save contact"))
		return
	}
	respond(w, http.StatusOK, models.Success(saved))
}

// scheduleHandler queues a message for delivery at send_at.
func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.scheduleHandler: invalid JSON", "error", err, "request_id", RequestIDFrom(r.Context()))
		respond(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		respond(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	id, err := s.outbox.EnqueueOutboxMessage(req.Recipient, req.Message, req.SendAt.UTC(), req.DedupeKey)
	if err != nil {
		slog.Error("Server.scheduleHandler: enqueue failed", "error", err, "recipient", req.Recipient)
		respond(w, http.StatusInternalServerError, models.Error("Failed to schedule message"))
		return
	}
	slog.Info("Server.scheduleHandler: message scheduled", "id", id, "recipient", req.Recipient, "send_at", req.SendAt)
	respond(w, http.StatusCreated, models.Scheduled(map[string]string{"id": id}))
}

func (s *Server) listScheduledHandler(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")
	msgs, err := s.outbox.ListOutboxMessages(recipient)
	if err != nil {
		slog.Error("Server.listScheduledHandler: list failed", "error", err, "recipient", recipient)
		respond(w, http.StatusInternalServerError, models.Error("Failed to list scheduled messages"))
		return
	}
	if msgs == nil {
		msgs = []store.OutboxMessage{}
	}
	respond(w, http.StatusOK, models.Success(msgs))
}

func (s *Server) cancelScheduledHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.outbox.CancelOutboxMessage(id); err != nil {
		if errors.Is(err, store.ErrOutboxMessageNotFound) {
			respond(w, http.StatusNotFound, models.Error("Scheduled message not found or no longer queued"))
			return
		}
		slog.Error("Server.cancelScheduledHandler: cancel failed", "error", err, "id", id)
		respond(w, http.StatusInternalServerError, models.Error("Failed to cancel scheduled message"))
		return
	}
	respond(w, http.StatusOK, models.Success(map[string]string{"id": id}))
}

// seenHandler reports how many message ids the poller has recorded.
func (s *Server) seenHandler(w http.ResponseWriter, r *http.Request) {
	count := 0
	if s.seen != nil {
		count = s.seen.Seen()
	}
	respond(w, http.StatusOK, models.Success(map[string]int{"count": count}))
}

// parseLimit reads the optional limit query parameter. Zero means the store default.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	return n, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes)).Decode(dst)
}
