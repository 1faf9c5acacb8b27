// Package api exposes TextPipe over HTTP: sending, message history,
// contacts, scheduled messages and poller status.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/TextPipe/internal/messaging"
	"github.com/BTreeMap/TextPipe/internal/store"
)

// Server timeouts.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// SeenCounter reports the size of the poller's seen-set.
type SeenCounter interface {
	Seen() int
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP routes to the sender and the stores.
type Server struct {
	sender   *messaging.Sender
	history  store.MessageStore
	outbox   store.OutboxRepo
	contacts store.ContactStore
	seen     SeenCounter
	addr     string
	router   *chi.Mux
}

// NewServer builds the router. seen may be nil when no poller is running.
func NewServer(sender *messaging.Sender, history store.MessageStore, outbox store.OutboxRepo, contacts store.ContactStore, seen SeenCounter, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		sender:   sender,
		history:  history,
		outbox:   outbox,
		contacts: contacts,
		seen:     seen,
		addr:     cfg.Addr,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(requestLog)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Post("/send", s.sendHandler)
	r.Route("/messages", func(r chi.Router) {
		r.Get("/", s.messagesHandler)
		r.Get("/{participant}/recipients", s.recipientsHandler)
		r.Get("/{participant}/conversation/{other}", s.conversationHandler)
	})
	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", s.listContactsHandler)
		r.Post("/", s.saveContactHandler)
	})
	r.Route("/schedule", func(r chi.Router) {
		r.Post("/", s.scheduleHandler)
		r.Get("/", s.listScheduledHandler)
		r.Delete("/{id}", s.cancelScheduledHandler)
	})
	r.Get("/seen", s.seenHandler)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: TextPipe API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	return nil
}
