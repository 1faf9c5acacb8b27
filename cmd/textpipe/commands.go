package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/TextPipe/internal/activity"
	"github.com/BTreeMap/TextPipe/internal/api"
	"github.com/BTreeMap/TextPipe/internal/config"
	"github.com/BTreeMap/TextPipe/internal/inbox"
	"github.com/BTreeMap/TextPipe/internal/lockfile"
	"github.com/BTreeMap/TextPipe/internal/messaging"
	"github.com/BTreeMap/TextPipe/internal/store"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Poll the gateway inbox until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runPoll(cmd.Context(), cfg)
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [recipient] [message]",
		Short: "Send one SMS through the gateway",
		Long:  "Send one SMS. The first argument replaces the default recipients and the second the default message.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), cfg, args)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poller, scheduled sends and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runPoll(ctx context.Context, cfg *config.Config) error {
	closeLog, err := initializeLogger(cfg, InboxTextLog)
	if err != nil {
		return err
	}
	defer closeLog()

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	gw, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(cfg, cfg.SeenBackend == config.SeenBackendDB)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	seenStore, err := buildSeenStore(cfg, st)
	if err != nil {
		return err
	}

	actLog, err := activity.Open(cfg.LogPath(InboxActivityLog))
	if err != nil {
		return err
	}
	defer actLog.Close()

	opts := []inbox.Option{
		inbox.WithReceivedOnly(cfg.ReceivedOnly),
		inbox.WithInterval(cfg.PollInterval),
	}
	if st != nil {
		opts = append(opts, inbox.WithHistory(st))
	}
	poller := inbox.NewPoller(gw, seenStore, actLog, opts...)

	slog.Info("runPoll: polling inbox", "provider", cfg.Provider, "interval", cfg.PollInterval, "received_only", cfg.ReceivedOnly, "seen", poller.Seen())
	poller.Run(ctx)
	slog.Info("runPoll: stopped", "seen", poller.Seen())
	return nil
}

// runSend sends one message. Transport failures are logged, not returned.
func runSend(ctx context.Context, cfg *config.Config, args []string) error {
	closeLog, err := initializeLogger(cfg, SenderTextLog)
	if err != nil {
		return err
	}
	defer closeLog()

	gw, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	var opts []messaging.Option
	if st != nil {
		defer st.Close()
		opts = append(opts, messaging.WithHistory(st), messaging.WithFromNumber(fromNumber(cfg)))
	}

	actLog, err := activity.Open(cfg.LogPath(SenderActivityLog))
	if err != nil {
		return err
	}
	defer actLog.Close()

	recipients, message := resolveSendArgs(args, cfg)
	sender := messaging.NewSender(gw, actLog, opts...)
	payload, err := sender.Send(ctx, recipients, message)
	if errors.Is(err, messaging.ErrNoRecipients) {
		return err
	}
	if err != nil {
		slog.Error("runSend: send failed", "error", err, "recipients", recipients)
		return nil
	}
	slog.Info("runSend: gateway response", "recipients", recipients, "response", payload)
	return nil
}

// runServe runs the poller, the outbox sender and the HTTP API until ctx is
// cancelled or the server fails.
func runServe(ctx context.Context, cfg *config.Config) error {
	closeLog, err := initializeLogger(cfg, ServerTextLog)
	if err != nil {
		return err
	}
	defer closeLog()

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	gw, err := buildGateway(cfg)
	if err != nil {
		return err
	}
	seenStore, err := buildSeenStore(cfg, st)
	if err != nil {
		return err
	}

	inboxLog, err := activity.Open(cfg.LogPath(InboxActivityLog))
	if err != nil {
		return err
	}
	defer inboxLog.Close()
	senderLog, err := activity.Open(cfg.LogPath(SenderActivityLog))
	if err != nil {
		return err
	}
	defer senderLog.Close()

	poller := inbox.NewPoller(gw, seenStore, inboxLog,
		inbox.WithReceivedOnly(cfg.ReceivedOnly),
		inbox.WithInterval(cfg.PollInterval),
		inbox.WithHistory(st))
	sender := messaging.NewSender(gw, senderLog, messaging.WithHistory(st), messaging.WithFromNumber(fromNumber(cfg)))

	outbox := store.NewOutboxSender(st, sender.SendScheduled, cfg.ScheduleInterval)
	if err := outbox.RecoverStaleMessages(); err != nil {
		slog.Error("runServe: failed to recover stale outbox messages", "error", err)
	}

	server := api.NewServer(sender, st, st, st, poller, api.WithAddr(cfg.APIAddr))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		outbox.Run(ctx)
	}()

	slog.Info("runServe: TextPipe started", "provider", cfg.Provider, "api_addr", cfg.APIAddr)
	serveErr := server.Run(ctx)
	cancel()
	wg.Wait()
	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	slog.Info("runServe: TextPipe stopped")
	return nil
}
