package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BTreeMap/TextPipe/internal/activity"
	"github.com/BTreeMap/TextPipe/internal/config"
	"github.com/BTreeMap/TextPipe/internal/gateway"
	"github.com/BTreeMap/TextPipe/internal/store"
	"github.com/BTreeMap/TextPipe/internal/textbee"
	"github.com/BTreeMap/TextPipe/internal/twiliosms"
)

// Log file names inside the log directory.
const (
	InboxActivityLog  = "textpipe_inbox.jsonl"
	SenderActivityLog = "textpipe_sender.jsonl"
	InboxTextLog      = "textpipe_inbox.log"
	SenderTextLog     = "textpipe_sender.log"
	ServerTextLog     = "textpipe_server.log"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "textpipe",
		Short:         "SMS gateway inbox poller and sender",
		Long:          "TextPipe polls an SMS gateway for new messages, sends outbound SMS and serves a small HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(newPollCmd(), newSendCmd(), newServeCmd())
	return root
}

// loadConfig merges .env, the config file, environment and flags, then checks
// credentials before any network activity.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initializeLogger mirrors slog text output to stdout and a file in the log
// directory. The returned func closes the file.
func initializeLogger(cfg *config.Config, name string) (func(), error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.LogDir, err)
	}
	f, err := os.OpenFile(cfg.LogPath(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, activity.DefaultFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open text log: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, f), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return func() { f.Close() }, nil
}

// fromNumber is the sending number recorded in history. TextBee does not
// report the device number, so it stays empty there.
func fromNumber(cfg *config.Config) string {
	if cfg.Provider == config.ProviderTwilio {
		return cfg.TwilioFromNumber
	}
	return ""
}

// buildGateway constructs the configured provider's client.
func buildGateway(cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.Provider {
	case config.ProviderTwilio:
		c, err := twiliosms.NewClient(
			twiliosms.WithAccountSID(cfg.TwilioAccountSID),
			twiliosms.WithAuthToken(cfg.TwilioAuthToken),
			twiliosms.WithFromNumber(cfg.TwilioFromNumber),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return c, nil
	case config.ProviderTextBee:
		c, err := textbee.NewClient(
			textbee.WithBaseURL(cfg.BaseURL),
			textbee.WithAPIKey(cfg.APIKey),
			textbee.WithDeviceID(cfg.DeviceID),
			textbee.WithTimeout(cfg.HTTPTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create TextBee client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// buildSeenStore picks the file or database backend for the seen-set. st may
// be nil when no database is open.
func buildSeenStore(cfg *config.Config, st store.Store) (store.SeenStore, error) {
	if cfg.SeenBackend == config.SeenBackendDB {
		if st == nil {
			return nil, fmt.Errorf("seen backend %q requires a database", config.SeenBackendDB)
		}
		return store.NewDedupSeenStore(st), nil
	}
	return store.NewFileSeenStore(cfg.SeenFilePath()), nil
}

// openStore opens the database at cfg.DBDSN. With required unset a failure is
// logged and a nil store is returned so the caller can run without history.
func openStore(cfg *config.Config, required bool) (store.Store, error) {
	slog.Debug("openStore: opening database", "dsn_type", store.DetectDSNType(cfg.DBDSN))
	st, err := store.NewStore(cfg.DBDSN)
	if err != nil {
		if required {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		slog.Warn("openStore: continuing without message history", "error", err)
		return nil, nil
	}
	return st, nil
}

// resolveSendArgs applies the positional overrides: the first argument
// replaces the default recipients, the second the default message.
func resolveSendArgs(args []string, cfg *config.Config) ([]string, string) {
	recipients := cfg.DefaultRecipients
	message := cfg.DefaultMessage
	if len(args) > 0 {
		recipients = []string{args[0]}
	}
	if len(args) > 1 {
		message = args[1]
	}
	return recipients, message
}
