// Package config assembles TextPipe's runtime configuration from a .env file,
// an optional YAML config file, TEXTPIPE_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Provider names.
const (
	ProviderTextBee = "textbee"
	ProviderTwilio  = "twilio"
)

// Seen-set backends.
const (
	SeenBackendFile = "file"
	SeenBackendDB   = "db"
)

// Defaults for every configurable value.
const (
	EnvPrefix               = "TEXTPIPE"
	PlaceholderPrefix       = "YOUR_"
	DefaultProvider         = ProviderTextBee
	DefaultBaseURL          = "https://api.textbee.dev/api/v1"
	DefaultPollInterval     = 10 * time.Second
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultScheduleInterval = time.Minute
	DefaultStateDir         = "state"
	DefaultLogDir           = "logs"
	DefaultDBFileName       = "textpipe.db"
	DefaultSeenFileName     = "seen_ids.json"
	DefaultMessage          = "Hello from TextBee!"
	DefaultAPIAddr          = ":8080"
	DefaultLogLevel         = "debug"
)

// DefaultRecipients is used by `send` when no recipient argument is given.
var DefaultRecipients = []string{"+16617420018"}

// ErrMissingCredentials is returned by Validate when gateway credentials are
// absent or still hold a placeholder value.
var ErrMissingCredentials = errors.New("missing gateway credentials")

// Flag and configuration keys.
const (
	KeyConfig            = "config"
	KeyProvider          = "provider"
	KeyBaseURL           = "base-url"
	KeyAPIKey            = "api-key"
	KeyDeviceID          = "device-id"
	KeyTwilioAccountSID  = "twilio-account-sid"
	KeyTwilioAuthToken   = "twilio-auth-token"
	KeyTwilioFromNumber  = "twilio-from-number"
	KeyReceivedOnly      = "received-only"
	KeyPollInterval      = "poll-interval"
	KeyHTTPTimeout       = "http-timeout"
	KeyStateDir          = "state-dir"
	KeyLogDir            = "log-dir"
	KeyDBDSN             = "db-dsn"
	KeySeenBackend       = "seen-backend"
	KeyDefaultRecipients = "default-recipients"
	KeyDefaultMessage    = "default-message"
	KeyAPIAddr           = "api-addr"
	KeyScheduleInterval  = "schedule-interval"
	KeyLogLevel          = "log-level"
)

// Config is built once at startup and passed to every component.
type Config struct {
	Provider string

	BaseURL  string
	APIKey   string
	DeviceID string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	ReceivedOnly     bool
	PollInterval     time.Duration
	HTTPTimeout      time.Duration
	ScheduleInterval time.Duration

	StateDir    string
	LogDir      string
	DBDSN       string
	SeenBackend string

	DefaultRecipients []string
	DefaultMessage    string

	APIAddr  string
	LogLevel string
}

// BindFlags registers every configuration flag on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "path to a YAML config file (default ./textpipe.yaml if present)")
	fs.String(KeyProvider, DefaultProvider, "SMS gateway provider: textbee or twilio")
	fs.String(KeyBaseURL, DefaultBaseURL, "TextBee API base URL")
	fs.String(KeyAPIKey, "", "TextBee API key")
	fs.String(KeyDeviceID, "", "TextBee device id")
	fs.String(KeyTwilioAccountSID, "", "Twilio account SID")
	fs.String(KeyTwilioAuthToken, "", "Twilio auth token")
	fs.String(KeyTwilioFromNumber, "", "Twilio sending number")
	fs.Bool(KeyReceivedOnly, false, "poll the received-only listing instead of all messages")
	fs.Duration(KeyPollInterval, DefaultPollInterval, "sleep between poll cycles")
	fs.Duration(KeyHTTPTimeout, DefaultHTTPTimeout, "timeout for each gateway request")
	fs.Duration(KeyScheduleInterval, DefaultScheduleInterval, "how often scheduled messages are checked")
	fs.String(KeyStateDir, DefaultStateDir, "directory for the seen-set, lock file and default database")
	fs.String(KeyLogDir, DefaultLogDir, "directory for activity and text logs")
	fs.String(KeyDBDSN, "", "database DSN: SQLite path or Postgres URL (default <state-dir>/textpipe.db, or $DATABASE_URL)")
	fs.String(KeySeenBackend, SeenBackendFile, "seen-set backend: file or db")
	fs.StringSlice(KeyDefaultRecipients, DefaultRecipients, "recipients used by send when none is given")
	fs.String(KeyDefaultMessage, DefaultMessage, "message used by send when none is given")
	fs.String(KeyAPIAddr, DefaultAPIAddr, "listen address for the HTTP API")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level: debug, info, warn or error")
}

// LoadDotEnv loads .env files into the process environment. A missing file is
// not an error.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
}

// Load merges the config file, environment and flags in fs into a Config.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider:          strings.ToLower(strings.TrimSpace(v.GetString(KeyProvider))),
		BaseURL:           v.GetString(KeyBaseURL),
		APIKey:            v.GetString(KeyAPIKey),
		DeviceID:          v.GetString(KeyDeviceID),
		TwilioAccountSID:  v.GetString(KeyTwilioAccountSID),
		TwilioAuthToken:   v.GetString(KeyTwilioAuthToken),
		TwilioFromNumber:  v.GetString(KeyTwilioFromNumber),
		ReceivedOnly:      v.GetBool(KeyReceivedOnly),
		PollInterval:      v.GetDuration(KeyPollInterval),
		HTTPTimeout:       v.GetDuration(KeyHTTPTimeout),
		ScheduleInterval:  v.GetDuration(KeyScheduleInterval),
		StateDir:          v.GetString(KeyStateDir),
		LogDir:            v.GetString(KeyLogDir),
		DBDSN:             v.GetString(KeyDBDSN),
		SeenBackend:       strings.ToLower(v.GetString(KeySeenBackend)),
		DefaultRecipients: splitList(v.GetStringSlice(KeyDefaultRecipients)),
		DefaultMessage:    v.GetString(KeyDefaultMessage),
		APIAddr:           v.GetString(KeyAPIAddr),
		LogLevel:          v.GetString(KeyLogLevel),
	}

	if cfg.DBDSN == "" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			cfg.DBDSN = url
			slog.Debug("Using DATABASE_URL as database DSN", "dsn_set", true)
		} else {
			cfg.DBDSN = filepath.Join(cfg.StateDir, DefaultDBFileName)
		}
	}

	slog.Debug("Configuration loaded",
		"provider", cfg.Provider,
		"api_key_set", cfg.APIKey != "",
		"device_id_set", cfg.DeviceID != "",
		"twilio_sid_set", cfg.TwilioAccountSID != "",
		"received_only", cfg.ReceivedOnly,
		"state_dir", cfg.StateDir,
		"log_dir", cfg.LogDir,
		"seen_backend", cfg.SeenBackend,
		"config_file", v.ConfigFileUsed())
	return cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("textpipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// splitList flattens comma-separated entries, as given through the environment.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks the values needed before any network activity.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderTextBee:
		if isUnset(c.APIKey) || isUnset(c.DeviceID) {
			return fmt.Errorf("%w: set %s and %s", ErrMissingCredentials, KeyAPIKey, KeyDeviceID)
		}
	case ProviderTwilio:
		if isUnset(c.TwilioAccountSID) || isUnset(c.TwilioAuthToken) || isUnset(c.TwilioFromNumber) {
			return fmt.Errorf("%w: set %s, %s and %s", ErrMissingCredentials, KeyTwilioAccountSID, KeyTwilioAuthToken, KeyTwilioFromNumber)
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	switch c.SeenBackend {
	case SeenBackendFile, SeenBackendDB:
	default:
		return fmt.Errorf("unknown seen backend %q", c.SeenBackend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyHTTPTimeout)
	}
	return nil
}

func isUnset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.HasPrefix(v, PlaceholderPrefix)
}

// SeenFilePath is the file-backed seen-set location.
func (c *Config) SeenFilePath() string {
	return filepath.Join(c.StateDir, DefaultSeenFileName)
}

// LogPath returns a file name inside the log directory.
func (c *Config) LogPath(name string) string {
	return filepath.Join(c.LogDir, name)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to debug.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
