package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP            HTTPConfig
	Logging         LoggingConfig
	Store           StoreConfig
	Messaging       MessagingConfig
	Google          GoogleConfig
	Mail            MailConfig
	DefaultTimezone string
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string
	Port            int
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
	Color  bool
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend    string // memory|sqlite|mongo
	SQLitePath string
	MongoURI   string
	DBName     string
}

// MessagingConfig covers the WhatsApp gateway, inbound and outbound.
type MessagingConfig struct {
	APIURL            string
	APIKey            string
	VerifyToken       string
	WebhookSecret     string
	SignatureRequired bool
	MinSendInterval   time.Duration
	SendTimeout       time.Duration
}

// GoogleConfig is the OAuth client used to link calendars.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
}

// MailConfig configures the welcome email sender.
type MailConfig struct {
	ResendAPIKey string
	FromEmail    string
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 3 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
	defaultStoreBackend    = "sqlite"
	defaultSQLitePath      = "./data/agendabot.db"
	defaultDBName          = "agendabot"
	defaultAPIURL          = "https://www.wasenderapi.com/api/send-message"
	defaultMinInterval     = 65 * time.Second
	defaultSendTimeout     = 10 * time.Second
	defaultTimezone        = "UTC"
)

// Load reads .env (if present) and the environment, applying defaults.
func Load() (Config, error) {
	// Ignore error: in production the variables are set directly.
	_ = godotenv.Load()

	cfg := Config{
		HTTP: HTTPConfig{
			Host:           valueOrDefault("SERVER_HOST", defaultHost),
			BaseURL:        strings.TrimRight(os.Getenv("BASE_URL"), "/"),
			AllowedOrigins: splitCSV(os.Getenv("SERVER_ALLOWED_ORIGINS")),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Color:  parseBoolWithDefault("LOG_COLOR", true),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(valueOrDefault("STORE_BACKEND", defaultStoreBackend)),
			SQLitePath: valueOrDefault("SQLITE_PATH", defaultSQLitePath),
			MongoURI:   os.Getenv("MONGODB_URI"),
			DBName:     valueOrDefault("DB_NAME", defaultDBName),
		},
		Messaging: MessagingConfig{
			APIURL:            valueOrDefault("WASENDER_API_URL", defaultAPIURL),
			APIKey:            os.Getenv("WASENDER_API_KEY"),
			VerifyToken:       os.Getenv("WEBHOOK_VERIFY_TOKEN"),
			WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
			SignatureRequired: parseBoolWithDefault("WEBHOOK_SIGNATURE_REQUIRED", true),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
			StateSecret:  os.Getenv("OAUTH_STATE_SECRET"),
		},
		Mail: MailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			FromEmail:    os.Getenv("FROM_EMAIL"),
		},
		DefaultTimezone: valueOrDefault("DEFAULT_TIMEZONE", defaultTimezone),
	}

	port, err := parsePort("PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"SEND_MIN_INTERVAL", defaultMinInterval, &cfg.Messaging.MinSendInterval},
		{"SEND_TIMEOUT", defaultSendTimeout, &cfg.Messaging.SendTimeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	if cfg.Google.RedirectURL == "" && cfg.HTTP.BaseURL != "" {
		cfg.Google.RedirectURL = cfg.HTTP.BaseURL + "/oauth/google/callback"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case "memory", "sqlite":
	case "mongo":
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.Messaging.SignatureRequired && c.Messaging.WebhookSecret == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required unless WEBHOOK_SIGNATURE_REQUIRED=false"))
	}
	if c.Google.ClientID != "" && c.Google.StateSecret == "" {
		errs = append(errs, errors.New("OAUTH_STATE_SECRET is required when GOOGLE_CLIENT_ID is set"))
	}
	return errors.Join(errs...)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
