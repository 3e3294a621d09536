package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/personal-calendar/internal/logging"
)

// Store kinds.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Provider kinds.
const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
	ProviderNone   = "none"
)

// Config captures configuration values for the calendar service.
type Config struct {
	HTTPPort        int
	ShutdownTimeout time.Duration

	Store     string
	SQLiteDSN string

	IdentitySecret string
	InvitationTTL  time.Duration

	Provider ProviderConfig
	Mail     MailConfig

	LogLevel  string
	LogFormat string

	// SSMPrefix enables loading secrets from AWS SSM Parameter Store.
	SSMPrefix string
}

// ProviderConfig selects and configures the external calendar provider.
type ProviderConfig struct {
	Kind               string
	GoogleCalendarID   string
	CalDAVEndpoint     string
	CalDAVCalendarPath string
	TimeZone           string
	Timeout            time.Duration
	MaxPages           int
}

// MailConfig configures invitation delivery. An empty SMTPHost logs
// invitations instead of sending them.
type MailConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	From          string
	FromName      string
	PublicBaseURL string
	QueueSize     int
	Workers       int
}

// Defaults returns the configuration used when nothing overrides a value.
func Defaults() Config {
	return Config{
		HTTPPort:        8080,
		ShutdownTimeout: 15 * time.Second,
		Store:           StoreSQLite,
		SQLiteDSN:       "calendar.db",
		InvitationTTL:   30 * 24 * time.Hour,
		Provider: ProviderConfig{
			Kind:             ProviderGoogle,
			GoogleCalendarID: "primary",
			TimeZone:         "UTC",
			Timeout:          10 * time.Second,
			MaxPages:         10,
		},
		Mail: MailConfig{
			SMTPPort:      587,
			FromName:      "Personal Calendar",
			PublicBaseURL: "http://localhost:8080",
			QueueSize:     100,
			Workers:       2,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Loader reads configuration from .env files, an optional YAML file, the
// environment and optionally AWS SSM, in that order of precedence (last wins).
type Loader struct {
	// Getenv looks up environment variables. Defaults to os.Getenv.
	Getenv func(string) string
	// DotEnvFiles are loaded into the process environment when present.
	DotEnvFiles []string
	// Secrets overrides the SSM client built from the default AWS config.
	Secrets ParameterStore
}

// Load reads configuration using the process environment and ./.env.
func Load(ctx context.Context) (Config, error) {
	return Loader{DotEnvFiles: []string{".env"}}.Load(ctx)
}

// Load resolves the configuration.
func (l Loader) Load(ctx context.Context) (Config, error) {
	if len(l.DotEnvFiles) > 0 {
		if err := godotenv.Load(l.DotEnvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Defaults()
	if path := env("CALENDAR_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	invalid := applyEnvironment(&cfg, env)

	if cfg.SSMPrefix != "" {
		store := l.Secrets
		if store == nil {
			client, err := NewSSMClient(ctx)
			if err != nil {
				return Config{}, err
			}
			store = client
		}
		if err := ApplySecrets(ctx, &cfg, store); err != nil {
			return Config{}, err
		}
	}

	missing, moreInvalid := validate(cfg)
	invalid = append(invalid, moreInvalid...)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required configuration is missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("configuration values are invalid: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config, env func(string) string) []string {
	invalid := make([]string, 0, 4)

	parseInt := func(key string, min int, target *int) {
		if value := env(key); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil || n < min {
				invalid = append(invalid, key)
				return
			}
			*target = n
		}
	}
	parseDuration := func(key string, target *time.Duration) {
		if value := env(key); value != "" {
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				invalid = append(invalid, key)
				return
			}
			*target = d
		}
	}
	setEnv := func(key string, target *string) {
		if value := env(key); value != "" {
			*target = value
		}
	}

	parseInt("CALENDAR_HTTP_PORT", 1, &cfg.HTTPPort)
	parseDuration("CALENDAR_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	setEnv("CALENDAR_STORE", &cfg.Store)
	setEnv("CALENDAR_SQLITE_DSN", &cfg.SQLiteDSN)
	setEnv("CALENDAR_IDENTITY_SECRET", &cfg.IdentitySecret)
	parseDuration("CALENDAR_INVITATION_TTL", &cfg.InvitationTTL)

	setEnv("CALENDAR_PROVIDER", &cfg.Provider.Kind)
	setEnv("CALENDAR_GOOGLE_CALENDAR_ID", &cfg.Provider.GoogleCalendarID)
	setEnv("CALENDAR_CALDAV_ENDPOINT", &cfg.Provider.CalDAVEndpoint)
	setEnv("CALENDAR_CALDAV_CALENDAR_PATH", &cfg.Provider.CalDAVCalendarPath)
	setEnv("CALENDAR_PROVIDER_TIMEZONE", &cfg.Provider.TimeZone)
	parseDuration("CALENDAR_PROVIDER_TIMEOUT", &cfg.Provider.Timeout)
	parseInt("CALENDAR_PROVIDER_MAX_PAGES", 1, &cfg.Provider.MaxPages)

	setEnv("CALENDAR_SMTP_HOST", &cfg.Mail.SMTPHost)
	parseInt("CALENDAR_SMTP_PORT", 1, &cfg.Mail.SMTPPort)
	setEnv("CALENDAR_SMTP_USERNAME", &cfg.Mail.SMTPUsername)
	setEnv("CALENDAR_SMTP_PASSWORD", &cfg.Mail.SMTPPassword)
	setEnv("CALENDAR_MAIL_FROM", &cfg.Mail.From)
	setEnv("CALENDAR_MAIL_FROM_NAME", &cfg.Mail.FromName)
	setEnv("CALENDAR_PUBLIC_BASE_URL", &cfg.Mail.PublicBaseURL)
	parseInt("CALENDAR_MAIL_QUEUE_SIZE", 1, &cfg.Mail.QueueSize)
	parseInt("CALENDAR_MAIL_WORKERS", 1, &cfg.Mail.Workers)

	setEnv("CALENDAR_LOG_LEVEL", &cfg.LogLevel)
	setEnv("CALENDAR_LOG_FORMAT", &cfg.LogFormat)
	setEnv("CALENDAR_SSM_PREFIX", &cfg.SSMPrefix)

	return invalid
}

func validate(cfg Config) (missing, invalid []string) {
	if cfg.IdentitySecret == "" {
		missing = append(missing, "CALENDAR_IDENTITY_SECRET")
	}

	switch cfg.Store {
	case StoreSQLite:
		if cfg.SQLiteDSN == "" {
			missing = append(missing, "CALENDAR_SQLITE_DSN")
		}
	case StoreMemory:
	default:
		invalid = append(invalid, "CALENDAR_STORE")
	}

	switch cfg.Provider.Kind {
	case ProviderGoogle, ProviderNone:
	case ProviderCalDAV:
		if cfg.Provider.CalDAVEndpoint == "" {
			missing = append(missing, "CALENDAR_CALDAV_ENDPOINT")
		}
		if cfg.Provider.CalDAVCalendarPath == "" {
			missing = append(missing, "CALENDAR_CALDAV_CALENDAR_PATH")
		}
	default:
		invalid = append(invalid, "CALENDAR_PROVIDER")
	}
	if _, err := time.LoadLocation(cfg.Provider.TimeZone); err != nil {
		invalid = append(invalid, "CALENDAR_PROVIDER_TIMEZONE")
	}

	if cfg.Mail.SMTPHost != "" && cfg.Mail.From == "" {
		missing = append(missing, "CALENDAR_MAIL_FROM")
	}
	if u, err := url.Parse(cfg.Mail.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, "CALENDAR_PUBLIC_BASE_URL")
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		invalid = append(invalid, "CALENDAR_LOG_LEVEL")
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		invalid = append(invalid, "CALENDAR_LOG_FORMAT")
	}
	return missing, invalid
}
