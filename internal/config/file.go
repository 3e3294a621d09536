package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML files. Pointers distinguish absent keys
// from zero values.
type fileConfig struct {
	HTTP struct {
		Port            *int    `yaml:"port"`
		ShutdownTimeout *string `yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Store struct {
		Kind      *string `yaml:"kind"`
		SQLiteDSN *string `yaml:"sqlite_dsn"`
	} `yaml:"store"`
	Identity struct {
		Secret        *string `yaml:"secret"`
		InvitationTTL *string `yaml:"invitation_ttl"`
	} `yaml:"identity"`
	Provider struct {
		Kind               *string `yaml:"kind"`
		GoogleCalendarID   *string `yaml:"google_calendar_id"`
		CalDAVEndpoint     *string `yaml:"caldav_endpoint"`
		CalDAVCalendarPath *string `yaml:"caldav_calendar_path"`
		TimeZone           *string `yaml:"time_zone"`
		Timeout            *string `yaml:"timeout"`
		MaxPages           *int    `yaml:"max_pages"`
	} `yaml:"provider"`
	Mail struct {
		SMTPHost      *string `yaml:"smtp_host"`
		SMTPPort      *int    `yaml:"smtp_port"`
		SMTPUsername  *string `yaml:"smtp_username"`
		From          *string `yaml:"from"`
		FromName      *string `yaml:"from_name"`
		PublicBaseURL *string `yaml:"public_base_url"`
		QueueSize     *int    `yaml:"queue_size"`
		Workers       *int    `yaml:"workers"`
	} `yaml:"mail"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
	SSMPrefix *string `yaml:"ssm_prefix"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setInt(&cfg.HTTPPort, file.HTTP.Port)
	setString(&cfg.Store, file.Store.Kind)
	setString(&cfg.SQLiteDSN, file.Store.SQLiteDSN)
	setString(&cfg.IdentitySecret, file.Identity.Secret)
	setString(&cfg.Provider.Kind, file.Provider.Kind)
	setString(&cfg.Provider.GoogleCalendarID, file.Provider.GoogleCalendarID)
	setString(&cfg.Provider.CalDAVEndpoint, file.Provider.CalDAVEndpoint)
	setString(&cfg.Provider.CalDAVCalendarPath, file.Provider.CalDAVCalendarPath)
	setString(&cfg.Provider.TimeZone, file.Provider.TimeZone)
	setInt(&cfg.Provider.MaxPages, file.Provider.MaxPages)
	setString(&cfg.Mail.SMTPHost, file.Mail.SMTPHost)
	setInt(&cfg.Mail.SMTPPort, file.Mail.SMTPPort)
	setString(&cfg.Mail.SMTPUsername, file.Mail.SMTPUsername)
	setString(&cfg.Mail.From, file.Mail.From)
	setString(&cfg.Mail.FromName, file.Mail.FromName)
	setString(&cfg.Mail.PublicBaseURL, file.Mail.PublicBaseURL)
	setInt(&cfg.Mail.QueueSize, file.Mail.QueueSize)
	setInt(&cfg.Mail.Workers, file.Mail.Workers)
	setString(&cfg.LogLevel, file.Log.Level)
	setString(&cfg.LogFormat, file.Log.Format)
	setString(&cfg.SSMPrefix, file.SSMPrefix)

	durations := []struct {
		key    string
		value  *string
		target *time.Duration
	}{
		{"http.shutdown_timeout", file.HTTP.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"identity.invitation_ttl", file.Identity.InvitationTTL, &cfg.InvitationTTL},
		{"provider.timeout", file.Provider.Timeout, &cfg.Provider.Timeout},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("config file %s: invalid duration for %s: %q", path, d.key, *d.value)
		}
		*d.target = parsed
	}
	return nil
}

func setString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}

func setInt(target *int, value *int) {
	if value != nil {
		*target = *value
	}
}
