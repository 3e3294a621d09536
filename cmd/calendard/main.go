package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/config"
	"github.com/example/personal-calendar/internal/logging"
	"github.com/example/personal-calendar/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("calendard failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "calendard",
		Usage: "Personal calendar API with provider mirroring and invitations.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", EnvVars: []string{"CALENDAR_CONFIG_FILE"}, Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded when present"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			syncCommand(),
		},
	}
}

// bootstrap loads configuration and builds the process logger.
func bootstrap(c *cli.Context) (config.Config, *slog.Logger, error) {
	configFile := c.String("config")
	loader := config.Loader{
		Getenv: func(key string) string {
			if key == "CALENDAR_CONFIG_FILE" && configFile != "" {
				return configFile
			}
			return os.Getenv(key)
		},
	}
	if envFile := c.String("env-file"); envFile != "" {
		loader.DotEnvFiles = []string{envFile}
	}

	cfg, err := loader.Load(c.Context)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "Override the configured HTTP port."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap(c)
			if err != nil {
				return err
			}
			if c.IsSet("port") {
				cfg.HTTPPort = c.Int("port")
			}

			rt, err := newRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := rt.Close(closeCtx); err != nil {
					logger.Error("failed to release resources", "error", err)
				}
			}()

			if err := rt.store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			rt.dispatcher.Start()

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           rt.handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				<-c.Context.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("failed to shutdown server", "error", err)
				}
			}()

			logger.Info("calendar API listening",
				"addr", server.Addr,
				"store", cfg.Store,
				"provider", cfg.Provider.Kind,
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server encountered error: %w", err)
			}
			logger.Info("calendar API stopped")
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap(c)
			if err != nil {
				return err
			}

			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			if err := store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			attrs := []any{"store", cfg.Store}
			if sqliteStore, ok := store.(*sqlite.Store); ok {
				status, err := sqliteStore.MigrationStatus(c.Context)
				if err != nil {
					return fmt.Errorf("failed to read migration status: %w", err)
				}
				attrs = append(attrs, "version", status.CurrentVersion, "applied", len(status.AppliedMigrations))
			}
			logger.Info("migrations applied", attrs...)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull one user's provider events into the local store.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user-id", Required: true, Usage: "Owner of the synced events."},
			&cli.StringFlag{Name: "email", Usage: "Owner email recorded on created events."},
			&cli.StringFlag{Name: "name", Usage: "Owner display name."},
			&cli.StringFlag{Name: "provider-token", EnvVars: []string{"CALENDAR_SYNC_PROVIDER_TOKEN"}, Usage: "Provider access token."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap(c)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := rt.Close(closeCtx); err != nil {
					logger.Error("failed to release resources", "error", err)
				}
			}()

			if err := rt.store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}

			result, err := rt.sync.Sync(c.Context, application.Principal{
				UserID:        c.String("user-id"),
				Email:         c.String("email"),
				Name:          c.String("name"),
				ProviderToken: c.String("provider-token"),
			})
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(c.App.Writer)
			encoder.SetIndent("", "  ")
			return encoder.Encode(map[string]any{
				"fetched":      result.Fetched,
				"processed":    result.Processed,
				"created":      result.Created,
				"updated":      result.Updated,
				"skipped":      result.Skipped,
				"failed":       result.Failed,
				"window_start": result.WindowStart.Format(time.RFC3339),
				"window_end":   result.WindowEnd.Format(time.RFC3339),
			})
		},
	}
}
