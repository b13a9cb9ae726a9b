// Package main is the entry point for the enricher CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/shpitdev/crm-enricher/internal/app"
	"github.com/shpitdev/crm-enricher/internal/config"
	"github.com/shpitdev/crm-enricher/internal/log"
	"github.com/shpitdev/crm-enricher/internal/util"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, util.RedactSecrets(err.Error()))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "enricher",
		Short: "CRM company enrichment service",
		Long: `enricher fills in company profiles (description, sector, size, pain points)
by asking Gemini about each company and storing the answer.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST, PORT                   HTTP bind address (default: 0.0.0.0:8080)
  DB_URL                       sqlite:///path or postgres://... (default: sqlite:///crm-enricher.db)
  DB_POOL_MAX_OPEN             Postgres max open connections (default: 10)
  DB_POOL_MAX_IDLE             Postgres max idle connections (default: 5)
  DB_POOL_MAX_LIFETIME         Postgres connection max lifetime (default: 30m)
  LOG_LEVEL                    DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   text, json (default: text)
  GEMINI_API_KEY               Primary provider key
  GEMINI_API_KEY_BACKUP        Key tried when the primary is out of quota
  GEMINI_API_KEYS              Comma-separated further backup keys
  GEMINI_MODEL                 Model name (default: gemini-2.5-flash)
  GEMINI_BASE_URL              Endpoint override (proxies/testing)
  GEMINI_GROUNDING             Enable Google Search grounding (default: false)
  PROVIDER_TIMEOUT             Per-call deadline (default: 45s)
  RUN_TIMEOUT                  Whole-run deadline including failover (default: 90s)
  STALE_AFTER                  Age at which processing counts as abandoned (default: 2m)
  BREAKER_FAILURE_THRESHOLD    Consecutive failures that open the circuit (default: 5)
  BREAKER_RESET_TIMEOUT        Open duration before a trial call (default: 60s)
  KAFKA_BROKERS, KAFKA_TOPIC   Outcome events; disabled when KAFKA_BROKERS is empty`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(serveCmd(&envFile))
	cmd.AddCommand(enrichCmd(&envFile))
	cmd.AddCommand(statusCmd(&envFile))
	cmd.AddCommand(backfillCmd(&envFile))
	cmd.AddCommand(seedCmd(&envFile))
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.EnvConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.EnvConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.EnvConfig) *slog.Logger {
	return log.NewLogger(os.Stderr, log.ParseFormat(cfg.LogFormat), cfg.LogLevel)
}

// openApp loads configuration and wires the application.
func openApp(ctx context.Context, envFile string) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	a, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func closeApp(a *app.App, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.RunTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Error("failed to close app", slog.Any("error", err))
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid company id %q", s)
	}
	return id, nil
}
