package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shpitdev/crm-enricher/internal/app"
	"github.com/shpitdev/crm-enricher/internal/version"
	"github.com/spf13/cobra"
)

func serveCmd(envFile *string) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Flags take precedence over env vars.
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info("starting enricher",
		slog.String("version", version.Current),
		slog.String("model", cfg.Gemini.Model),
		slog.Int("credentials", len(cfg.Credentials())),
		slog.Bool("grounding", cfg.Gemini.Grounding),
	)

	a, err := app.New(context.Background(), cfg, app.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer closeApp(a, logger)

	server := a.Server()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		// In-flight runs get up to RunTimeout to write their terminal state.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
