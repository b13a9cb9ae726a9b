// Package app wires configuration, storage, the provider and the enrichment
// service into one runnable unit shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shpitdev/crm-enricher/internal/api"
	"github.com/shpitdev/crm-enricher/internal/config"
	"github.com/shpitdev/crm-enricher/internal/database"
	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/shpitdev/crm-enricher/internal/enrich/gemini"
	"github.com/shpitdev/crm-enricher/internal/enrich/worker"
	"github.com/shpitdev/crm-enricher/internal/events"
	"github.com/shpitdev/crm-enricher/internal/persistence"
	"github.com/shpitdev/crm-enricher/internal/provider"
)

// Options overrides pieces of the wiring, mostly for tests.
type Options struct {
	// Generator replaces the Gemini generator.
	Generator provider.Generator
	// Publisher replaces the Kafka publisher built from config.
	Publisher events.Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

type App struct {
	Config     config.EnvConfig
	DB         database.Database
	Store      persistence.CompanyStore
	Service    *enrich.Service
	Runner     *worker.Runner
	Dispatcher *worker.Dispatcher
	Breaker    *provider.Breaker[string]
	Publisher  events.Publisher

	logger *slog.Logger
}

// New opens the database, runs migrations and builds every component.
func New(ctx context.Context, cfg config.EnvConfig, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.NewDatabase(ctx, cfg.DBURL, logger)
	if err != nil {
		return nil, err
	}
	if cfg.DBPool.MaxOpen > 0 {
		if err := db.ConfigurePool(cfg.DBPool.MaxOpen, cfg.DBPool.MaxIdle, cfg.DBPool.MaxLifetime); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure pool: %w", err)
		}
	}
	if err := persistence.AutoMigrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	store := persistence.NewCompanyStore(db)

	gen := opts.Generator
	if gen == nil {
		g, err := gemini.New(gemini.Config{
			Model:     cfg.Gemini.Model,
			BaseURL:   cfg.Gemini.BaseURL,
			Grounding: cfg.Gemini.Grounding,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		gen = g
	}

	pub := opts.Publisher
	if pub == nil {
		pub = events.Nop{}
		if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
			kp, err := events.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			logger.Info("publishing enrichment events", "topic", kp.Topic(), "brokers", brokers)
			pub = kp
		}
	}

	creds := provider.NewCredentialSet(cfg.Credentials()...)
	if creds.Len() == 0 {
		logger.Warn("no provider credentials configured; enrichment requests will fail with credential_missing")
	}

	breaker := provider.NewBreaker[string](provider.BreakerConfig{
		Name:             "gemini",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		Logger:           logger,
	})
	client := provider.NewClient(gen, breaker, logger)

	runner := worker.NewRunner(store, client, creds, worker.RunnerOptions{
		Deadline:  cfg.ProviderTimeout,
		Publisher: pub,
		Now:       opts.Now,
		Logger:    logger,
	})
	svc := enrich.NewService(store, creds, enrich.Options{
		StaleAfter: cfg.StaleAfter,
		Now:        opts.Now,
		Logger:     logger,
	})

	return &App{
		Config:     cfg,
		DB:         db,
		Store:      store,
		Service:    svc,
		Runner:     runner,
		Dispatcher: worker.NewDispatcher(runner, cfg.RunTimeout, logger),
		Breaker:    breaker,
		Publisher:  pub,
		logger:     logger,
	}, nil
}

// Server returns the HTTP server for this app. Shutdown waits for dispatched runs.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Config.Addr(), a.Service, a.Dispatcher, a.Dispatcher.Wait, a.logger)
}

// EnrichNow starts enrichment and, when this call won the transition, runs it in the
// foreground. It returns the stored state afterwards along with any run failure.
func (a *App) EnrichNow(ctx context.Context, id int64, force bool) (enrich.Result, error) {
	res, err := a.Service.Start(ctx, id, enrich.StartOptions{Force: force})
	if err != nil || !res.Started {
		return res, err
	}
	runCtx, cancel := context.WithTimeout(ctx, a.Config.RunTimeout)
	defer cancel()
	runErr := a.Runner.Run(runCtx, id)
	final, err := a.Service.Status(ctx, id)
	if err != nil {
		return enrich.Result{}, errors.Join(runErr, err)
	}
	return final, runErr
}

// Backfill enriches every company currently in status (all companies when empty).
func (a *App) Backfill(ctx context.Context, status enrich.Status, opts worker.Options) ([]worker.Output, error) {
	ids, err := a.Store.ListIDsByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = a.Config.RunTimeout
	}
	a.logger.InfoContext(ctx, "backfill start", "companies", len(ids), "status", string(status), "workers", opts.Workers, "rate_limit_rps", opts.RateLimitRPS)
	return worker.Backfill(ctx, ids, a.Service, a.Runner, opts)
}

// Close waits for background runs up to ctx's deadline, then releases resources.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for runs: %w", err))
	}
	if err := a.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
