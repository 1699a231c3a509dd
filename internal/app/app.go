// Package app assembles the import pipeline from configuration. The server,
// the CLI and the mailer share it so every binary sees the same wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/archive"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/config"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/eventsync"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/lock"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/notify"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/secrets"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/source"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/store/postgres"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/ticketing"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/web"
)

// App holds the long-lived collaborators of a process.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Store   *postgres.Store
	Service *core.Service
	Sync    *eventsync.Orchestrator

	redis   *redis.Client
	closers []func()
}

// New connects to the database and the optional backends and builds the
// import service and the sync orchestrator. On error everything opened so
// far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	source.MaxFileSize = cfg.Import.MaxFileSize

	tariffs, err := loadProfiles(cfg.Import.ProfilePath, logger)
	if err != nil {
		return nil, err
	}

	a.Pool, err = postgres.Open(ctx, postgres.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Pool.Close)
	a.Store = postgres.New(a.Pool)

	backends := lock.Backends{Pool: a.Pool, TTL: cfg.Redis.LockTTL}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		backends.Redis = a.redis
	}

	options := []core.Option{
		core.WithTariffs(tariffs),
		core.WithLocker(lock.New(backends, logger)),
		core.WithLogger(logger),
	}

	dispatcher, err := a.dispatcher(cfg, logger)
	if err != nil {
		return nil, err
	}
	options = append(options, core.WithDispatcher(dispatcher))

	if cfg.Archive.Bucket != "" {
		archiver, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Prefix:    cfg.Archive.Prefix,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		options = append(options, core.WithArchiver(archiver))
		logger.Info("source archive enabled", "bucket", cfg.Archive.Bucket)
	}

	a.Service = core.NewService(a.Store, core.Options{
		BatchSize:     cfg.Import.BatchSize,
		Timeout:       cfg.Import.Timeout,
		Location:      cfg.Import.Location(),
		RequireSlot:   cfg.Import.RequireSlot,
		InvitationTTL: cfg.Import.InvitationTTL,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
	}, options...)

	keyring, err := secrets.ParseKeyring(cfg.Secrets.Keys)
	if err != nil {
		return nil, fmt.Errorf("parse SECRETS_KEYS: %w", err)
	}
	if keyring.Len() == 0 {
		logger.Warn("SECRETS_KEYS is empty; ticketing credentials cannot be stored or read")
	}

	pool := ticketing.NewClientPool(cfg.Ticketing.BaseURL, cfg.Ticketing.Timeout, cfg.Ticketing.MinInterval)
	a.Sync = eventsync.NewOrchestrator(
		a.Service,
		a.Store,
		eventsync.NewCredentialStore(a.Store, keyring),
		func(creds ticketing.Credentials) eventsync.API { return pool.Get(creds) },
		logger,
	)
	return a, nil
}

// dispatcher publishes on the broker when one is configured. Otherwise
// emails are rendered and logged in-process.
func (a *App) dispatcher(cfg *config.Config, logger *slog.Logger) (core.Dispatcher, error) {
	if cfg.Queue.URL != "" {
		pub, err := notify.DialPublisher(cfg.Queue.URL, cfg.Queue.Name)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		logger.Info("email queue enabled", "queue", cfg.Queue.Name)
		return pub, nil
	}

	renderer, err := NewRenderer(cfg)
	if err != nil {
		return nil, err
	}
	d := notify.NewInlineDispatcher(renderer, notify.LogSender{Logger: logger}, 0, logger)
	a.closers = append(a.closers, d.Close)
	logger.Warn("AMQP_URL is not set; emails are logged, not sent")
	return d, nil
}

// NewRenderer builds the email renderer from the mail settings.
func NewRenderer(cfg *config.Config) (*notify.Renderer, error) {
	return notify.NewRenderer(notify.RendererConfig{
		ActivationURL: cfg.Mail.ActivationURL,
		Location:      cfg.Import.Location(),
	})
}

// Scheduler returns the auto-sync scheduler over this app's orchestrator.
func (a *App) Scheduler() *eventsync.Scheduler {
	return eventsync.NewScheduler(a.Sync, a.Store, eventsync.SchedulerConfig{
		Interval:   a.Config.Sync.Interval,
		SendEmails: a.Config.Sync.SendEmails,
	}, a.Logger)
}

// HealthChecks lists the dependencies the health endpoint probes.
func (a *App) HealthChecks() map[string]web.HealthCheck {
	checks := map[string]web.HealthCheck{
		"database": func(ctx context.Context) error { return a.Pool.Ping(ctx) },
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadProfiles registers the optional YAML import profile and returns the
// tariff table extended with its labels.
func loadProfiles(path string, logger *slog.Logger) (*core.TariffMapper, error) {
	tariffs := core.DefaultTariffMapper()
	if path == "" {
		return tariffs, nil
	}
	pf, err := core.LoadProfileFile(path)
	if err != nil {
		return nil, err
	}
	if err := pf.Register(); err != nil {
		return nil, fmt.Errorf("register import profiles: %w", err)
	}
	logger.Info("import profile loaded", "path", path, "profiles", len(pf.Profiles), "tariffs", len(pf.Tariffs))
	return tariffs.With(pf.Tariffs), nil
}

// ErrNoMailer is returned by NewSender when no sender address is configured.
var ErrNoMailer = errors.New("MAIL_FROM is not set")

// NewSender returns the SES sender, or ErrNoMailer when mail is not
// configured.
func NewSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Sender, error) {
	if cfg.Mail.From == "" {
		return nil, ErrNoMailer
	}
	return notify.NewSESSender(ctx, notify.SESConfig{
		Region:           cfg.Mail.SESRegion,
		AccessKey:        cfg.Mail.SESAccessKey,
		SecretKey:        cfg.Mail.SESSecretKey,
		From:             cfg.Mail.From,
		ReplyTo:          cfg.Mail.ReplyTo,
		ConfigurationSet: cfg.Mail.SESConfigurationSet,
	}, logger)
}
