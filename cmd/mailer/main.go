// Command mailer delivers the invitation and registration emails queued by
// imports.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/app"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/config"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/logging"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/notify"
)

func main() {
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Queue.URL == "" {
		logger.Error("AMQP_URL is required by the mailer")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer, err := app.NewRenderer(cfg)
	if err != nil {
		logger.Error("failed to compile email templates", "error", err)
		os.Exit(1)
	}

	sender, err := app.NewSender(ctx, cfg, logger)
	if errors.Is(err, app.ErrNoMailer) {
		logger.Warn("MAIL_FROM is not set; emails are logged, not sent")
		sender = notify.LogSender{Logger: logger}
	} else if err != nil {
		logger.Error("failed to configure SES", "error", err)
		os.Exit(1)
	}

	worker, err := notify.DialWorker(cfg.Queue.URL, notify.WorkerConfig{
		Queue:      cfg.Queue.Name,
		Prefetch:   cfg.Queue.Prefetch,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	}, renderer, sender, logger)
	if err != nil {
		logger.Error("failed to connect to the broker", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mailer failed", "error", err)
		worker.Close()
		os.Exit(1)
	}
}
