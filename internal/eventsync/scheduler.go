package eventsync

// scheduler.go runs automatic syncs.
//
// Every Interval the scheduler lists the events flagged for automatic sync
// and imports each of them in turn. Events are synced one after the other:
// they share one credential set and therefore one attendee rate limit.
//
// The scheduler is long-running and stops when its context is cancelled.
// A failed event is logged and the cycle moves on, except for failures that
// would fail every remaining event the same way (missing or rejected
// credentials), which end the cycle early.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// DefaultInterval is used when SchedulerConfig.Interval is zero.
const DefaultInterval = 15 * time.Minute

// AutoSyncLister lists the events to sync.
type AutoSyncLister interface {
	ListAutoSyncEvents(ctx context.Context) ([]core.Event, error)
}

// Importer runs one sync import. *Orchestrator implements it.
type Importer interface {
	Import(ctx context.Context, eventID uuid.UUID, opts Options) (*core.CommitResult, error)
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Interval   time.Duration // How often to run (default: 15m)
	SendEmails bool          // Whether scheduled imports send emails
}

// Scheduler periodically imports auto-sync events.
type Scheduler struct {
	importer Importer
	events   AutoSyncLister
	cfg      SchedulerConfig
	logger   *slog.Logger
}

// CycleReport summarizes one scheduler cycle.
type CycleReport struct {
	Events    int
	Succeeded int
	Failed    int
	Skipped   int // another import of the event was running
	Created   int
	Linked    int
	Aborted   bool
}

func NewScheduler(importer Importer, events AutoSyncLister, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		importer: importer,
		events:   events,
		cfg:      cfg,
		logger:   logger.With("component", "sync_scheduler"),
	}
}

// Run runs a cycle immediately, then every Interval, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("sync scheduler started",
		"interval", s.cfg.Interval.String(),
		"send_emails", s.cfg.SendEmails,
	)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sync cycle over all auto-sync events.
func (s *Scheduler) RunOnce(ctx context.Context) CycleReport {
	var report CycleReport
	start := time.Now()

	events, err := s.events.ListAutoSyncEvents(ctx)
	if err != nil {
		s.logger.Error("list auto-sync events failed", "error", err)
		report.Aborted = true
		return report
	}
	report.Events = len(events)
	if len(events) == 0 {
		s.logger.Debug("no event to sync")
		return report
	}

	ctx = core.ContextWithOperator(ctx, core.SystemOperator)

	for _, event := range events {
		if ctx.Err() != nil {
			report.Aborted = true
			break
		}
		logger := s.logger.With("event_id", event.ID.String(), "event_name", event.Name)

		res, err := s.importer.Import(ctx, event.ID, Options{SendEmails: s.cfg.SendEmails})
		switch {
		case err == nil:
			report.Succeeded++
			report.Created += res.CreatedNew
			report.Linked += res.LinkedExisting
		case errors.Is(err, core.ErrImportInProgress), errors.Is(err, core.ErrTooManyImports):
			logger.Info("sync skipped, import already running")
			report.Skipped++
		case fatalForCycle(err):
			logger.Error("sync cycle aborted", "error", err)
			report.Failed++
			report.Aborted = true
		default:
			logger.Warn("sync failed", "transient", core.IsTransient(err), "error", err)
			report.Failed++
		}
		if report.Aborted {
			break
		}
	}

	s.logger.Info("sync cycle completed",
		"events", report.Events,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"created_new", report.Created,
		"linked_existing", report.Linked,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report
}

// fatalForCycle reports whether err would repeat for every other event.
func fatalForCycle(err error) bool {
	var authErr *core.AuthError
	return errors.As(err, &authErr) || errors.Is(err, core.ErrCredentialsMissing)
}
