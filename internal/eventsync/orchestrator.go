// Package eventsync imports registrations from the ticketing platform.
//
// An Orchestrator runs one sync of one event: it loads and decrypts the
// stored credentials, builds an attendee source for the event and hands it
// to the import pipeline. A sync preview writes nothing. A sync import skips
// invalid rows instead of refusing them and advances the event's watermark
// in the same transaction as the registrations.
//
// The Scheduler runs imports for every event flagged for automatic sync.
package eventsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/ticketing"
)

// API is the part of the ticketing client the orchestrator uses.
type API interface {
	ticketing.AttendeeLister
	ListEvents(ctx context.Context) ([]ticketing.Event, error)
	ListSessions(ctx context.Context, eventRef string) ([]ticketing.Session, error)
}

// APIFactory returns the client for a credential set. Implementations
// should return the same client for the same credentials so the attendee
// rate limit holds across runs.
type APIFactory func(creds ticketing.Credentials) API

// Pipeline is the import pipeline the orchestrator drives.
type Pipeline interface {
	Preview(ctx context.Context, eventID uuid.UUID, src core.Source, opts core.PreviewOptions) (*core.PreviewResult, error)
	Commit(ctx context.Context, eventID uuid.UUID, src core.Source, opts core.CommitOptions) (*core.CommitResult, error)
}

// EventReader loads events.
type EventReader interface {
	GetEvent(ctx context.Context, id uuid.UUID) (core.Event, error)
}

// Options controls one sync run.
type Options struct {
	// SendEmails enqueues invitations and notices. Ignored by Preview.
	SendEmails bool

	// FullResync ignores the watermark and fetches every attendee.
	FullResync bool

	// IgnoreErrors lets a preview report can_import despite row errors.
	// Import always skips invalid rows and ignores it.
	IgnoreErrors bool
}

// Orchestrator runs sync previews and imports.
type Orchestrator struct {
	pipeline Pipeline
	events   EventReader
	creds    *CredentialStore
	api      APIFactory
	logger   *slog.Logger
}

// NewOrchestrator wires an orchestrator. A nil logger uses slog.Default().
func NewOrchestrator(pipeline Pipeline, events EventReader, creds *CredentialStore, api APIFactory, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		pipeline: pipeline,
		events:   events,
		creds:    creds,
		api:      api,
		logger:   logger.With("component", "eventsync"),
	}
}

// Preview fetches the attendees the next import would see and classifies
// them. Nothing is written and the watermark does not move. Row errors
// block can_import unless opts.IgnoreErrors is set, as for a file preview.
func (o *Orchestrator) Preview(ctx context.Context, eventID uuid.UUID, opts Options) (*core.PreviewResult, error) {
	src, err := o.source(ctx, eventID, opts)
	if err != nil {
		return nil, err
	}
	return o.pipeline.Preview(ctx, eventID, src, core.PreviewOptions{IgnoreErrors: opts.IgnoreErrors})
}

// Import fetches and commits the attendees of the event. Row errors are
// skipped and counted; only run-level failures such as an auth error or a
// timeout fail the call, in which case nothing was written.
func (o *Orchestrator) Import(ctx context.Context, eventID uuid.UUID, opts Options) (*core.CommitResult, error) {
	src, err := o.source(ctx, eventID, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := o.pipeline.Commit(ctx, eventID, src, core.CommitOptions{
		IgnoreErrors:     true,
		SendEmails:       opts.SendEmails,
		AdvanceWatermark: true,
	})
	if err != nil {
		o.logger.Warn("sync import failed",
			"event_id", eventID.String(),
			"transient", core.IsTransient(err),
			"error", err,
		)
		return nil, err
	}

	o.logger.Info("sync import completed",
		"event_id", eventID.String(),
		"import_log_id", res.ImportLogID.String(),
		"created_new", res.CreatedNew,
		"linked_existing", res.LinkedExisting,
		"rows_skipped", res.RowsSkipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// RemoteEvents lists the events visible on the ticketing platform, for
// linking local events.
func (o *Orchestrator) RemoteEvents(ctx context.Context) ([]ticketing.Event, error) {
	api, err := o.client(ctx)
	if err != nil {
		return nil, err
	}
	return api.ListEvents(ctx)
}

// RemoteSessions lists the sessions of a ticketing event, for mapping them
// to slots.
func (o *Orchestrator) RemoteSessions(ctx context.Context, eventRef string) ([]ticketing.Session, error) {
	eventRef = strings.TrimSpace(eventRef)
	if eventRef == "" {
		return nil, core.ErrEventNotLinked
	}
	api, err := o.client(ctx)
	if err != nil {
		return nil, err
	}
	return api.ListSessions(ctx, eventRef)
}

// SaveCredentials checks creds against the platform and stores them
// encrypted. Rejected credentials are not stored.
func (o *Orchestrator) SaveCredentials(ctx context.Context, creds ticketing.Credentials) error {
	creds.User = strings.TrimSpace(creds.User)
	creds.Key = strings.TrimSpace(creds.Key)
	if creds.Empty() {
		return core.ErrCredentialsMissing
	}
	if _, err := o.api(creds).ListEvents(ctx); err != nil {
		return fmt.Errorf("verify ticketing credentials: %w", err)
	}
	if err := o.creds.Save(ctx, creds); err != nil {
		return err
	}
	o.logger.Info("ticketing credentials updated", "operator", core.OperatorFromContext(ctx))
	return nil
}

// source checks the configuration of a sync before any network call.
func (o *Orchestrator) source(ctx context.Context, eventID uuid.UUID, opts Options) (*ticketing.AttendeeSource, error) {
	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.TicketingRef == "" {
		return nil, core.ErrEventNotLinked
	}
	api, err := o.client(ctx)
	if err != nil {
		return nil, err
	}
	src := ticketing.NewAttendeeSource(api)
	src.FullResync = opts.FullResync
	return src, nil
}

func (o *Orchestrator) client(ctx context.Context) (API, error) {
	creds, err := o.creds.Load(ctx)
	if err != nil {
		return nil, err
	}
	return o.api(creds), nil
}
