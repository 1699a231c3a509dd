package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	// BatchSize is the number of rows provisioned between context checks and
	// progress logs inside the commit transaction.
	BatchSize int

	// Timeout bounds the write phase of a commit.
	Timeout time.Duration

	// Location is the time zone slot start times are written in by operators.
	Location *time.Location

	// RequireSlot turns unresolved session references into row errors.
	RequireSlot bool

	InvitationTTL time.Duration

	MaxConcurrent int
	MaxWait       time.Duration
}

const (
	DefaultBatchSize     = 200
	DefaultImportTimeout = 5 * time.Minute
)

// Service runs previews and commits for events.
type Service struct {
	store       Store
	validator   *RowValidator
	reconciler  *Reconciler
	provisioner *AccountProvisioner
	limiter     *ImportLimiter
	locker      EventLocker
	dispatcher  Dispatcher
	archiver    Archiver
	logger      *slog.Logger
	opts        Options
	now         func() time.Time
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithTariffs replaces the default tariff table.
func WithTariffs(m *TariffMapper) Option {
	return func(s *Service) { s.validator = NewRowValidator(m) }
}

// WithLocker sets the per-event commit lock. Without one, commits are
// serialized inside the process only.
func WithLocker(l EventLocker) Option {
	return func(s *Service) { s.locker = l }
}

// WithDispatcher sets the email queue. Without one, emails are not sent.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithArchiver keeps a copy of uploaded files.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.provisioner.now = now
	}
}

// NewService creates a Service over store.
func NewService(store Store, opts Options, options ...Option) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultImportTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	s := &Service{
		store:       store,
		validator:   NewRowValidator(nil),
		reconciler:  NewReconciler(store, opts.Location, opts.RequireSlot),
		provisioner: NewAccountProvisioner(opts.InvitationTTL),
		limiter:     NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		locker:      newLocalLocker(),
		logger:      slog.Default(),
		opts:        opts,
		now:         time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Limiter exposes the commit limiter for draining on shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Validator returns the row validator, so sources can share its tariff table.
func (s *Service) Validator() *RowValidator {
	return s.validator
}

// analysis is the shared result of the read-only stages.
type analysis struct {
	event  Event
	slots  []Slot
	parsed *ParseResult
	rec    *Reconciliation
}

// errors returns every blocking row error: validation errors first, then
// slot errors, each in row order.
func (a *analysis) errors() []RowError {
	out := make([]RowError, 0, len(a.parsed.Errors)+len(a.rec.Errors))
	out = append(out, a.parsed.Errors...)
	return append(out, a.rec.Errors...)
}

func (a *analysis) warnings() []string {
	out := make([]string, 0, len(a.parsed.Warnings)+len(a.rec.Warnings))
	out = append(out, a.parsed.Warnings...)
	return append(out, a.rec.Warnings...)
}

// analyze runs every read-only stage: fetch, validation and reconciliation.
func (s *Service) analyze(ctx context.Context, event Event, slots []Slot, src Source) (*analysis, error) {
	raws, err := src.Fetch(ctx, event)
	if err != nil {
		return nil, err
	}

	parsed := s.validator.Parse(raws)
	parsed.SlotMapping = BuildSlotMapping(slots, s.opts.Location)

	rec, err := s.reconciler.Classify(ctx, event, slots, parsed.Rows, parsed.SlotMapping)
	if err != nil {
		return nil, err
	}
	return &analysis{event: event, slots: slots, parsed: parsed, rec: rec}, nil
}

func (s *Service) loadEvent(ctx context.Context, eventID uuid.UUID) (Event, []Slot, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, nil, err
	}
	slots, err := s.store.ListSlots(ctx, eventID)
	if err != nil {
		return Event{}, nil, fmt.Errorf("list slots: %w", err)
	}
	return event, slots, nil
}

func slotDescriptions(slots []Slot) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(slots))
	for _, sl := range slots {
		out[sl.ID] = sl.Description
	}
	return out
}
