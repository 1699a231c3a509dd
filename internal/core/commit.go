package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CommitOptions controls a commit.
type CommitOptions struct {
	// IgnoreErrors imports the valid rows of a source that has row errors.
	// Without it, any row error refuses the whole commit.
	IgnoreErrors bool

	// SendEmails enqueues invitations and registration notices after the
	// transaction commits.
	SendEmails bool

	// AdvanceWatermark moves the event's sync watermark to the instant the
	// fetch started. Set by the sync orchestrator only.
	AdvanceWatermark bool
}

// CommitResult summarizes a committed import.
type CommitResult struct {
	ImportLogID       uuid.UUID    `json:"import_log_id"`
	LinkedExisting    int          `json:"linked_existing"`
	CreatedNew        int          `json:"created_new"`
	InvitationsSent   int          `json:"invitations_sent"`
	NotificationsSent int          `json:"notifications_sent"`
	RowsSkipped       int          `json:"rows_skipped"`
	Totals            ImportTotals `json:"totals"`
	Errors            []RowError   `json:"errors"`
	Warnings          []string     `json:"warnings"`
}

// Commit imports the source into the event.
//
// Everything before the write transaction is read-only, so a fetch failure
// or refused source leaves no trace. The write phase creates the ImportLog,
// provisions every classified row, finalizes the log and optionally advances
// the watermark in a single transaction. It is detached from ctx
// cancellation: once started it completes or rolls back as a whole. Emails
// are enqueued only after the transaction has committed, and a dispatch
// failure never undoes the import.
func (s *Service) Commit(ctx context.Context, eventID uuid.UUID, src Source, opts CommitOptions) (*CommitResult, error) {
	start := s.now()
	logger := s.logger.With("event_id", eventID.String(), "source", src.Describe())

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	unlock, err := s.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	event, slots, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	fetchedAt := s.now().UTC()
	a, err := s.analyze(ctx, event, slots, src)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	rowErrors := a.errors()
	if len(rowErrors) > 0 && !opts.IgnoreErrors {
		return nil, &RowErrors{Errors: rowErrors}
	}

	descriptor := src.Describe()
	if ps, ok := src.(PayloadSource); ok && s.archiver != nil {
		name, data := ps.Payload()
		location, err := s.archiver.Archive(ctx, event.ID, name, data)
		if err != nil {
			logger.Warn("source archive failed", "error", err)
		} else {
			descriptor += " archived=" + location
		}
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()

	importLog := ImportLog{
		ID:               uuid.New(),
		EventID:          event.ID,
		ImportedBy:       OperatorFromContext(ctx),
		SourceDescriptor: descriptor,
		StartedAt:        s.now().UTC(),
	}

	var (
		totals ImportTotals
		outbox []Message
	)
	descriptions := slotDescriptions(slots)

	err = s.store.InTx(wctx, func(tx Tx) error {
		totals = ImportTotals{
			Total:                    a.parsed.TotalRows,
			SkippedInvalid:           len(rowErrors),
			SkippedUnpaid:            a.parsed.SkippedUnpaid,
			SkippedDuplicate:         a.rec.Stats.DuplicatesInFile,
			SkippedAlreadyRegistered: a.rec.Stats.AlreadyRegistered,
		}
		outbox = outbox[:0]

		if err := tx.CreateImportLog(wctx, importLog); err != nil {
			return fmt.Errorf("create import log: %w", err)
		}

		for i, cr := range a.rec.Rows {
			if i > 0 && i%s.opts.BatchSize == 0 {
				if err := wctx.Err(); err != nil {
					return err
				}
				logger.Debug("import progress", "rows", i, "of", len(a.rec.Rows))
			}

			outcome, msg, err := s.provisioner.Provision(wctx, tx, event, importLog.ID, cr)
			if err != nil {
				return err
			}
			switch outcome {
			case OutcomeCreated:
				totals.CreatedNew++
			case OutcomeLinked:
				totals.LinkedExisting++
			case OutcomeAlreadyRegistered:
				totals.SkippedAlreadyRegistered++
			}
			if msg != nil {
				if cr.SlotID != nil {
					msg.SlotDescription = descriptions[*cr.SlotID]
				}
				outbox = append(outbox, *msg)
			}
		}
		totals.Imported = totals.CreatedNew + totals.LinkedExisting

		if err := tx.FinalizeImportLog(wctx, importLog.ID, totals, s.now().UTC()); err != nil {
			return fmt.Errorf("finalize import log: %w", err)
		}
		if opts.AdvanceWatermark {
			if err := tx.AdvanceWatermark(wctx, event.ID, fetchedAt); err != nil {
				return fmt.Errorf("advance watermark: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("import failed", "error", err)
		return nil, fmt.Errorf("commit import: %w", err)
	}

	res := &CommitResult{
		ImportLogID:    importLog.ID,
		LinkedExisting: totals.LinkedExisting,
		CreatedNew:     totals.CreatedNew,
		RowsSkipped:    totals.Skipped(),
		Totals:         totals,
		Errors:         rowErrors,
		Warnings:       a.warnings(),
	}
	if opts.SendEmails {
		res.InvitationsSent, res.NotificationsSent = s.dispatch(wctx, outbox)
	}

	logger.Info("import committed",
		"import_log_id", importLog.ID.String(),
		"imported_by", importLog.ImportedBy,
		"total", totals.Total,
		"created_new", totals.CreatedNew,
		"linked_existing", totals.LinkedExisting,
		"skipped", totals.Skipped(),
		"invitations", res.InvitationsSent,
		"notifications", res.NotificationsSent,
		"duration", time.Since(start),
	)
	return res, nil
}

// dispatch enqueues each message and counts the ones accepted by the queue.
func (s *Service) dispatch(ctx context.Context, outbox []Message) (invitations, notifications int) {
	if len(outbox) == 0 {
		return 0, 0
	}
	if s.dispatcher == nil {
		s.logger.Warn("email dispatch requested but no dispatcher is configured", "messages", len(outbox))
		return 0, 0
	}

	for _, msg := range outbox {
		if err := s.dispatcher.Enqueue(ctx, msg); err != nil {
			s.logger.Warn("email enqueue failed",
				"kind", string(msg.Kind),
				"email", msg.To,
				"error", err,
			)
			continue
		}
		switch msg.Kind {
		case MessageInvitation:
			invitations++
		case MessageRegistrationNotice:
			notifications++
		}
	}
	return invitations, notifications
}
