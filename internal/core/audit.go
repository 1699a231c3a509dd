package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImportTotals are the per-run counters of an import. Every source row lands
// in exactly one of Imported or the Skipped* buckets.
type ImportTotals struct {
	Total                    int `json:"total"`
	Imported                 int `json:"imported"`
	LinkedExisting           int `json:"linked_existing"`
	CreatedNew               int `json:"created_new"`
	SkippedInvalid           int `json:"skipped_invalid"`
	SkippedUnpaid            int `json:"skipped_unpaid"`
	SkippedDuplicate         int `json:"skipped_duplicate"`
	SkippedAlreadyRegistered int `json:"skipped_already_registered"`
}

// Skipped returns the number of rows that were not imported.
func (t ImportTotals) Skipped() int {
	return t.SkippedInvalid + t.SkippedUnpaid + t.SkippedDuplicate + t.SkippedAlreadyRegistered
}

// ImportLog records one committed import run. It is written once, inside the
// commit transaction, and never changes afterwards.
type ImportLog struct {
	ID               uuid.UUID    `json:"id"`
	EventID          uuid.UUID    `json:"event_id"`
	ImportedBy       string       `json:"imported_by"`
	SourceDescriptor string       `json:"source_descriptor"`
	Totals           ImportTotals `json:"totals"`
	StartedAt        time.Time    `json:"started_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or 0 if it never completed.
func (l ImportLog) Duration() time.Duration {
	if l.CompletedAt == nil {
		return 0
	}
	return l.CompletedAt.Sub(l.StartedAt)
}

// ListImportLogs returns the import history of an event, newest first.
func (s *Service) ListImportLogs(ctx context.Context, eventID uuid.UUID) ([]ImportLog, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	logs, err := s.store.ListImportLogs(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list import logs: %w", err)
	}
	return logs, nil
}

// GetImportLog returns a single import log.
func (s *Service) GetImportLog(ctx context.Context, id uuid.UUID) (ImportLog, error) {
	return s.store.GetImportLog(ctx, id)
}
