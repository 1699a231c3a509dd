package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PreviewStats summarizes what a commit of the same source would do.
type PreviewStats struct {
	TotalRows          int `json:"total_rows"`
	RowsUnpaidInvalid  int `json:"rows_unpaid_invalid"`
	RowsWithErrors     int `json:"rows_with_errors"`
	DuplicatesInFile   int `json:"duplicates_in_file"`
	AlreadyRegistered  int `json:"already_registered"`
	ExistingDepositors int `json:"existing_depositors"`
	NewDepositors      int `json:"new_depositors"`
	RowsToImport       int `json:"rows_to_import"`
}

// PreviewResult is the full report of a dry run. Errors and warnings are
// always complete, even when CanImport is false.
type PreviewResult struct {
	EventID           uuid.UUID            `json:"event_id"`
	Source            string               `json:"source"`
	Stats             PreviewStats         `json:"stats"`
	Errors            []RowError           `json:"errors"`
	Warnings          []string             `json:"warnings"`
	CanImport         bool                 `json:"can_import"`
	SlotOccupancy     []SlotOccupancy      `json:"slot_occupancy"`
	CategoryBreakdown map[ListCategory]int `json:"category_breakdown"`
	ProcessingTimeMs  int64                `json:"processing_time_ms"`
}

// PreviewOptions carries the caller's intent for the later commit.
type PreviewOptions struct {
	// IgnoreErrors reports whether the caller will commit with row errors
	// skipped. It only affects CanImport.
	IgnoreErrors bool
}

// Preview classifies the source against the current state of the event
// without writing anything. Capacity overflows are warnings, never blockers.
func (s *Service) Preview(ctx context.Context, eventID uuid.UUID, src Source, opts PreviewOptions) (*PreviewResult, error) {
	start := s.now()
	logger := s.logger.With("event_id", eventID.String(), "source", src.Describe())

	event, slots, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	a, err := s.analyze(ctx, event, slots, src)
	var missing *MissingColumnsError
	if errors.As(err, &missing) {
		logger.Info("preview rejected source", "missing_columns", missing.Columns)
		return missingColumnsPreview(event, src, missing), nil
	}
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}

	rowErrors := a.errors()
	res := &PreviewResult{
		EventID: event.ID,
		Source:  src.Describe(),
		Stats: PreviewStats{
			TotalRows:          a.parsed.TotalRows,
			RowsUnpaidInvalid:  a.parsed.SkippedUnpaid,
			RowsWithErrors:     len(rowErrors),
			DuplicatesInFile:   a.rec.Stats.DuplicatesInFile,
			AlreadyRegistered:  a.rec.Stats.AlreadyRegistered,
			ExistingDepositors: a.rec.Stats.ExistingDepositors,
			NewDepositors:      a.rec.Stats.NewDepositors,
			RowsToImport:       len(a.rec.Rows),
		},
		Errors:            rowErrors,
		Warnings:          a.warnings(),
		CanImport:         len(rowErrors) == 0 || opts.IgnoreErrors,
		SlotOccupancy:     a.rec.SlotOccupancy,
		CategoryBreakdown: fullBreakdown(a.rec.CategoryBreakdown),
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}

	logger.Info("preview complete",
		"total_rows", res.Stats.TotalRows,
		"to_import", res.Stats.RowsToImport,
		"errors", res.Stats.RowsWithErrors,
		"can_import", res.CanImport,
	)
	return res, nil
}

// missingColumnsPreview reports a rejected header as one missing_field error
// per column, with zero parsed rows.
func missingColumnsPreview(event Event, src Source, missing *MissingColumnsError) *PreviewResult {
	res := &PreviewResult{
		EventID:           event.ID,
		Source:            src.Describe(),
		Errors:            make([]RowError, 0, len(missing.Columns)),
		Warnings:          []string{},
		SlotOccupancy:     []SlotOccupancy{},
		CategoryBreakdown: fullBreakdown(nil),
	}
	for _, col := range missing.Columns {
		res.Errors = append(res.Errors, RowError{
			Type:      ErrTypeMissingField,
			Message:   fmt.Sprintf("required column %q is missing from the header", col),
			FieldName: col,
		})
	}
	res.Stats.RowsWithErrors = len(res.Errors)
	return res
}

// fullBreakdown lists every category, including empty ones.
func fullBreakdown(counts map[ListCategory]int) map[ListCategory]int {
	out := make(map[ListCategory]int, len(Categories()))
	for _, c := range Categories() {
		out[c] = counts[c]
	}
	return out
}
