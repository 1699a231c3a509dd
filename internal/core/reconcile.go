package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Classification is the fate of an importable row.
type Classification string

const (
	// ClassExistingNewRegistration links an existing account to the event.
	ClassExistingNewRegistration Classification = "existing_new_registration"
	// ClassBrandNewAccount creates an invited account, then registers it.
	ClassBrandNewAccount Classification = "brand_new_account"
)

// ClassifiedRow is a row that will be imported on commit.
type ClassifiedRow struct {
	Row     NormalizedRow
	Class   Classification
	Account *Account // set for ClassExistingNewRegistration
	SlotID  *uuid.UUID
}

// ReconcileStats counts rows dropped or matched during reconciliation.
type ReconcileStats struct {
	DuplicatesInFile   int
	AlreadyRegistered  int
	ExistingDepositors int
	NewDepositors      int
}

// SlotOccupancy is the advisory capacity picture of one slot.
type SlotOccupancy struct {
	SlotID        uuid.UUID `json:"slot_id"`
	Description   string    `json:"description"`
	StartsAt      time.Time `json:"starts_at"`
	CurrentCount  int       `json:"current_count"`
	IncomingCount int       `json:"incoming_count"`
	MaxCapacity   int       `json:"max_capacity"`
	OverCapacity  bool      `json:"over_capacity"`
}

// Reconciliation is the classified view of a source against the store.
type Reconciliation struct {
	// Rows holds the importable rows in source order.
	Rows     []ClassifiedRow
	ByEmail  map[string]int // index into Rows
	Stats    ReconcileStats
	Errors   []RowError // unknown_slot errors when slots are required
	Warnings []string

	SlotOccupancy     []SlotOccupancy
	CategoryBreakdown map[ListCategory]int
}

// Row returns the classified row for email, if it will be imported.
func (r *Reconciliation) Row(email string) (ClassifiedRow, bool) {
	i, ok := r.ByEmail[NormalizeEmail(email)]
	if !ok {
		return ClassifiedRow{}, false
	}
	return r.Rows[i], true
}

// Reconciler classifies normalized rows against existing accounts and
// registrations. It only reads from the store.
type Reconciler struct {
	store       Store
	location    *time.Location
	requireSlot bool
}

// NewReconciler creates a reconciler. Slot start times are matched in loc.
// With requireSlot, rows whose session matches no slot become unknown_slot
// errors instead of unassigned registrations.
func NewReconciler(store Store, loc *time.Location, requireSlot bool) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{store: store, location: loc, requireSlot: requireSlot}
}

// Classify walks rows in order. The first occurrence of an email wins and
// later ones count as in-file duplicates. Existing accounts already
// registered for the event are dropped; the rest are classified as existing
// or brand new. Capacity is computed but never enforced.
func (r *Reconciler) Classify(ctx context.Context, event Event, slots []Slot, rows []NormalizedRow, mapping SlotMapping) (*Reconciliation, error) {
	if mapping == nil {
		mapping = BuildSlotMapping(slots, r.location)
	}

	// First pass: in-file duplicates, so lookups only cover distinct emails.
	seen := make(map[string]bool, len(rows))
	unique := make([]NormalizedRow, 0, len(rows))
	rec := &Reconciliation{
		ByEmail:           make(map[string]int, len(rows)),
		CategoryBreakdown: make(map[ListCategory]int),
	}
	for _, row := range rows {
		if seen[row.Email] {
			rec.Stats.DuplicatesInFile++
			continue
		}
		seen[row.Email] = true
		unique = append(unique, row)
	}

	emails := make([]string, len(unique))
	for i, row := range unique {
		emails[i] = row.Email
	}
	accounts, err := r.lookupAccounts(ctx, emails)
	if err != nil {
		return nil, err
	}

	accountIDs := make([]uuid.UUID, 0, len(accounts))
	for _, acc := range accounts {
		accountIDs = append(accountIDs, acc.ID)
	}
	registered, err := r.store.RegisteredAccounts(ctx, event.ID, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("check registrations: %w", err)
	}

	incoming := make(map[uuid.UUID]int)
	for _, row := range unique {
		acc, exists := accounts[row.Email]
		if exists && registered[acc.ID] {
			rec.Stats.AlreadyRegistered++
			continue
		}

		var slotID *uuid.UUID
		if id, ok := mapping.Resolve(row.SessionKey, r.location); ok {
			slotID = &id
		} else {
			problem := fmt.Sprintf("session %q does not match any slot", row.SessionKey)
			if row.SessionKey == "" {
				problem = "no session"
			}
			if r.requireSlot {
				rec.Errors = append(rec.Errors, RowError{
					RowNumber:  row.RowNumber,
					Email:      row.Email,
					Type:       ErrTypeUnknownSlot,
					Message:    problem,
					FieldName:  string(FieldSession),
					FieldValue: row.SessionKey,
				})
				continue
			}
			rec.Warnings = append(rec.Warnings, fmt.Sprintf(
				"row %d: %s, registration will have no slot", row.RowNumber, problem))
		}

		cr := ClassifiedRow{Row: row, SlotID: slotID}
		if exists {
			a := acc
			cr.Class = ClassExistingNewRegistration
			cr.Account = &a
			rec.Stats.ExistingDepositors++
		} else {
			cr.Class = ClassBrandNewAccount
			rec.Stats.NewDepositors++
		}

		if slotID != nil {
			incoming[*slotID]++
		}
		rec.CategoryBreakdown[row.ListCategory]++
		rec.ByEmail[row.Email] = len(rec.Rows)
		rec.Rows = append(rec.Rows, cr)
	}

	occupancy, err := r.occupancy(ctx, event, slots, incoming)
	if err != nil {
		return nil, err
	}
	rec.SlotOccupancy = occupancy
	for _, o := range occupancy {
		if o.OverCapacity {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf(
				"slot %q would hold %d depositors for a capacity of %d",
				o.Description, o.CurrentCount+o.IncomingCount, o.MaxCapacity))
		}
	}

	return rec, nil
}

// lookupAccounts fetches accounts in batches to keep query parameters bounded.
func (r *Reconciler) lookupAccounts(ctx context.Context, emails []string) (map[string]Account, error) {
	accounts := make(map[string]Account, len(emails))
	for start := 0; start < len(emails); start += keyBatchSize {
		end := min(start+keyBatchSize, len(emails))
		batch, err := r.store.FindAccountsByEmail(ctx, emails[start:end])
		if err != nil {
			return nil, fmt.Errorf("lookup accounts: %w", err)
		}
		for email, acc := range batch {
			accounts[email] = acc
		}
	}
	return accounts, nil
}

func (r *Reconciler) occupancy(ctx context.Context, event Event, slots []Slot, incoming map[uuid.UUID]int) ([]SlotOccupancy, error) {
	current, err := r.store.CountRegistrationsBySlot(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("count slot registrations: %w", err)
	}

	out := make([]SlotOccupancy, 0, len(slots))
	for _, s := range slots {
		o := SlotOccupancy{
			SlotID:        s.ID,
			Description:   s.Description,
			StartsAt:      s.StartsAt,
			CurrentCount:  current[s.ID],
			IncomingCount: incoming[s.ID],
			MaxCapacity:   s.MaxCapacity,
		}
		o.OverCapacity = o.CurrentCount+o.IncomingCount > o.MaxCapacity
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// keyBatchSize bounds the number of emails per account lookup.
const keyBatchSize = 1000
