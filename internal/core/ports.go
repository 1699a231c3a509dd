package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence port of the pipeline. Reads happen outside any
// transaction; every mutation of a commit goes through one [Tx].
type Store interface {
	GetEvent(ctx context.Context, id uuid.UUID) (Event, error)
	ListSlots(ctx context.Context, eventID uuid.UUID) ([]Slot, error)

	// FindAccountsByEmail returns the accounts matching emails, keyed by
	// lowercased email. Missing emails are absent from the map.
	FindAccountsByEmail(ctx context.Context, emails []string) (map[string]Account, error)

	// RegisteredAccounts reports which of accountIDs already have a
	// registration for the event.
	RegisteredAccounts(ctx context.Context, eventID uuid.UUID, accountIDs []uuid.UUID) (map[uuid.UUID]bool, error)

	// CountRegistrationsBySlot returns the current registration count per slot.
	CountRegistrationsBySlot(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int, error)

	ListImportLogs(ctx context.Context, eventID uuid.UUID) ([]ImportLog, error)
	GetImportLog(ctx context.Context, id uuid.UUID) (ImportLog, error)

	// InTx runs fn in a write transaction, committed when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes a commit performs.
type Tx interface {
	CreateImportLog(ctx context.Context, log ImportLog) error
	FinalizeImportLog(ctx context.Context, id uuid.UUID, totals ImportTotals, completedAt time.Time) error

	// CreateAccount inserts acc. When an account with the same email already
	// exists it returns that account and created=false.
	CreateAccount(ctx context.Context, acc Account) (account Account, created bool, err error)

	// BackfillContact sets each non-empty field of c on the account where the
	// stored value is blank. Fields that already hold a value are untouched.
	BackfillContact(ctx context.Context, accountID uuid.UUID, c ContactDetails) error

	// CreateRegistration inserts reg unless (event, account) is already
	// registered, in which case created is false and nothing changes.
	CreateRegistration(ctx context.Context, reg Registration) (created bool, err error)

	AdvanceWatermark(ctx context.Context, eventID uuid.UUID, at time.Time) error
}

// Source yields raw rows for one run. Fetch failures are run-level: the
// whole preview or commit fails before any mutation.
type Source interface {
	Fetch(ctx context.Context, event Event) ([]RawRow, error)
	Describe() string
}

// PayloadSource is a Source backed by an uploaded file that can be archived.
type PayloadSource interface {
	Source
	Payload() (name string, data []byte)
}

// Dispatcher enqueues outbound emails. Implementations must not send
// synchronously.
type Dispatcher interface {
	Enqueue(ctx context.Context, msg Message) error
}

// EventLocker serializes commits per event. Lock does not wait: when another
// commit holds the event it returns [ErrImportInProgress].
type EventLocker interface {
	Lock(ctx context.Context, eventID uuid.UUID) (unlock func(), err error)
}

// Archiver keeps a copy of uploaded sources and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, eventID uuid.UUID, name string, data []byte) (location string, err error)
}
