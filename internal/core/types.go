package core

import (
	"time"

	"github.com/google/uuid"
)

// ListCategory is the deposit list a registration belongs to.
type ListCategory string

const (
	ListStandard ListCategory = "standard"
	List1000     ListCategory = "list_1000"
	List2000     ListCategory = "list_2000"
)

// Valid reports whether c is a known category.
func (c ListCategory) Valid() bool {
	switch c {
	case ListStandard, List1000, List2000:
		return true
	}
	return false
}

// Categories returns every known list category in display order.
func Categories() []ListCategory {
	return []ListCategory{ListStandard, List1000, List2000}
}

// Event is one resale occurrence.
type Event struct {
	ID           uuid.UUID
	Name         string
	TicketingRef string     // external event id on the ticketing platform
	AutoSync     bool       // picked up by the sync scheduler
	LastSyncAt   *time.Time // sync watermark, nil until the first successful sync
}

// Slot is a bounded-capacity drop-off window of an event.
type Slot struct {
	ID                uuid.UUID
	EventID           uuid.UUID
	StartsAt          time.Time
	EndsAt            time.Time
	Description       string
	MaxCapacity       int
	ExternalSessionID string
}

// Account is a depositor account.
type Account struct {
	ID                  uuid.UUID
	Email               string
	FirstName           string
	LastName            string
	Phone               string
	Address             string
	PostalCode          string
	City                string
	IsActive            bool
	IsVerified          bool
	InvitationToken     string
	InvitationExpiresAt *time.Time
	CreatedAt           time.Time
}

// ContactDetails are the account fields an import may fill in when blank.
type ContactDetails struct {
	Phone      string
	Address    string
	PostalCode string
	City       string
}

// Empty reports whether no field is set.
func (c ContactDetails) Empty() bool {
	return c.Phone == "" && c.Address == "" && c.PostalCode == "" && c.City == ""
}

// Registration links an account to an event.
// (EventID, AccountID) is unique.
type Registration struct {
	EventID              uuid.UUID
	AccountID            uuid.UUID
	SlotID               *uuid.UUID
	ListCategory         ListCategory
	ExternalOrderRef     string
	ExternalSessionLabel string
	ExternalTariffLabel  string
	ImportedAt           *time.Time
	ImportLogID          *uuid.UUID
}
