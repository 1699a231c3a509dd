package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind selects the email template.
type MessageKind string

const (
	// MessageInvitation invites a newly provisioned account to activate.
	MessageInvitation MessageKind = "invitation"
	// MessageRegistrationNotice tells an existing depositor they are registered.
	MessageRegistrationNotice MessageKind = "registration_notice"
)

// Message is one queued email.
type Message struct {
	ID              uuid.UUID    `json:"id"`
	Kind            MessageKind  `json:"kind"`
	To              string       `json:"to"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	EventID         uuid.UUID    `json:"event_id"`
	EventName       string       `json:"event_name"`
	SlotDescription string       `json:"slot_description,omitempty"`
	ListCategory    ListCategory `json:"list_category"`
	InvitationToken string       `json:"invitation_token,omitempty"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty"`
	ImportLogID     uuid.UUID    `json:"import_log_id"`
}
