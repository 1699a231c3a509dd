package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultInvitationTTL is how long an invitation token stays valid.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Outcome is what provisioning did with one row.
type Outcome int

const (
	OutcomeLinked Outcome = iota
	OutcomeCreated
	OutcomeAlreadyRegistered
)

// AccountProvisioner performs the writes of a commit for classified rows.
// It is only reachable from Service.Commit.
type AccountProvisioner struct {
	invitationTTL time.Duration
	now           func() time.Time
	newToken      func() (string, error)
}

// NewAccountProvisioner creates a provisioner issuing invitations valid for ttl.
func NewAccountProvisioner(ttl time.Duration) *AccountProvisioner {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &AccountProvisioner{
		invitationTTL: ttl,
		now:           time.Now,
		newToken:      NewInvitationToken,
	}
}

// Provision writes the account and registration for row. The returned
// message, if any, must only be dispatched after the transaction commits.
//
// Brand new rows create an invited, unverified account. If another run
// created the same email in the meantime, that account is linked instead.
// Existing accounts get blank contact fields filled in. A registration that
// already exists is reported as OutcomeAlreadyRegistered and changes nothing.
func (p *AccountProvisioner) Provision(ctx context.Context, tx Tx, event Event, logID uuid.UUID, cr ClassifiedRow) (Outcome, *Message, error) {
	now := p.now().UTC()
	row := cr.Row

	var (
		account Account
		outcome = OutcomeLinked
	)

	switch cr.Class {
	case ClassBrandNewAccount:
		token, err := p.newToken()
		if err != nil {
			return 0, nil, fmt.Errorf("generate invitation token: %w", err)
		}
		expires := now.Add(p.invitationTTL)
		acc, created, err := tx.CreateAccount(ctx, Account{
			ID:                  uuid.New(),
			Email:               row.Email,
			FirstName:           row.FirstName,
			LastName:            row.LastName,
			Phone:               row.Phone,
			Address:             row.Address,
			PostalCode:          row.PostalCode,
			City:                row.City,
			IsActive:            false,
			IsVerified:          false,
			InvitationToken:     token,
			InvitationExpiresAt: &expires,
			CreatedAt:           now,
		})
		if err != nil {
			return 0, nil, fmt.Errorf("row %d: create account: %w", row.RowNumber, err)
		}
		account = acc
		if created {
			outcome = OutcomeCreated
		} else if err := p.backfill(ctx, tx, acc, row); err != nil {
			return 0, nil, err
		}

	case ClassExistingNewRegistration:
		if cr.Account == nil {
			return 0, nil, fmt.Errorf("row %d: existing registration without account", row.RowNumber)
		}
		account = *cr.Account
		if err := p.backfill(ctx, tx, account, row); err != nil {
			return 0, nil, err
		}

	default:
		return 0, nil, fmt.Errorf("row %d: unknown classification %q", row.RowNumber, cr.Class)
	}

	created, err := tx.CreateRegistration(ctx, Registration{
		EventID:              event.ID,
		AccountID:            account.ID,
		SlotID:               cr.SlotID,
		ListCategory:         row.ListCategory,
		ExternalOrderRef:     row.OrderReference,
		ExternalSessionLabel: row.SessionKey,
		ExternalTariffLabel:  row.TariffLabel,
		ImportedAt:           &now,
		ImportLogID:          &logID,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("row %d: create registration: %w", row.RowNumber, err)
	}
	if !created {
		return OutcomeAlreadyRegistered, nil, nil
	}

	msg := &Message{
		ID:           uuid.New(),
		Kind:         MessageRegistrationNotice,
		To:           account.Email,
		FirstName:    firstNonEmpty(account.FirstName, row.FirstName),
		LastName:     firstNonEmpty(account.LastName, row.LastName),
		EventID:      event.ID,
		EventName:    event.Name,
		ListCategory: row.ListCategory,
		ImportLogID:  logID,
	}
	if outcome == OutcomeCreated {
		msg.Kind = MessageInvitation
		msg.InvitationToken = account.InvitationToken
		msg.ExpiresAt = account.InvitationExpiresAt
	}
	return outcome, msg, nil
}

func (p *AccountProvisioner) backfill(ctx context.Context, tx Tx, acc Account, row NormalizedRow) error {
	missing := ContactDetails{}
	if acc.Phone == "" {
		missing.Phone = row.Phone
	}
	if acc.Address == "" {
		missing.Address = row.Address
	}
	if acc.PostalCode == "" {
		missing.PostalCode = row.PostalCode
	}
	if acc.City == "" {
		missing.City = row.City
	}
	if missing.Empty() {
		return nil
	}
	if err := tx.BackfillContact(ctx, acc.ID, missing); err != nil {
		return fmt.Errorf("row %d: backfill contact: %w", row.RowNumber, err)
	}
	return nil
}

// NewInvitationToken returns a URL-safe random token.
func NewInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
