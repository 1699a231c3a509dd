package ticketing

import (
	"context"
	"strconv"
	"time"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// AttendeeLister is the part of Client an AttendeeSource needs.
type AttendeeLister interface {
	ListAttendees(ctx context.Context, eventRef string, since *time.Time) ([]Attendee, error)
}

// AttendeeSource adapts the attendee endpoint to core.Source. It asks for
// attendees changed since the event's watermark, or for all of them on the
// first sync or when FullResync is set.
type AttendeeSource struct {
	lister     AttendeeLister
	FullResync bool
}

// NewAttendeeSource wraps lister.
func NewAttendeeSource(lister AttendeeLister) *AttendeeSource {
	return &AttendeeSource{lister: lister}
}

// Describe identifies the source in import logs.
func (s *AttendeeSource) Describe() string {
	if s.FullResync {
		return "api:attendees full"
	}
	return "api:attendees"
}

// Fetch lists the attendees of the event's ticketing counterpart. An event
// without a ticketing reference fails with core.ErrEventNotLinked.
func (s *AttendeeSource) Fetch(ctx context.Context, event core.Event) ([]core.RawRow, error) {
	if event.TicketingRef == "" {
		return nil, core.ErrEventNotLinked
	}

	var since *time.Time
	if !s.FullResync {
		since = event.LastSyncAt
	}

	attendees, err := s.lister.ListAttendees(ctx, event.TicketingRef, since)
	if err != nil {
		return nil, err
	}

	rows := make([]core.RawRow, len(attendees))
	for i, a := range attendees {
		rows[i] = core.RawRow{
			Number: i + 1,
			Values: map[core.Field]string{
				core.FieldLastName:   a.LastName,
				core.FieldFirstName:  a.FirstName,
				core.FieldEmail:      a.ContactEmail(),
				core.FieldSession:    a.SessionRef(),
				core.FieldTariff:     a.Rate,
				core.FieldPaid:       strconv.FormatBool(bool(a.Paid)),
				core.FieldValid:      strconv.FormatBool(bool(a.Valid)),
				core.FieldPhone:      a.Phone,
				core.FieldAddress:    a.Address,
				core.FieldPostalCode: string(a.PostalCode),
				core.FieldCity:       a.City,
				core.FieldOrderRef:   a.OrderRef(),
			},
		}
	}
	return rows, nil
}
