package ticketing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// Credentials authenticate every call. Both are sent as query parameters.
type Credentials struct {
	User string `json:"user"`
	Key  string `json:"key"`
}

// Empty reports whether either credential is missing.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.User) == "" || strings.TrimSpace(c.Key) == ""
}

// FlexString decodes a JSON string, number or boolean as a string. null,
// objects and arrays decode as "" so one odd field never fails a whole list.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		*s = ""
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
	case '{', '[', 'n':
		*s = ""
	default:
		// numbers and true/false keep their JSON spelling
		*s = FlexString(b)
	}
	return nil
}

// FlexBool decodes true/false, numbers and the string spellings accepted for
// spreadsheet flags. Anything unrecognised is false, like core.Truthy: the
// attendee is then skipped as unpaid or invalid instead of failing the fetch.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if v, ok := core.ParseFlag(string(s)); ok {
		*f = FlexBool(v)
		return nil
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64); err == nil {
		*f = n != 0
		return nil
	}
	*f = false
	return nil
}

// Event is an event on the ticketing platform.
type Event struct {
	ID    FlexString `json:"id"`
	Name  string     `json:"name"`
	Date  string     `json:"date,omitempty"`
	Place string     `json:"place,omitempty"`
}

// Session is a dated session of a ticketing event. Sessions map to slots.
type Session struct {
	ID    FlexString `json:"id"`
	Name  string     `json:"name"`
	Start string     `json:"start"`
	End   string     `json:"end,omitempty"`
}

// Attendee is one ticket holder.
type Attendee struct {
	ID           FlexString `json:"id"`
	OrderEmail   string     `json:"order_email"`
	Email        string     `json:"email"`
	LastName     string     `json:"name"`
	FirstName    string     `json:"first_name"`
	Rate         string     `json:"rate"`
	Paid         FlexBool   `json:"paid"`
	Valid        FlexBool   `json:"valid"`
	SessionID    FlexString `json:"session_id"`
	SessionStart string     `json:"session_start"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	PostalCode   FlexString `json:"postal_code"`
	City         string     `json:"city"`
	OrderID      FlexString `json:"order_id"`
	Barcode      FlexString `json:"barcode"`
}

// ContactEmail prefers the order email, which the buyer controls.
func (a Attendee) ContactEmail() string {
	if e := strings.TrimSpace(a.OrderEmail); e != "" {
		return e
	}
	return strings.TrimSpace(a.Email)
}

// SessionRef is the session id, or the session start when the platform
// omits ids.
func (a Attendee) SessionRef() string {
	if a.SessionID != "" {
		return string(a.SessionID)
	}
	return a.SessionStart
}

// OrderRef is the order id, or the ticket barcode.
func (a Attendee) OrderRef() string {
	if a.OrderID != "" {
		return string(a.OrderID)
	}
	return string(a.Barcode)
}

// decodeList decodes a response that may be an array, a single object, or
// an object wrapping either under key.
func decodeList[T any](data []byte, key string) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var out []T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		if inner, ok := envelope[key]; ok {
			return decodeList[T](inner, key)
		}
		var one T
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		return []T{one}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON payload starting with %q", data[0])
	}
}
