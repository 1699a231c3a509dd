package core

import "fmt"

// Field is a canonical source column, independent of the header text used
// by a given export.
type Field string

const (
	FieldLastName   Field = "last_name"
	FieldFirstName  Field = "first_name"
	FieldEmail      Field = "email"
	FieldSession    Field = "session"
	FieldTariff     Field = "tariff"
	FieldPaid       Field = "paid"
	FieldValid      Field = "valid"
	FieldPhone      Field = "phone"
	FieldAddress    Field = "address"
	FieldPostalCode Field = "postal_code"
	FieldCity       Field = "city"
	FieldOrderRef   Field = "order_reference"
)

// RequiredFields must be present as columns in every file source.
var RequiredFields = []Field{
	FieldLastName, FieldFirstName, FieldEmail, FieldSession, FieldTariff, FieldPaid, FieldValid,
}

// OptionalFields are read when present.
var OptionalFields = []Field{
	FieldPhone, FieldAddress, FieldPostalCode, FieldCity, FieldOrderRef,
}

// RawRow is one source row keyed by canonical field. Number is the 1-based
// line of the row in a file source, or its position in an API response.
type RawRow struct {
	Number int
	Values map[Field]string
}

// Get returns the cleaned value of f, or "" when absent.
func (r RawRow) Get(f Field) string {
	return CleanCell(r.Values[f])
}

// NormalizedRow is a validated, typed source row.
type NormalizedRow struct {
	RowNumber      int          `json:"row_number"`
	LastName       string       `json:"last_name"`
	FirstName      string       `json:"first_name"`
	Email          string       `json:"email"`
	SessionKey     string       `json:"session_key"`
	TariffLabel    string       `json:"tariff_label"`
	Paid           bool         `json:"paid"`
	Valid          bool         `json:"valid"`
	Phone          string       `json:"phone,omitempty"`
	Address        string       `json:"address,omitempty"`
	PostalCode     string       `json:"postal_code,omitempty"`
	City           string       `json:"city,omitempty"`
	OrderReference string       `json:"order_reference,omitempty"`
	ListCategory   ListCategory `json:"list_category"`
}

// Contact returns the optional contact fields of the row.
func (r NormalizedRow) Contact() ContactDetails {
	return ContactDetails{
		Phone:      r.Phone,
		Address:    r.Address,
		PostalCode: r.PostalCode,
		City:       r.City,
	}
}

// RowErrorType classifies a row rejection.
type RowErrorType string

const (
	ErrTypeInvalidEmail RowErrorType = "invalid_email"
	ErrTypeInvalidPhone RowErrorType = "invalid_phone"
	ErrTypeUnknownSlot  RowErrorType = "unknown_slot"
	ErrTypeMissingField RowErrorType = "missing_field"
)

// RowError describes why a row was rejected. It is reported, never returned
// as a Go error.
type RowError struct {
	RowNumber  int          `json:"row_number"`
	Email      string       `json:"email,omitempty"`
	Type       RowErrorType `json:"error_type"`
	Message    string       `json:"message"`
	FieldName  string       `json:"field_name,omitempty"`
	FieldValue string       `json:"field_value,omitempty"`
}

func (e RowError) String() string {
	if e.RowNumber > 0 {
		return fmt.Sprintf("row %d: %s", e.RowNumber, e.Message)
	}
	return e.Message
}

// ParseResult is the outcome of validating every raw row of a source.
type ParseResult struct {
	Rows        []NormalizedRow
	Errors      []RowError
	Warnings    []string
	SlotMapping SlotMapping

	TotalRows     int
	SkippedUnpaid int
}
