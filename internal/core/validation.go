package core

// validation.go provides row-level validation for depositor rows.
//
// Validation happens in two steps:
//  1. Eligibility: rows whose paid and valid flags are not both set are
//     skipped and counted, they are never errors.
//  2. Normalization: required fields, email syntax and phone format are
//     checked and values are normalized into a NormalizedRow.
//
// A row yields either a NormalizedRow or exactly one RowError, the first
// problem found in field order.

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// nationalPhoneRegex matches a French national number: trunk prefix 0
// followed by nine digits, the first of which is not 0.
var nationalPhoneRegex = regexp.MustCompile(`^0[1-9][0-9]{8}$`)

// RowValidator validates and normalizes raw rows. It holds no mutable state
// and is safe for concurrent use.
type RowValidator struct {
	tariffs *TariffMapper
}

// NewRowValidator creates a validator resolving list categories with tariffs.
func NewRowValidator(tariffs *TariffMapper) *RowValidator {
	if tariffs == nil {
		tariffs = DefaultTariffMapper()
	}
	return &RowValidator{tariffs: tariffs}
}

// Tariffs returns the mapper used for list categories.
func (v *RowValidator) Tariffs() *TariffMapper {
	return v.tariffs
}

// Eligible reports whether the row is both paid and valid.
func (v *RowValidator) Eligible(raw RawRow) bool {
	return Truthy(raw.Get(FieldPaid)) && Truthy(raw.Get(FieldValid))
}

// Normalize validates raw and returns its typed form, or the first problem
// found as a RowError.
func (v *RowValidator) Normalize(raw RawRow) (NormalizedRow, *RowError) {
	email := NormalizeEmail(raw.Get(FieldEmail))

	for _, f := range []Field{FieldLastName, FieldFirstName, FieldEmail} {
		if raw.Get(f) == "" {
			return NormalizedRow{}, &RowError{
				RowNumber: raw.Number,
				Email:     email,
				Type:      ErrTypeMissingField,
				Message:   fmt.Sprintf("required field %s is empty", f),
				FieldName: string(f),
			}
		}
	}

	if !ValidEmail(email) {
		return NormalizedRow{}, &RowError{
			RowNumber:  raw.Number,
			Email:      email,
			Type:       ErrTypeInvalidEmail,
			Message:    fmt.Sprintf("invalid email address %q", raw.Get(FieldEmail)),
			FieldName:  string(FieldEmail),
			FieldValue: raw.Get(FieldEmail),
		}
	}

	phone := raw.Get(FieldPhone)
	if phone != "" {
		normalized, ok := NormalizePhone(phone)
		if !ok {
			return NormalizedRow{}, &RowError{
				RowNumber:  raw.Number,
				Email:      email,
				Type:       ErrTypeInvalidPhone,
				Message:    fmt.Sprintf("invalid phone number %q", phone),
				FieldName:  string(FieldPhone),
				FieldValue: phone,
			}
		}
		phone = normalized
	}

	tariff := raw.Get(FieldTariff)

	return NormalizedRow{
		RowNumber:      raw.Number,
		LastName:       raw.Get(FieldLastName),
		FirstName:      raw.Get(FieldFirstName),
		Email:          email,
		SessionKey:     raw.Get(FieldSession),
		TariffLabel:    tariff,
		Paid:           Truthy(raw.Get(FieldPaid)),
		Valid:          Truthy(raw.Get(FieldValid)),
		Phone:          phone,
		Address:        raw.Get(FieldAddress),
		PostalCode:     raw.Get(FieldPostalCode),
		City:           raw.Get(FieldCity),
		OrderReference: raw.Get(FieldOrderRef),
		ListCategory:   v.tariffs.Map(tariff),
	}, nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether an already normalized address is syntactically valid.
func ValidEmail(email string) bool {
	if len(email) > 254 || strings.Contains(email, "..") {
		return false
	}
	return emailRegex.MatchString(email)
}

// NormalizePhone strips separators and rewrites international prefixes
// (+33, 0033) into the national form. The second result is false when the
// number does not match the national format.
func NormalizePhone(s string) (string, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '-' || r == '/' || r == '(' || r == ')' || r == '\u00a0':
		default:
			return "", false
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "+33"):
		digits = "0" + strings.TrimPrefix(strings.TrimPrefix(digits, "+33"), "0")
	case strings.HasPrefix(digits, "0033"):
		digits = "0" + strings.TrimPrefix(strings.TrimPrefix(digits, "0033"), "0")
	}

	if !nationalPhoneRegex.MatchString(digits) {
		return "", false
	}
	return digits, true
}
