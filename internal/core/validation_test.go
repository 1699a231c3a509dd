package core

import "testing"

func raw(n int, values map[Field]string) RawRow {
	return RawRow{Number: n, Values: values}
}

func paidRow(n int, last, first, email string) RawRow {
	return raw(n, map[Field]string{
		FieldLastName:  last,
		FieldFirstName: first,
		FieldEmail:     email,
		FieldSession:   "2026-11-14 09:00",
		FieldTariff:    "Liste standard",
		FieldPaid:      "Oui",
		FieldValid:     "Oui",
	})
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Marie.Dupont@Example.FR "); got != "marie.dupont@example.fr" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"marie@example.fr", true},
		{"marie.dupont+bourse@example.co.uk", true},
		{"m_d-1@sub.example.org", true},
		{"", false},
		{"marie", false},
		{"marie@", false},
		{"@example.fr", false},
		{"marie@example", false},
		{"marie..dupont@example.fr", false},
		{"marie dupont@example.fr", false},
		{"marie@-example.fr", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ValidEmail(tt.email); got != tt.want {
				t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "national compact", input: "0612345678", want: "0612345678", wantOK: true},
		{name: "spaces", input: "06 12 34 56 78", want: "0612345678", wantOK: true},
		{name: "dots", input: "06.12.34.56.78", want: "0612345678", wantOK: true},
		{name: "dashes", input: "06-12-34-56-78", want: "0612345678", wantOK: true},
		{name: "non-breaking spaces", input: "06\u00a012\u00a034\u00a056\u00a078", want: "0612345678", wantOK: true},
		{name: "international plus", input: "+33 6 12 34 56 78", want: "0612345678", wantOK: true},
		{name: "international with trunk zero", input: "+33 (0)6 12 34 56 78", want: "0612345678", wantOK: true},
		{name: "international double zero", input: "0033612345678", want: "0612345678", wantOK: true},
		{name: "landline", input: "05 61 00 00 00", want: "0561000000", wantOK: true},
		{name: "too short", input: "06 12 34", wantOK: false},
		{name: "too long", input: "06 12 34 56 78 9", wantOK: false},
		{name: "letters", input: "06 12 34 56 7a", wantOK: false},
		{name: "zero after trunk", input: "0012345678", wantOK: false},
		{name: "foreign number", input: "+44 20 7946 0958", wantOK: false},
		{name: "plus in the middle", input: "06+12345678", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("NormalizePhone(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRowValidator_Eligible(t *testing.T) {
	v := NewRowValidator(nil)
	tests := []struct {
		name  string
		paid  string
		valid string
		want  bool
	}{
		{"paid and valid", "Oui", "Oui", true},
		{"paid not valid", "Oui", "Non", false},
		{"valid not paid", "", "Oui", false},
		{"neither", "Non", "Non", false},
		{"unknown spelling", "remboursé", "Oui", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := raw(1, map[Field]string{FieldPaid: tt.paid, FieldValid: tt.valid})
			if got := v.Eligible(r); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRowValidator_Normalize(t *testing.T) {
	v := NewRowValidator(nil)

	t.Run("valid row", func(t *testing.T) {
		r := paidRow(3, " Dupont ", "Marie", "Marie.Dupont@Example.fr")
		r.Values[FieldPhone] = "+33 6 12 34 56 78"
		r.Values[FieldTariff] = "Liste 1000 Adhérent"
		r.Values[FieldCity] = "Plaisance-du-Touch"

		row, rerr := v.Normalize(r)
		if rerr != nil {
			t.Fatalf("unexpected row error: %+v", rerr)
		}
		if row.RowNumber != 3 {
			t.Errorf("RowNumber = %d, want 3", row.RowNumber)
		}
		if row.LastName != "Dupont" {
			t.Errorf("LastName = %q, want trimmed", row.LastName)
		}
		if row.Email != "marie.dupont@example.fr" {
			t.Errorf("Email = %q, want lowercased", row.Email)
		}
		if row.Phone != "0612345678" {
			t.Errorf("Phone = %q, want national form", row.Phone)
		}
		if row.ListCategory != List1000 {
			t.Errorf("ListCategory = %q, want %q", row.ListCategory, List1000)
		}
		if row.City != "Plaisance-du-Touch" {
			t.Errorf("City = %q", row.City)
		}
		if !row.Paid || !row.Valid {
			t.Error("Paid and Valid should be true")
		}
	})

	tests := []struct {
		name      string
		mutate    func(RawRow)
		wantType  RowErrorType
		wantField Field
	}{
		{
			name:      "missing last name",
			mutate:    func(r RawRow) { r.Values[FieldLastName] = "" },
			wantType:  ErrTypeMissingField,
			wantField: FieldLastName,
		},
		{
			name:      "missing first name",
			mutate:    func(r RawRow) { r.Values[FieldFirstName] = "  " },
			wantType:  ErrTypeMissingField,
			wantField: FieldFirstName,
		},
		{
			name:      "missing email",
			mutate:    func(r RawRow) { delete(r.Values, FieldEmail) },
			wantType:  ErrTypeMissingField,
			wantField: FieldEmail,
		},
		{
			name:      "invalid email",
			mutate:    func(r RawRow) { r.Values[FieldEmail] = "marie.example.fr" },
			wantType:  ErrTypeInvalidEmail,
			wantField: FieldEmail,
		},
		{
			name:      "invalid phone",
			mutate:    func(r RawRow) { r.Values[FieldPhone] = "12345" },
			wantType:  ErrTypeInvalidPhone,
			wantField: FieldPhone,
		},
		{
			name: "first problem wins",
			mutate: func(r RawRow) {
				r.Values[FieldFirstName] = ""
				r.Values[FieldEmail] = "broken"
				r.Values[FieldPhone] = "12"
			},
			wantType:  ErrTypeMissingField,
			wantField: FieldFirstName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := paidRow(7, "Dupont", "Marie", "marie@example.fr")
			tt.mutate(r)

			_, rerr := v.Normalize(r)
			if rerr == nil {
				t.Fatal("expected a row error")
			}
			if rerr.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", rerr.Type, tt.wantType)
			}
			if rerr.FieldName != string(tt.wantField) {
				t.Errorf("FieldName = %q, want %q", rerr.FieldName, tt.wantField)
			}
			if rerr.RowNumber != 7 {
				t.Errorf("RowNumber = %d, want 7", rerr.RowNumber)
			}
		})
	}
}

func TestTariffMapper(t *testing.T) {
	m := DefaultTariffMapper()

	tests := []struct {
		label     string
		want      ListCategory
		wantKnown bool
	}{
		{"Liste standard", ListStandard, true},
		{"LISTE 1000", List1000, true},
		{"Liste 1000 Adhérent", List1000, true},
		{"Bénévole", List1000, true},
		{"Ami d'adhérent", List2000, true},
		{"  liste   2000  ", List2000, true},
		{"Tarif inconnu", ListStandard, false},
		{"", ListStandard, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, known := m.Lookup(tt.label)
			if got != tt.want || known != tt.wantKnown {
				t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.label, got, known, tt.want, tt.wantKnown)
			}
		})
	}
}

func TestTariffMapper_With(t *testing.T) {
	base := DefaultTariffMapper()
	ext := base.With(map[string]ListCategory{
		"Tarif Réduit": List2000,
		"standard":     List1000,
	})

	if got := ext.Map("tarif reduit"); got != List2000 {
		t.Errorf("extension label = %q, want %q", got, List2000)
	}
	if got := ext.Map("Standard"); got != List1000 {
		t.Errorf("extension should override, got %q", got)
	}
	if got := base.Map("Tarif Réduit"); got != ListStandard {
		t.Errorf("base mapper modified, got %q", got)
	}
}

func TestNewTariffMapper_InvalidFallback(t *testing.T) {
	m := NewTariffMapper(nil, ListCategory("gold"))
	if m.Fallback() != ListStandard {
		t.Errorf("Fallback() = %q, want %q", m.Fallback(), ListStandard)
	}
}
