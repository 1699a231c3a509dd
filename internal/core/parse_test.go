package core

import (
	"fmt"
	"strings"
	"testing"
)

func TestRowValidator_Parse(t *testing.T) {
	v := NewRowValidator(nil)

	unpaid := paidRow(2, "Martin", "Paul", "paul@example.fr")
	unpaid.Values[FieldPaid] = "Non"

	badEmail := paidRow(3, "Durand", "Luc", "luc-at-example.fr")

	unknownTariff := paidRow(4, "Petit", "Anne", "anne@example.fr")
	unknownTariff.Values[FieldTariff] = "Tarif VIP"

	unknownTariff2 := paidRow(5, "Roux", "Léa", "lea@example.fr")
	unknownTariff2.Values[FieldTariff] = "tarif vip"

	res := v.Parse([]RawRow{
		paidRow(1, "Dupont", "Marie", "marie@example.fr"),
		unpaid,
		badEmail,
		unknownTariff,
		unknownTariff2,
	})

	if res.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5", res.TotalRows)
	}
	if res.SkippedUnpaid != 1 {
		t.Errorf("SkippedUnpaid = %d, want 1", res.SkippedUnpaid)
	}
	if len(res.Errors) != 1 || res.Errors[0].RowNumber != 3 {
		t.Fatalf("Errors = %+v, want one error on row 3", res.Errors)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("Rows = %d, want 3", len(res.Rows))
	}

	// Folded labels share one warning.
	if len(res.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want 1", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], "2 row(s)") {
		t.Errorf("warning should count both rows: %q", res.Warnings[0])
	}
}

func TestRowValidator_Parse_UnpaidRowsAreNeverErrors(t *testing.T) {
	v := NewRowValidator(nil)

	r := paidRow(1, "", "", "not-an-email")
	r.Values[FieldValid] = "Non"

	res := v.Parse([]RawRow{r})
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %+v, want none for an ineligible row", res.Errors)
	}
	if res.SkippedUnpaid != 1 {
		t.Errorf("SkippedUnpaid = %d, want 1", res.SkippedUnpaid)
	}
}

func TestRowValidator_Parse_EmptyTariffWarning(t *testing.T) {
	v := NewRowValidator(nil)
	r := paidRow(1, "Dupont", "Marie", "marie@example.fr")
	r.Values[FieldTariff] = ""

	res := v.Parse([]RawRow{r})
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no tariff label") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if res.Rows[0].ListCategory != ListStandard {
		t.Errorf("ListCategory = %q, want fallback", res.Rows[0].ListCategory)
	}
}

func TestRowValidator_Parse_LargeInputKeepsOrder(t *testing.T) {
	v := NewRowValidator(nil)

	const n = 1000
	raws := make([]RawRow, n)
	for i := range raws {
		raws[i] = paidRow(i+1, "Nom", "Prenom", fmt.Sprintf("user%04d@example.fr", i))
		switch {
		case i%10 == 0:
			raws[i].Values[FieldPaid] = "Non"
		case i%7 == 0:
			raws[i].Values[FieldEmail] = "broken"
		}
	}

	res := v.Parse(raws)

	var wantRows, wantErrors, wantUnpaid int
	for i := 0; i < n; i++ {
		switch {
		case i%10 == 0:
			wantUnpaid++
		case i%7 == 0:
			wantErrors++
		default:
			wantRows++
		}
	}
	if len(res.Rows) != wantRows || len(res.Errors) != wantErrors || res.SkippedUnpaid != wantUnpaid {
		t.Fatalf("got rows=%d errors=%d unpaid=%d, want %d/%d/%d",
			len(res.Rows), len(res.Errors), res.SkippedUnpaid, wantRows, wantErrors, wantUnpaid)
	}
	for i := 1; i < len(res.Rows); i++ {
		if res.Rows[i].RowNumber <= res.Rows[i-1].RowNumber {
			t.Fatalf("rows out of order at %d: %d after %d", i, res.Rows[i].RowNumber, res.Rows[i-1].RowNumber)
		}
	}
	for i := 1; i < len(res.Errors); i++ {
		if res.Errors[i].RowNumber <= res.Errors[i-1].RowNumber {
			t.Fatalf("errors out of order at %d", i)
		}
	}
}
