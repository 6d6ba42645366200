package core

import (
	"errors"
	"math"
	"testing"
)

func TestDocumentValidate(t *testing.T) {
	good := Document{
		ID:     "invoice-1",
		Type:   TypeInvoice,
		Date:   "2024-03-01",
		Amount: 100,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		doc  Document
		want error
	}{
		{"empty id", Document{Type: TypeInvoice, Date: "2024-01-01"}, ErrEmptyID},
		{"unknown type", Document{ID: "x", Type: "credit_note", Date: "2024-01-01"}, ErrInvalidDocumentType},
		{"no date no fiscal year", Document{ID: "x", Type: TypeVoucher}, ErrMissingDate},
		{"bad date", Document{ID: "x", Type: TypeVoucher, Date: "01/02/2024"}, ErrInvalidDate},
		{"nan amount", Document{ID: "x", Type: TypeVoucher, Date: "2024-01-01", Amount: math.NaN()}, ErrInvalidAmount},
		{"inf amount", Document{ID: "x", Type: TypeVoucher, Date: "2024-01-01", Amount: math.Inf(1)}, ErrInvalidAmount},
		{"bad currency", Document{ID: "x", Type: TypeVoucher, Date: "2024-01-01", Currency: "XXXX"}, ErrInvalidCurrency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.doc.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDocumentValidateFiscalYearWithoutDate(t *testing.T) {
	d := Document{ID: "voucher-A-1", Type: TypeVoucher, FiscalYear: "2022", Amount: -50}
	if err := d.Validate(); err != nil {
		t.Fatalf("expected ok for fiscal year without date, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		year int
		ok   bool
	}{
		{"2024-03-01", 2024, true},
		{"2023-12-31T23:00:00Z", 2023, true},
		{"2023-12-31T23:00:00+01:00", 2023, true},
		{"2022-06-01T10:00:00", 2022, true},
		{"2021-06-01 10:00:00", 2021, true},
		{" 2020-01-01 ", 2020, true},
		{"", 0, false},
		{"Invalid Date", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseDate(%q) ok=%v, want %v", tc.in, ok, tc.ok)
		}
		if ok && got.Year() != tc.year {
			t.Fatalf("ParseDate(%q) year=%d, want %d", tc.in, got.Year(), tc.year)
		}
	}
}

func TestDocumentHelpers(t *testing.T) {
	d := Document{Currency: " eur ", Supplier: "Acme"}
	if got := d.CurrencyOrDefault(); got != "EUR" {
		t.Fatalf("expected EUR, got %q", got)
	}
	if got := (Document{}).CurrencyOrDefault(); got != DefaultCurrency {
		t.Fatalf("expected default currency, got %q", got)
	}
	if got := d.Counterpart(); got != "Acme" {
		t.Fatalf("expected supplier counterpart, got %q", got)
	}
	d.Customer = "Buyer AB"
	if got := d.Counterpart(); got != "Buyer AB" {
		t.Fatalf("expected customer counterpart, got %q", got)
	}
}

func TestDocumentTypeLabel(t *testing.T) {
	for _, typ := range DocumentTypes {
		if !typ.IsValid() {
			t.Fatalf("%q should be valid", typ)
		}
		if typ.Label() == "" || typ.Label() == string(typ) {
			t.Fatalf("%q has no label", typ)
		}
	}
	if DocumentType("other").IsValid() {
		t.Fatal("unknown type should not be valid")
	}
	if DocumentStatus("lost").IsValid() {
		t.Fatal("unknown status should not be valid")
	}
}
