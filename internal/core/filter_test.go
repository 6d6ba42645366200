package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func listingDocs() []Document {
	return []Document{
		{ID: "invoice-1", Type: TypeInvoice, DocumentNumber: "1", Date: "2024-03-01", Customer: "Kund AB", Description: "Invoice to Kund AB", Status: StatusPaid},
		{ID: "payment-7", Type: TypePayment, DocumentNumber: "7", Date: "2024-06-01", Supplier: "Supplier Payment", Description: "Payment for Invoice 55", Status: StatusCompleted},
		{ID: "voucher-A-3", Type: TypeVoucher, DocumentNumber: "A3", Date: "2023-12-01", Description: "Rent", Status: StatusProcessed},
		{ID: "voucher-B-1", Type: TypeVoucher, DocumentNumber: "B1", FiscalYear: "2022", Description: "Opening balance", Status: StatusProcessed},
	}
}

func idsOf(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestFilterDocuments(t *testing.T) {
	cases := []struct {
		name   string
		filter DocumentFilter
		want   []string
	}{
		{"empty filter", DocumentFilter{}, []string{"invoice-1", "payment-7", "voucher-A-3", "voucher-B-1"}},
		{"by type", DocumentFilter{Type: TypeVoucher}, []string{"voucher-A-3", "voucher-B-1"}},
		{"by status", DocumentFilter{Status: StatusPaid}, []string{"invoice-1"}},
		{"search customer", DocumentFilter{Search: "kund"}, []string{"invoice-1"}},
		{"search number", DocumentFilter{Search: "a3"}, []string{"voucher-A-3"}},
		{"search description", DocumentFilter{Search: "INVOICE 55"}, []string{"payment-7"}},
		{"combined", DocumentFilter{Type: TypeVoucher, Search: "rent"}, []string{"voucher-A-3"}},
		{"no match", DocumentFilter{Search: "nothing"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := idsOf(FilterDocuments(listingDocs(), tc.filter))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSortByDateDescending(t *testing.T) {
	docs := listingDocs()
	SortByDateDescending(docs)
	want := []string{"payment-7", "invoice-1", "voucher-A-3", "voucher-B-1"}
	if diff := cmp.Diff(want, idsOf(docs)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestWindowContains(t *testing.T) {
	cases := []struct {
		name   string
		window Window
		date   string
		want   bool
	}{
		{"open window", Window{}, "garbage", true},
		{"inside", Window{From: "2024-01-01", To: "2024-12-31"}, "2024-06-01", true},
		{"inclusive from", Window{From: "2024-01-01"}, "2024-01-01", true},
		{"inclusive to with time", Window{To: "2024-12-31"}, "2024-12-31T23:59:00Z", true},
		{"before", Window{From: "2024-01-01"}, "2023-12-31", false},
		{"after", Window{To: "2023-12-31"}, "2024-01-01", false},
		{"no date", Window{From: "2024-01-01"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.window.Contains(Document{Date: tc.date}); got != tc.want {
				t.Fatalf("Contains(%q) = %v, want %v", tc.date, got, tc.want)
			}
		})
	}
}

func TestWindowValidate(t *testing.T) {
	if err := (Window{From: "2024-01-01", To: "2024-12-31"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Window{}).Validate(); err != nil {
		t.Fatalf("open window should be valid, got %v", err)
	}
	bad := []Window{
		{From: "2024-13-01"},
		{To: "yesterday"},
		{From: "2024-02-01", To: "2024-01-01"},
	}
	for _, w := range bad {
		if err := w.Validate(); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("Validate(%+v) = %v, want ErrInvalidWindow", w, err)
		}
	}
}

func TestWindowApply(t *testing.T) {
	got := idsOf(Window{From: "2024-01-01"}.Apply(listingDocs()))
	if diff := cmp.Diff([]string{"invoice-1", "payment-7"}, got); diff != "" {
		t.Fatalf("apply mismatch (-want +got):\n%s", diff)
	}
}
