package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"bokforing/internal/core"

	"github.com/google/go-cmp/cmp"
)

func TestWriteDocumentsCSV(t *testing.T) {
	docs := []core.Document{
		{ID: "invoice-1", Type: core.TypeInvoice, DocumentNumber: "1", Date: "2024-03-01", Amount: 1000.5, Description: "Invoice to Kund, AB", Status: core.StatusPaid, Customer: "Kund, AB"},
		{ID: "payment-7", Type: core.TypePayment, DocumentNumber: "7", Date: "2024-06-01", Amount: 250, Currency: "eur", Status: core.StatusCompleted, Supplier: "Supplier Payment"},
	}

	var buf bytes.Buffer
	if err := WriteDocumentsCSV(&buf, docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	want := [][]string{
		CSVHeader,
		{"invoice", "1", "2024-03-01", "1000.5", "SEK", "Invoice to Kund, AB", "paid", "Kund, AB"},
		{"payment", "7", "2024-06-01", "250", "EUR", "", "completed", "Supplier Payment"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDocumentsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocumentsCSV(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != strings.Join(CSVHeader, ",")+"\n" {
		t.Fatalf("expected header only, got %q", got)
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC))
	if got != "bookkeeping-documents-2024-02-03.csv" {
		t.Fatalf("unexpected file name %q", got)
	}
}
