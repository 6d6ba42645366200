package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bokforing/internal/core"
)

func TestMemoryStoreSaveAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	n, err := s.SaveDocuments(ctx, []core.Document{
		{ID: "invoice-1", Type: core.TypeInvoice, Date: "2024-03-01", Amount: 10},
		{ID: "voucher-A-1", Type: core.TypeVoucher, Date: "2023-03-01", Amount: 5},
	})
	if err != nil || n != 2 {
		t.Fatalf("unexpected save: n=%d err=%v", n, err)
	}

	// upsert keeps position
	if _, err := s.SaveDocuments(ctx, []core.Document{{ID: "invoice-1", Type: core.TypeInvoice, Date: "2024-03-01", Amount: 20}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	docs, err := s.ListDocuments(ctx, core.Window{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "invoice-1" || docs[0].Amount != 20 {
		t.Fatalf("unexpected documents %+v", docs)
	}

	docs, _ = s.ListDocuments(ctx, core.Window{From: "2024-01-01"})
	if len(docs) != 1 || docs[0].ID != "invoice-1" {
		t.Fatalf("expected window to keep only invoice-1, got %+v", docs)
	}

	if _, err := s.ListDocuments(ctx, core.Window{From: "bad"}); !errors.Is(err, core.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.SaveDocuments(context.Background(), []core.Document{
		{ID: "ok", Type: core.TypeInvoice, Date: "2024-01-01"},
		{ID: "", Type: core.TypeInvoice, Date: "2024-01-01"},
	})
	if !errors.Is(err, core.ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("nothing should be stored, got %d", s.Len())
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("invoices.json", `{"Invoices":[{"DocumentNumber":"1","InvoiceDate":"2024-03-01","Total":1000,"Balance":0,"CustomerName":"Kund AB"},{"DocumentNumber":"2","InvoiceDate":"bogus","Total":5}]}`)
	write("vouchers.json", `{"Vouchers":[{"VoucherSeries":"A","VoucherNumber":1,"TransactionDate":"2023-12-01","Total":100}]}`)

	s, err := NewFromFiles(dir, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 valid documents, got %d", s.Len())
	}

	write("supplierinvoicepayments.json", `{"SupplierInvoicePayments": [`)
	if _, err := NewFromFiles(dir, time.Now()); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
}

func TestNewFromFilesEmptyDir(t *testing.T) {
	s, err := NewFromFiles(t.TempDir(), time.Now())
	if err != nil || s.Len() != 0 {
		t.Fatalf("expected empty store, got len=%d err=%v", s.Len(), err)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "voucher-A-" + string(rune('a'+i))
			_, _ = s.SaveDocuments(ctx, []core.Document{{ID: id, Type: core.TypeVoucher, Date: "2024-01-01"}})
			_, _ = s.ListDocuments(ctx, core.Window{})
		}(i)
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Fatalf("expected 20 documents, got %d", s.Len())
	}
}

func TestMemoryStoreDeleteAndVersion(t *testing.T) {
	ctx := context.Background()
	s := New(core.Document{ID: "invoice-1", Type: core.TypeInvoice, Date: "2024-03-01", Amount: 10})

	v0, _ := s.DataVersion(ctx)
	if _, err := s.SaveDocuments(ctx, []core.Document{{ID: "voucher-A-1", Type: core.TypeVoucher, Date: "2024-03-02", Amount: 5}}); err != nil {
		t.Fatal(err)
	}
	v1, _ := s.DataVersion(ctx)
	if v1 == v0 {
		t.Error("a save should change the data version")
	}

	if err := s.DeleteDocument(ctx, "invoice-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(ctx, "invoice-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	v2, _ := s.DataVersion(ctx)
	if v2 == v1 {
		t.Error("a delete should change the data version")
	}

	n, _ := s.CountDocuments(ctx)
	docs, _ := s.ListDocuments(ctx, core.Window{})
	if n != 1 || len(docs) != 1 || docs[0].ID != "voucher-A-1" {
		t.Errorf("count=%d docs=%+v", n, docs)
	}
}
