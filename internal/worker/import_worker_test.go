package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"bokforing/internal/amqp"
	"bokforing/internal/normalize"
	"bokforing/internal/services"
	"bokforing/internal/sheets/memory"
	"bokforing/internal/storage"
)

type fakeBatches map[string]bool

func (f fakeBatches) ImportBatch(_ context.Context, id string) (string, int, int, error) {
	if f[id] {
		return "invoices", 1, 0, nil
	}
	return "", 0, 0, fmt.Errorf("import batch %s: %w", id, storage.ErrNotFound)
}

type failingImporter struct{ err error }

func (f failingImporter) ImportBatch(context.Context, string, normalize.Kind, []byte) (services.ImportResult, error) {
	return services.ImportResult{}, f.err
}

const vouchers = `{"Vouchers":[{"VoucherSeries":"A","VoucherNumber":1,"TransactionDate":"2024-01-10","Total":"150"}]}`

func TestHandleImportMessage(t *testing.T) {
	store := memory.New()
	w := NewImportWorker(services.NewImportService(store), fakeBatches{"seen": true})
	ctx := context.Background()

	tests := []struct {
		name      string
		msg       *amqp.DocumentImportMessage
		wantStore int
	}{
		{"imports new batch", amqp.NewDocumentImportMessage("b1", "vouchers", []byte(vouchers)), 1},
		{"skips processed batch", amqp.NewDocumentImportMessage("seen", "invoices", []byte(`[{"DocumentNumber":"9","InvoiceDate":"2024-01-01","Total":1}]`)), 1},
		{"drops unknown kind", amqp.NewDocumentImportMessage("b2", "receipts", []byte(`[]`)), 1},
		{"drops broken payload", amqp.NewDocumentImportMessage("b3", "vouchers", []byte(`{"Vouchers":{}}`)), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.HandleImportMessage(ctx, tt.msg); err != nil {
				t.Fatalf("HandleImportMessage() error = %v", err)
			}
			if store.Len() != tt.wantStore {
				t.Errorf("store holds %d documents, want %d", store.Len(), tt.wantStore)
			}
		})
	}
}

func TestHandleImportMessage_TransientErrorRequeues(t *testing.T) {
	w := NewImportWorker(failingImporter{err: errors.New("database is locked")}, nil)
	msg := amqp.NewDocumentImportMessage("b1", "vouchers", []byte(vouchers))
	if err := w.HandleImportMessage(context.Background(), msg); err == nil {
		t.Fatal("storage errors should be returned so the message is requeued")
	}
}

func TestImportSnapshots(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vouchers.json"), []byte(vouchers), 0o600); err != nil {
		t.Fatal(err)
	}

	store := memory.New()
	w := NewImportWorker(services.NewImportService(store), nil)
	if err := w.ImportSnapshots(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	if err := w.ImportSnapshots(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 document after repeated snapshot import, got %d", store.Len())
	}

	if err := w.ImportSnapshots(context.Background(), ""); err != nil {
		t.Errorf("empty dir should be a no-op, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "invoices.json"), []byte(`{`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := w.ImportSnapshots(context.Background(), dir); err == nil {
		t.Error("expected error for broken snapshot")
	}
}
