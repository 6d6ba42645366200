package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"bokforing/internal/core"
	"bokforing/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for missing documents and import batches.
var ErrNotFound = core.ErrNotFound

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for /readyz.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveDocuments implements sheets.DocumentWriter. All documents are upserted
// in one transaction; an invalid document aborts the whole batch.
func (r *SQLiteRepository) SaveDocuments(ctx context.Context, docs []core.Document) (int, error) {
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return 0, fmt.Errorf("document %q: %w", d.ID, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	for _, d := range docs {
		if err := qtx.UpsertDocument(ctx, toRow(d)); err != nil {
			return 0, fmt.Errorf("upsert document %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Documents saved to SQLite", log.FieldComponent, log.ComponentStorage, log.FieldOperation, log.OpSave, log.FieldDocuments, len(docs))
	return len(docs), nil
}

// ListDocuments implements sheets.DocumentSource, newest first.
func (r *SQLiteRepository) ListDocuments(ctx context.Context, w core.Window) ([]core.Document, error) {
	rows, err := r.queries.ListDocuments(ctx, ListDocumentsParams{From: w.From, To: w.To})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]core.Document, len(rows))
	for i, row := range rows {
		docs[i] = fromRow(row)
	}
	return docs, nil
}

// DataVersion changes whenever a document row is inserted, updated or
// deleted, by this process or any other writer of the same file.
func (r *SQLiteRepository) DataVersion(ctx context.Context) (string, error) {
	v, err := r.queries.GetDataVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("read data version: %w", err)
	}
	return strconv.FormatInt(v, 10), nil
}

// CountDocuments returns the number of stored documents.
func (r *SQLiteRepository) CountDocuments(ctx context.Context) (int64, error) {
	n, err := r.queries.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// DeleteDocument removes a document by id, ErrNotFound when absent.
func (r *SQLiteRepository) DeleteDocument(ctx context.Context, id string) error {
	n, err := r.queries.DeleteDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	slog.InfoContext(ctx, "Document deleted", log.FieldDocumentID, id, log.FieldOperation, log.OpDelete)
	return nil
}

// RecordImportBatch stores the outcome of an import batch. Replaying the same
// batch overwrites its counters.
func (r *SQLiteRepository) RecordImportBatch(ctx context.Context, batchID, kind string, imported, rejected int) error {
	err := r.queries.InsertImportBatch(ctx, InsertImportBatchParams{
		BatchID:  batchID,
		Kind:     kind,
		Imported: int64(imported),
		Rejected: int64(rejected),
	})
	if err != nil {
		return fmt.Errorf("record import batch %s: %w", batchID, err)
	}
	return nil
}

// ImportBatch returns the recorded counters of a batch.
func (r *SQLiteRepository) ImportBatch(ctx context.Context, batchID string) (kind string, imported, rejected int, err error) {
	b, err := r.queries.GetImportBatch(ctx, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, 0, fmt.Errorf("import batch %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return "", 0, 0, fmt.Errorf("get import batch %s: %w", batchID, err)
	}
	return b.Kind, int(b.Imported), int(b.Rejected), nil
}

func toRow(d core.Document) DocumentRow {
	return DocumentRow{
		ID:             d.ID,
		Type:           string(d.Type),
		DocumentNumber: d.DocumentNumber,
		Date:           d.Date,
		Amount:         d.Amount,
		Currency:       d.CurrencyOrDefault(),
		Description:    d.Description,
		Status:         string(d.Status),
		Supplier:       d.Supplier,
		Customer:       d.Customer,
		Category:       d.Category,
		Reference:      d.Reference,
		FiscalYear:     d.FiscalYear,
	}
}

func fromRow(r DocumentRow) core.Document {
	return core.Document{
		ID:             r.ID,
		Type:           core.DocumentType(r.Type),
		DocumentNumber: r.DocumentNumber,
		Date:           r.Date,
		Amount:         r.Amount,
		Currency:       r.Currency,
		Description:    r.Description,
		Status:         core.DocumentStatus(r.Status),
		Supplier:       r.Supplier,
		Customer:       r.Customer,
		Category:       r.Category,
		Reference:      r.Reference,
		FiscalYear:     r.FiscalYear,
	}
}
