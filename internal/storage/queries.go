package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type DocumentRow struct {
	ID             string
	Type           string
	DocumentNumber string
	Date           string
	Amount         float64
	Currency       string
	Description    string
	Status         string
	Supplier       string
	Customer       string
	Category       string
	Reference      string
	FiscalYear     string
}

const upsertDocument = `
INSERT INTO documents (
    id, type, document_number, date, amount, currency, description,
    status, supplier, customer, category, reference, fiscal_year
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    type = excluded.type,
    document_number = excluded.document_number,
    date = excluded.date,
    amount = excluded.amount,
    currency = excluded.currency,
    description = excluded.description,
    status = excluded.status,
    supplier = excluded.supplier,
    customer = excluded.customer,
    category = excluded.category,
    reference = excluded.reference,
    fiscal_year = excluded.fiscal_year,
    updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) UpsertDocument(ctx context.Context, arg DocumentRow) error {
	_, err := q.db.ExecContext(ctx, upsertDocument,
		arg.ID,
		arg.Type,
		arg.DocumentNumber,
		arg.Date,
		arg.Amount,
		arg.Currency,
		arg.Description,
		arg.Status,
		arg.Supplier,
		arg.Customer,
		arg.Category,
		arg.Reference,
		arg.FiscalYear,
	)
	return err
}

// Empty bounds are open. Bounded queries skip rows without a date.
const listDocuments = `
SELECT id, type, document_number, date, amount, currency, description,
       status, supplier, customer, category, reference, fiscal_year
FROM documents
WHERE (?1 = '' OR (date != '' AND substr(date, 1, 10) >= ?1))
  AND (?2 = '' OR (date != '' AND substr(date, 1, 10) <= ?2))
ORDER BY date DESC, id
`

type ListDocumentsParams struct {
	From string
	To   string
}

func (q *Queries) ListDocuments(ctx context.Context, arg ListDocumentsParams) ([]DocumentRow, error) {
	rows, err := q.db.QueryContext(ctx, listDocuments, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DocumentRow
	for rows.Next() {
		var i DocumentRow
		if err := rows.Scan(
			&i.ID,
			&i.Type,
			&i.DocumentNumber,
			&i.Date,
			&i.Amount,
			&i.Currency,
			&i.Description,
			&i.Status,
			&i.Supplier,
			&i.Customer,
			&i.Category,
			&i.Reference,
			&i.FiscalYear,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countDocuments = `SELECT COUNT(*) FROM documents`

func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countDocuments)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getDataVersion = `SELECT version FROM data_version WHERE id = 1`

func (q *Queries) GetDataVersion(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, getDataVersion)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const deleteDocument = `DELETE FROM documents WHERE id = ?`

func (q *Queries) DeleteDocument(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDocument, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertImportBatch = `
INSERT INTO import_batches (batch_id, kind, imported, rejected)
VALUES (?, ?, ?, ?)
ON CONFLICT(batch_id) DO UPDATE SET
    imported = excluded.imported,
    rejected = excluded.rejected
`

type InsertImportBatchParams struct {
	BatchID  string
	Kind     string
	Imported int64
	Rejected int64
}

func (q *Queries) InsertImportBatch(ctx context.Context, arg InsertImportBatchParams) error {
	_, err := q.db.ExecContext(ctx, insertImportBatch, arg.BatchID, arg.Kind, arg.Imported, arg.Rejected)
	return err
}

const getImportBatch = `
SELECT batch_id, kind, imported, rejected
FROM import_batches
WHERE batch_id = ?
`

func (q *Queries) GetImportBatch(ctx context.Context, batchID string) (InsertImportBatchParams, error) {
	row := q.db.QueryRowContext(ctx, getImportBatch, batchID)
	var i InsertImportBatchParams
	err := row.Scan(&i.BatchID, &i.Kind, &i.Imported, &i.Rejected)
	return i, err
}
