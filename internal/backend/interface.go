package backend

import (
	"context"

	"bokforing/internal/sheets"
)

// BatchStore records processed import batches and looks them up again.
type BatchStore interface {
	RecordImportBatch(ctx context.Context, batchID, kind string, imported, rejected int) error
	ImportBatch(ctx context.Context, batchID string) (kind string, imported, rejected int, err error)
}

// Pinger reports whether the storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentStore counts and removes stored documents.
type DocumentStore interface {
	CountDocuments(ctx context.Context) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the stores a binary needs. Batches and Ready are nil for
// backends without persistence.
type Result struct {
	// Source feeds reports. It may merge several stores.
	Source sheets.DocumentSource
	// Writer receives imported documents.
	Writer sheets.DocumentWriter
	// Documents is the store imports write to.
	Documents DocumentStore
	Batches   BatchStore
	Ready     Pinger
	Cleanup   CleanupFunc
}

// Close runs the cleanup function if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// DataDirectory holds provider snapshots. The memory backend loads them;
	// the sqlite backend serves them alongside stored documents.
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
