package sheets

import (
	"context"

	"bokforing/internal/core"
)

// Ports for outbound adapters.
type (
	// DocumentSource lists normalized documents whose date falls in the
	// window. An empty window returns everything.
	DocumentSource interface {
		ListDocuments(ctx context.Context, w core.Window) ([]core.Document, error)
	}

	// DocumentWriter upserts documents by id and returns how many were stored.
	DocumentWriter interface {
		SaveDocuments(ctx context.Context, docs []core.Document) (int, error)
	}

	// DocumentStore is a source that can also be written.
	DocumentStore interface {
		DocumentSource
		DocumentWriter
	}

	// VersionedSource reports a token that changes whenever its documents
	// change, including writes made by other processes.
	VersionedSource interface {
		DataVersion(ctx context.Context) (string, error)
	}

	// ReportExporter publishes the yearly table somewhere outside the service.
	ReportExporter interface {
		ExportYearly(ctx context.Context, rows []core.YearlyFinancials) (ref string, err error)
	}
)
