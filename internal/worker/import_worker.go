package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"bokforing/internal/amqp"
	"bokforing/internal/normalize"
	"bokforing/internal/services"
	"bokforing/internal/storage"
)

// Importer runs one import batch.
type Importer interface {
	ImportBatch(ctx context.Context, batchID string, kind normalize.Kind, payload []byte) (services.ImportResult, error)
}

// BatchLookup finds batches that were already processed.
type BatchLookup interface {
	ImportBatch(ctx context.Context, batchID string) (kind string, imported, rejected int, err error)
}

// ImportWorker applies queued import messages to the document store.
type ImportWorker struct {
	importer Importer
	batches  BatchLookup
}

// NewImportWorker creates a worker. batches may be nil, in which case every
// delivery is processed even when it was seen before.
func NewImportWorker(importer Importer, batches BatchLookup) *ImportWorker {
	return &ImportWorker{
		importer: importer,
		batches:  batches,
	}
}

// HandleImportMessage processes a single import message from AMQP. A
// returned error requeues the message, so payload problems that a retry
// cannot fix are logged and swallowed.
func (w *ImportWorker) HandleImportMessage(ctx context.Context, msg *amqp.DocumentImportMessage) error {
	slog.InfoContext(ctx, "Processing import message",
		"batch_id", msg.BatchID,
		"import_kind", msg.Kind,
		"timestamp", msg.Timestamp)

	if w.alreadyProcessed(ctx, msg.BatchID) {
		slog.InfoContext(ctx, "Import batch already processed, skipping", "batch_id", msg.BatchID)
		return nil
	}

	kind, err := normalize.ParseKind(msg.Kind)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping import message", "batch_id", msg.BatchID, "error", err)
		return nil
	}

	res, err := w.importer.ImportBatch(ctx, msg.BatchID, kind, msg.Payload)
	switch {
	case errors.Is(err, services.ErrInvalidPayload), errors.Is(err, services.ErrBatchTooLarge):
		slog.ErrorContext(ctx, "Dropping import message", "batch_id", msg.BatchID, "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("import batch %s: %w", msg.BatchID, err)
	}

	slog.InfoContext(ctx, "Successfully imported batch",
		"batch_id", res.BatchID,
		"import_kind", res.Kind,
		"documents", res.Imported,
		"rejected", len(res.Rejected))
	return nil
}

func (w *ImportWorker) alreadyProcessed(ctx context.Context, batchID string) bool {
	if w.batches == nil {
		return false
	}
	_, _, _, err := w.batches.ImportBatch(ctx, batchID)
	if err == nil {
		return true
	}
	if !errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Could not look up import batch", "batch_id", batchID, "error", err)
	}
	return false
}

// ImportSnapshots loads provider snapshot files from dir at startup. The
// batch id of each file is derived from its name so restarts do not
// duplicate audit rows. Missing files are skipped.
func (w *ImportWorker) ImportSnapshots(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}

	imported, failed := 0, 0
	for _, kind := range normalize.Kinds {
		path := filepath.Join(dir, kind.FileName())
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", path, err)
		}

		res, err := w.importer.ImportBatch(ctx, "snapshot-"+string(kind), kind, raw)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to import snapshot", "file", path, "error", err)
			failed++
			continue
		}
		imported += res.Imported
	}

	slog.InfoContext(ctx, "Snapshot import completed",
		"directory", dir,
		"documents", imported,
		"errors", failed)

	if failed > 0 {
		return fmt.Errorf("%d snapshot files failed to import", failed)
	}
	return nil
}
