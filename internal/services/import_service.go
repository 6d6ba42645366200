package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bokforing/internal/amqp"
	"bokforing/internal/log"
	"bokforing/internal/normalize"
	"bokforing/internal/sheets"

	"github.com/google/uuid"
)

// DefaultMaxBatchSize is the record limit per payload.
const DefaultMaxBatchSize = 500

var (
	ErrBatchTooLarge    = errors.New("import batch too large")
	ErrInvalidPayload   = errors.New("invalid import payload")
	ErrQueueUnavailable = errors.New("import queue not configured")
)

// Publisher sends import messages to the queue.
type Publisher interface {
	PublishImport(ctx context.Context, msg *amqp.DocumentImportMessage) error
}

// BatchRecorder keeps an audit row per processed batch.
type BatchRecorder interface {
	RecordImportBatch(ctx context.Context, batchID, kind string, imported, rejected int) error
}

// Invalidator is told when stored documents change.
type Invalidator interface {
	Invalidate()
}

// ImportResult reports what happened to one payload.
type ImportResult struct {
	BatchID  string                `json:"batchId"`
	Kind     normalize.Kind        `json:"kind"`
	Imported int                   `json:"imported"`
	Rejected []normalize.Rejection `json:"rejected"`
	Queued   bool                  `json:"queued,omitempty"`
}

// ImportService normalizes provider payloads and stores the documents.
type ImportService struct {
	store     sheets.DocumentWriter
	publisher Publisher
	recorder  BatchRecorder
	reports   Invalidator
	maxBatch  int
	now       func() time.Time
}

// ImportOption configures an ImportService.
type ImportOption func(*ImportService)

func WithPublisher(p Publisher) ImportOption {
	return func(s *ImportService) { s.publisher = p }
}

func WithBatchRecorder(r BatchRecorder) ImportOption {
	return func(s *ImportService) { s.recorder = r }
}

func WithReportInvalidator(i Invalidator) ImportOption {
	return func(s *ImportService) { s.reports = i }
}

// WithMaxBatchSize limits the records accepted per payload. Values below
// one keep the default.
func WithMaxBatchSize(n int) ImportOption {
	return func(s *ImportService) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

func NewImportService(store sheets.DocumentWriter, opts ...ImportOption) *ImportService {
	s := &ImportService{
		store:    store,
		maxBatch: DefaultMaxBatchSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueueEnabled reports whether Enqueue can publish.
func (s *ImportService) QueueEnabled() bool {
	return s.publisher != nil
}

// Import processes payload synchronously under a fresh batch id.
func (s *ImportService) Import(ctx context.Context, kind normalize.Kind, payload []byte) (ImportResult, error) {
	return s.ImportBatch(ctx, uuid.NewString(), kind, payload)
}

// ImportBatch processes payload under batchID. Documents are upserted by id,
// so replaying a batch leaves the store unchanged.
func (s *ImportService) ImportBatch(ctx context.Context, batchID string, kind normalize.Kind, payload []byte) (ImportResult, error) {
	res, err := normalize.Payload(kind, payload, s.now())
	if err != nil {
		if errors.Is(err, normalize.ErrUnknownKind) {
			return ImportResult{}, err
		}
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if total := len(res.Documents) + len(res.Rejected); total > s.maxBatch {
		return ImportResult{}, fmt.Errorf("%w: %d records, limit %d", ErrBatchTooLarge, total, s.maxBatch)
	}

	result := ImportResult{
		BatchID:  batchID,
		Kind:     kind,
		Rejected: res.Rejected,
	}
	if result.Rejected == nil {
		result.Rejected = []normalize.Rejection{}
	}

	if len(res.Documents) > 0 {
		n, err := s.store.SaveDocuments(ctx, res.Documents)
		if err != nil {
			return ImportResult{}, fmt.Errorf("save documents: %w", err)
		}
		result.Imported = n
		if s.reports != nil {
			s.reports.Invalidate()
		}
	}

	if s.recorder != nil {
		if err := s.recorder.RecordImportBatch(ctx, batchID, string(kind), result.Imported, len(result.Rejected)); err != nil {
			slog.WarnContext(ctx, "Failed to record import batch", log.FieldBatchID, batchID, log.FieldError, err)
		}
	}

	for _, r := range result.Rejected {
		slog.DebugContext(ctx, "Record rejected",
			log.FieldComponent, log.ComponentNormalizer,
			log.FieldOperation, log.OpParse,
			log.FieldBatchID, batchID,
			log.FieldImportKind, kind,
			"index", r.Index,
			log.FieldDocumentID, r.ID,
			"reason", r.Reason)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogImportCompleted(ctx, batchID, string(kind), result.Imported, len(result.Rejected))

	return result, nil
}

// Enqueue hands payload to the import queue. Only the envelope is checked
// here; the worker normalizes.
func (s *ImportService) Enqueue(ctx context.Context, kind normalize.Kind, payload []byte) (ImportResult, error) {
	if s.publisher == nil {
		return ImportResult{}, ErrQueueUnavailable
	}
	if !json.Valid(payload) {
		return ImportResult{}, fmt.Errorf("%w: not valid JSON", ErrInvalidPayload)
	}

	msg := amqp.NewDocumentImportMessage(uuid.NewString(), string(kind), payload)
	if err := s.publisher.PublishImport(ctx, msg); err != nil {
		return ImportResult{}, fmt.Errorf("publish import: %w", err)
	}

	return ImportResult{
		BatchID:  msg.BatchID,
		Kind:     kind,
		Rejected: []normalize.Rejection{},
		Queued:   true,
	}, nil
}
