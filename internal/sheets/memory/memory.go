package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"bokforing/internal/core"
	"bokforing/internal/normalize"
)

// Store keeps documents in memory keyed by id. Insertion order is kept so
// listings are stable before sorting.
type Store struct {
	mu      sync.Mutex
	order   []string
	docs    map[string]core.Document
	version uint64
}

func New(docs ...core.Document) *Store {
	s := &Store{docs: make(map[string]core.Document)}
	for _, d := range docs {
		s.put(d)
	}
	return s
}

// NewFromFiles seeds a store from provider snapshots in dir (invoices.json,
// supplierinvoicepayments.json, vouchers.json). Missing files are skipped and
// records that fail validation are logged and left out.
func NewFromFiles(dir string, now time.Time) (*Store, error) {
	s := New()
	for _, kind := range normalize.Kinds {
		path := filepath.Join(dir, kind.FileName())
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		res, err := normalize.Payload(kind, raw, now)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		for _, r := range res.Rejected {
			slog.Warn("Skipping invalid snapshot record", "file", path, "index", r.Index, "id", r.ID, "reason", r.Reason)
		}
		for _, d := range res.Documents {
			s.put(d)
		}
		slog.Info("Loaded snapshot", "file", path, "documents", len(res.Documents), "rejected", len(res.Rejected))
	}
	return s, nil
}

func (s *Store) put(d core.Document) {
	if _, ok := s.docs[d.ID]; !ok {
		s.order = append(s.order, d.ID)
	}
	s.docs[d.ID] = d
}

// SaveDocuments validates every document first, then upserts them all.
func (s *Store) SaveDocuments(_ context.Context, docs []core.Document) (int, error) {
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return 0, fmt.Errorf("document %q: %w", d.ID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.put(d)
	}
	if len(docs) > 0 {
		s.version++
	}
	return len(docs), nil
}

// DeleteDocument removes a document by id, core.ErrNotFound when absent.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	delete(s.docs, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.version++
	return nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(context.Context) (int64, error) {
	return int64(s.Len()), nil
}

// DataVersion counts the writes seen by the store.
func (s *Store) DataVersion(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatUint(s.version, 10), nil
}

// ListDocuments returns a copy of the documents inside the window.
func (s *Store) ListDocuments(_ context.Context, w core.Window) ([]core.Document, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Document, 0, len(s.order))
	for _, id := range s.order {
		if d := s.docs[id]; w.Contains(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
