package core

import (
	"sort"
	"strings"
	"time"
)

// DocumentFilter narrows a document listing. Zero values match everything.
type DocumentFilter struct {
	Search string
	Type   DocumentType
	Status DocumentStatus
}

// FilterDocuments returns the documents matching f in their original order.
func FilterDocuments(docs []Document, f DocumentFilter) []Document {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if search != "" && !matchesSearch(d, search) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func matchesSearch(d Document, needle string) bool {
	for _, field := range []string{d.DocumentNumber, d.Description, d.Supplier, d.Customer} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// SortByDateDescending orders documents newest first. Documents without a
// parseable date go last.
func SortByDateDescending(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		ti, okI := docs[i].Time()
		tj, okJ := docs[j].Time()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

// Window is an inclusive date range in ISO form (2006-01-02). An empty bound
// is open.
type Window struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Key identifies the window in caches.
func (w Window) Key() string {
	return w.From + ".." + w.To
}

// Validate checks that both bounds parse and are ordered.
func (w Window) Validate() error {
	from, hasFrom, err := w.bound(w.From)
	if err != nil {
		return err
	}
	to, hasTo, err := w.bound(w.To)
	if err != nil {
		return err
	}
	if hasFrom && hasTo && to.Before(from) {
		return ErrInvalidWindow
	}
	return nil
}

func (w Window) bound(s string) (time.Time, bool, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false, ErrInvalidWindow
	}
	return t, true, nil
}

// Contains reports whether the document date falls inside the window. With
// both bounds open every document matches; otherwise documents without a
// parseable date are excluded.
func (w Window) Contains(d Document) bool {
	from, hasFrom, errFrom := w.bound(w.From)
	to, hasTo, errTo := w.bound(w.To)
	if errFrom != nil || errTo != nil {
		return false
	}
	if !hasFrom && !hasTo {
		return true
	}
	t, ok := d.Time()
	if !ok {
		return false
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if hasFrom && day.Before(from) {
		return false
	}
	if hasTo && day.After(to) {
		return false
	}
	return true
}

// Apply returns the documents inside the window.
func (w Window) Apply(docs []Document) []Document {
	if w.From == "" && w.To == "" {
		return docs
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if w.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}
