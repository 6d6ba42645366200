package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bokforing/internal/core"
	"bokforing/internal/log"

	"golang.org/x/sync/errgroup"
)

// NamedSource labels a DocumentSource for logging.
type NamedSource struct {
	Name   string
	Source DocumentSource
}

// MultiSource reads several sources concurrently and merges their documents
// by id. A failing source is logged and skipped; ListDocuments only fails
// when every source fails. On duplicate ids the earlier source wins.
type MultiSource struct {
	sources []NamedSource
	limit   int
}

func NewMultiSource(sources ...NamedSource) *MultiSource {
	return &MultiSource{sources: sources, limit: 4}
}

func (m *MultiSource) ListDocuments(ctx context.Context, w core.Window) ([]core.Document, error) {
	if len(m.sources) == 0 {
		return []core.Document{}, nil
	}

	results := make([][]core.Document, len(m.sources))
	errs := make([]error, len(m.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit)
	for i, src := range m.sources {
		g.Go(func() error {
			docs, err := src.Source.ListDocuments(gctx, w)
			if err != nil {
				slog.WarnContext(ctx, "Document source failed", log.FieldSource, src.Name, log.FieldError, err)
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(m.sources) {
		return nil, fmt.Errorf("all document sources failed: %w", errors.Join(errs...))
	}

	seen := make(map[string]struct{})
	merged := make([]core.Document, 0)
	for _, docs := range results {
		for _, d := range docs {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			merged = append(merged, d)
		}
	}
	return merged, nil
}

// DataVersion combines the versions of the sources that report one. A
// source whose version cannot be read contributes a fixed marker, so the
// combined version changes again once it recovers.
func (m *MultiSource) DataVersion(ctx context.Context) (string, error) {
	parts := make([]string, 0, len(m.sources))
	for _, src := range m.sources {
		vs, ok := src.Source.(VersionedSource)
		if !ok {
			continue
		}
		v, err := vs.DataVersion(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Document source version unavailable", log.FieldSource, src.Name, log.FieldError, err)
			v = "unavailable"
		}
		parts = append(parts, src.Name+"="+v)
	}
	return strings.Join(parts, ","), nil
}
