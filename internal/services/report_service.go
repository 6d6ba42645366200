package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"bokforing/internal/cache"
	"bokforing/internal/core"
	"bokforing/internal/log"
	"bokforing/internal/sheets"

	"golang.org/x/sync/singleflight"
)

// ErrNoExporter is returned by ExportYearly without a configured exporter.
var ErrNoExporter = errors.New("no report exporter configured")

// ReportConfig tunes the report service.
type ReportConfig struct {
	CacheSize            int
	CacheTTL             time.Duration
	SeparatePaymentCount bool
}

// DefaultReportConfig matches the configuration defaults.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		CacheSize: 32,
		CacheTTL:  5 * time.Minute,
	}
}

// Report is the bookkeeping overview for one date window. Values returned by
// the service are shared with the cache and must not be modified.
type Report struct {
	Window                 core.Window             `json:"window"`
	Yearly                 []core.YearlyFinancials `json:"yearly"`
	Chart                  []core.ChartPoint       `json:"chart"`
	Breakdown              []core.BreakdownEntry   `json:"breakdown"`
	CurrentYear            string                  `json:"currentYear"`
	Current                *core.YearlyFinancials  `json:"current"`
	Totals                 core.YearlyFinancials   `json:"totals"`
	TotalRevenueFormatted  string                  `json:"totalRevenueFormatted"`
	TotalExpensesFormatted string                  `json:"totalExpensesFormatted"`
	TotalProfitFormatted   string                  `json:"totalProfitFormatted"`
	DocumentCount          int                     `json:"documentCount"`
	GeneratedAt            time.Time               `json:"generatedAt"`
}

// snapshot keeps the documents next to the report so listings and other
// years' breakdowns do not reload the source.
type snapshot struct {
	docs   []core.Document
	report *Report
}

// ReportService builds reports from a document source. Results are cached
// per window; concurrent requests for the same window share one load.
type ReportService struct {
	source     sheets.DocumentSource
	cfg        ReportConfig
	cache      *cache.LRUCache[*snapshot]
	group      singleflight.Group
	generation atomic.Uint64
	now        func() time.Time
}

func NewReportService(source sheets.DocumentSource, cfg ReportConfig) *ReportService {
	return &ReportService{
		source: source,
		cfg:    cfg,
		cache:  cache.NewLRUCache[*snapshot](cfg.CacheSize, cfg.CacheTTL),
		now:    time.Now,
	}
}

// Cache exposes the snapshot cache for periodic cleanup.
func (s *ReportService) Cache() cache.Cleaner {
	return s.cache
}

// CacheStats returns hit and miss counters of the snapshot cache.
func (s *ReportService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Invalidate drops every cached report. Loads already in flight finish but
// their results are not cached.
func (s *ReportService) Invalidate() {
	s.generation.Add(1)
	s.cache.Purge()
}

// Report returns the overview for w.
func (s *ReportService) Report(ctx context.Context, w core.Window) (*Report, error) {
	snap, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	return snap.report, nil
}

// Breakdown returns the expense split for year, defaulting to the current
// year when year is empty.
func (s *ReportService) Breakdown(ctx context.Context, w core.Window, year string) ([]core.BreakdownEntry, error) {
	snap, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	if year == "" || year == snap.report.CurrentYear {
		return snap.report.Breakdown, nil
	}
	return core.ExpenseBreakdown(snap.docs, year), nil
}

// Documents lists the window's documents matching f, newest first.
func (s *ReportService) Documents(ctx context.Context, w core.Window, f core.DocumentFilter) ([]core.Document, error) {
	snap, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	docs := core.FilterDocuments(snap.docs, f)
	core.SortByDateDescending(docs)
	return docs, nil
}

// ExportYearly writes the yearly rows of w through exporter.
func (s *ReportService) ExportYearly(ctx context.Context, w core.Window, exporter sheets.ReportExporter) (string, error) {
	if exporter == nil {
		return "", ErrNoExporter
	}
	report, err := s.Report(ctx, w)
	if err != nil {
		return "", err
	}
	ref, err := exporter.ExportYearly(ctx, report.Yearly)
	if err != nil {
		return "", fmt.Errorf("export yearly report: %w", err)
	}
	slog.InfoContext(ctx, "Yearly report exported",
		"component", "report",
		"window", w.Key(),
		"years", len(report.Yearly),
		"range", ref)
	return ref, nil
}

func (s *ReportService) load(ctx context.Context, w core.Window) (*snapshot, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	gen := s.generation.Load()
	key := strconv.FormatUint(gen, 10) + "|" + w.Key()
	// Sources written by other processes expose a version; it is read before
	// listing so a concurrent write always leads to a new key.
	if vs, ok := s.source.(sheets.VersionedSource); ok {
		version, err := vs.DataVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("data version: %w", err)
		}
		key += "|" + version
	}
	if snap, ok := s.cache.Get(key); ok {
		return snap, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		docs, err := s.source.ListDocuments(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		snap := &snapshot{docs: docs, report: s.build(w, docs)}
		if s.generation.Load() == gen {
			s.cache.Set(key, snap)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Report loaded",
		log.FieldComponent, log.ComponentReport,
		log.FieldOperation, log.OpAggregate,
		log.FieldWindow, w.Key(),
		"shared", shared)
	return v.(*snapshot), nil
}

func (s *ReportService) build(w core.Window, docs []core.Document) *Report {
	var opts []core.AggregateOption
	if s.cfg.SeparatePaymentCount {
		opts = append(opts, core.WithSeparatePaymentCount())
	}

	now := s.now()
	currentYear := strconv.Itoa(now.Year())

	yearly := core.Aggregate(docs, opts...)
	core.SortYearsDescending(yearly)
	totals := core.Totals(yearly)

	r := &Report{
		Window:                 w,
		Yearly:                 yearly,
		Chart:                  core.ChartSeries(yearly),
		Breakdown:              core.ExpenseBreakdown(docs, currentYear),
		CurrentYear:            currentYear,
		Totals:                 totals,
		TotalRevenueFormatted:  core.FormatCurrencyWhole(totals.Revenue),
		TotalExpensesFormatted: core.FormatCurrencyWhole(totals.Expenses),
		TotalProfitFormatted:   core.FormatCurrencyWhole(totals.Profit),
		DocumentCount:          len(docs),
		GeneratedAt:            now,
	}
	if row, ok := core.FindYear(yearly, currentYear); ok {
		r.Current = &row
	}
	return r
}
