package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bokforing/internal/core"
	"bokforing/internal/sheets/memory"
	"bokforing/internal/storage"

	"github.com/google/go-cmp/cmp"
)

var reportNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func reportDocs() []core.Document {
	return []core.Document{
		{ID: "invoice-1", Type: core.TypeInvoice, DocumentNumber: "1", Date: "2024-03-01", Amount: 1000, Currency: "SEK", Customer: "Acme AB"},
		{ID: "si-1", Type: core.TypeSupplierInvoice, DocumentNumber: "S1", Date: "2024-02-01", Amount: 300, Currency: "SEK", Supplier: "Kontorsmaterial"},
		{ID: "payment-1", Type: core.TypePayment, DocumentNumber: "P1", Date: "2024-02-15", Amount: 200, Currency: "SEK", Status: core.StatusCompleted},
		{ID: "voucher-A-1", Type: core.TypeVoucher, DocumentNumber: "A1", Date: "2023-12-01", Amount: 100, Currency: "SEK", Description: "Bank fee"},
	}
}

func newTestReportService(src interface {
	ListDocuments(context.Context, core.Window) ([]core.Document, error)
}) *ReportService {
	s := NewReportService(src, DefaultReportConfig())
	s.now = func() time.Time { return reportNow }
	return s
}

func TestReportService_Report(t *testing.T) {
	s := newTestReportService(memory.New(reportDocs()...))

	r, err := s.Report(context.Background(), core.Window{})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	wantYearly := []core.YearlyFinancials{
		{Year: "2024", Revenue: 1000, Expenses: 500, Profit: 500, InvoiceCount: 1, SupplierInvoiceCount: 2, TotalDocuments: 3},
		{Year: "2023", Expenses: 100, Profit: -100, VoucherCount: 1, TotalDocuments: 1},
	}
	if diff := cmp.Diff(wantYearly, r.Yearly); diff != "" {
		t.Errorf("yearly mismatch (-want +got):\n%s", diff)
	}

	if r.CurrentYear != "2024" || r.Current == nil || r.Current.Revenue != 1000 {
		t.Errorf("current year = %q %+v", r.CurrentYear, r.Current)
	}
	if r.Totals.Revenue != 1000 || r.Totals.Expenses != 600 || r.Totals.Profit != 400 {
		t.Errorf("totals = %+v", r.Totals)
	}
	if r.DocumentCount != 4 || !r.GeneratedAt.Equal(reportNow) {
		t.Errorf("count = %d generated = %v", r.DocumentCount, r.GeneratedAt)
	}
	if len(r.Chart) != 2 || r.Chart[0].Year != "2023" || r.Chart[1].Year != "2024" {
		t.Errorf("chart should be ascending, got %+v", r.Chart)
	}

	names := map[string]float64{}
	for _, e := range r.Breakdown {
		names[e.Name] = e.Value
	}
	wantBreakdown := map[string]float64{core.BreakdownSupplierInvoices: 300, core.BreakdownPayments: 200}
	if diff := cmp.Diff(wantBreakdown, names); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}
	if core.BreakdownTotal(r.Breakdown) != core.RoundDisplay(r.Current.Expenses) {
		t.Errorf("breakdown total %v does not match current expenses %v", core.BreakdownTotal(r.Breakdown), r.Current.Expenses)
	}
	if r.TotalProfitFormatted == "" {
		t.Error("formatted totals should be set")
	}
}

func TestReportService_NoCurrentYear(t *testing.T) {
	s := newTestReportService(memory.New(reportDocs()[3]))
	r, err := s.Report(context.Background(), core.Window{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Current != nil {
		t.Errorf("expected no current row, got %+v", r.Current)
	}
	if len(r.Breakdown) != 0 {
		t.Errorf("expected empty breakdown, got %+v", r.Breakdown)
	}
}

func TestReportService_SeparatePaymentCount(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.SeparatePaymentCount = true
	s := NewReportService(memory.New(reportDocs()...), cfg)

	r, err := s.Report(context.Background(), core.Window{})
	if err != nil {
		t.Fatal(err)
	}
	row, _ := core.FindYear(r.Yearly, "2024")
	if row.SupplierInvoiceCount != 1 || row.PaymentCount != 1 {
		t.Errorf("expected split counters, got %+v", row)
	}
}

func TestReportService_Window(t *testing.T) {
	s := newTestReportService(memory.New(reportDocs()...))

	r, err := s.Report(context.Background(), core.Window{From: "2024-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Yearly) != 1 || r.Yearly[0].Year != "2024" {
		t.Errorf("window should drop 2023, got %+v", r.Yearly)
	}

	_, err = s.Report(context.Background(), core.Window{From: "2024-12-31", To: "2024-01-01"})
	if !errors.Is(err, core.ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestReportService_BreakdownOtherYear(t *testing.T) {
	s := newTestReportService(memory.New(reportDocs()...))

	got, err := s.Breakdown(context.Background(), core.Window{}, "2023")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != core.BreakdownVouchers || got[0].Value != 100 {
		t.Errorf("breakdown 2023 = %+v", got)
	}

	current, err := s.Breakdown(context.Background(), core.Window{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if core.BreakdownTotal(current) != 500 {
		t.Errorf("current breakdown total = %v", core.BreakdownTotal(current))
	}
}

func TestReportService_Documents(t *testing.T) {
	s := newTestReportService(memory.New(reportDocs()...))

	docs, err := s.Documents(context.Background(), core.Window{}, core.DocumentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	want := []string{"invoice-1", "payment-1", "si-1", "voucher-A-1"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	docs, err = s.Documents(context.Background(), core.Window{}, core.DocumentFilter{Search: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "invoice-1" {
		t.Errorf("search result = %+v", docs)
	}
}

type countingSource struct {
	calls atomic.Int32
	gate  chan struct{}
	docs  []core.Document
	err   error
}

func (c *countingSource) ListDocuments(ctx context.Context, w core.Window) ([]core.Document, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return w.Apply(c.docs), c.err
}

func TestReportService_CachesAndCollapses(t *testing.T) {
	src := &countingSource{gate: make(chan struct{}), docs: reportDocs()}
	s := newTestReportService(src)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Report(context.Background(), core.Window{}); err != nil {
				t.Errorf("Report() error = %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if _, err := s.Report(context.Background(), core.Window{}); err != nil {
		t.Fatal(err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected a single source load, got %d", n)
	}

	if _, err := s.Report(context.Background(), core.Window{From: "2024-01-01"}); err != nil {
		t.Fatal(err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("a different window should load again, got %d calls", n)
	}
}

func TestReportService_Invalidate(t *testing.T) {
	src := &countingSource{docs: reportDocs()}
	s := newTestReportService(src)
	ctx := context.Background()

	first, err := s.Report(ctx, core.Window{})
	if err != nil {
		t.Fatal(err)
	}

	src.docs = append(src.docs, core.Document{ID: "invoice-2", Type: core.TypeInvoice, Date: "2024-04-01", Amount: 50, Currency: "SEK"})

	cached, _ := s.Report(ctx, core.Window{})
	if cached.DocumentCount != first.DocumentCount {
		t.Errorf("expected cached report before invalidation")
	}

	s.Invalidate()
	fresh, err := s.Report(ctx, core.Window{})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.DocumentCount != 5 || fresh.Totals.Revenue != 1050 {
		t.Errorf("expected refreshed report, got count=%d revenue=%v", fresh.DocumentCount, fresh.Totals.Revenue)
	}
}

func TestReportService_SeesWritesFromOtherProcesses(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bokforing.db")

	server, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	worker, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	defer worker.Close()

	if _, err := server.SaveDocuments(ctx, reportDocs()); err != nil {
		t.Fatal(err)
	}
	s := newTestReportService(server)

	first, err := s.Report(ctx, core.Window{})
	if err != nil {
		t.Fatal(err)
	}
	if first.DocumentCount != 4 {
		t.Fatalf("initial count = %d", first.DocumentCount)
	}

	extra := core.Document{ID: "invoice-2", Type: core.TypeInvoice, Date: "2024-04-01", Amount: 50, Currency: "SEK"}
	if _, err := worker.SaveDocuments(ctx, []core.Document{extra}); err != nil {
		t.Fatal(err)
	}

	next, err := s.Report(ctx, core.Window{})
	if err != nil {
		t.Fatal(err)
	}
	if next.DocumentCount != 5 || next.Totals.Revenue != 1050 {
		t.Errorf("write from the second handle not visible: count=%d revenue=%v", next.DocumentCount, next.Totals.Revenue)
	}

	if err := worker.DeleteDocument(ctx, "invoice-2"); err != nil {
		t.Fatal(err)
	}
	after, _ := s.Report(ctx, core.Window{})
	if after.DocumentCount != 4 {
		t.Errorf("delete from the second handle not visible: count=%d", after.DocumentCount)
	}
}

func TestReportService_VersionedSourceCachesUntilWrite(t *testing.T) {
	store := memory.New(reportDocs()...)
	s := newTestReportService(store)
	ctx := context.Background()

	first, _ := s.Report(ctx, core.Window{})
	again, _ := s.Report(ctx, core.Window{})
	if first != again {
		t.Error("unchanged store should serve the cached report")
	}

	if _, err := store.SaveDocuments(ctx, []core.Document{{ID: "invoice-2", Type: core.TypeInvoice, Date: "2024-04-01", Amount: 50}}); err != nil {
		t.Fatal(err)
	}
	fresh, _ := s.Report(ctx, core.Window{})
	if fresh.DocumentCount != 5 {
		t.Errorf("expected new document, got count=%d", fresh.DocumentCount)
	}
}

func TestReportService_SourceError(t *testing.T) {
	s := newTestReportService(&countingSource{err: errors.New("disk gone")})
	if _, err := s.Report(context.Background(), core.Window{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := s.Report(context.Background(), core.Window{}); err == nil {
		t.Fatal("errors should not be cached")
	}
}

type recordingExporter struct {
	rows []core.YearlyFinancials
	err  error
}

func (e *recordingExporter) ExportYearly(_ context.Context, rows []core.YearlyFinancials) (string, error) {
	e.rows = rows
	return "Bookkeeping!A1:I4", e.err
}

func TestReportService_ExportYearly(t *testing.T) {
	s := newTestReportService(memory.New(reportDocs()...))

	if _, err := s.ExportYearly(context.Background(), core.Window{}, nil); !errors.Is(err, ErrNoExporter) {
		t.Errorf("expected ErrNoExporter, got %v", err)
	}

	exp := &recordingExporter{}
	ref, err := s.ExportYearly(context.Background(), core.Window{}, exp)
	if err != nil {
		t.Fatal(err)
	}
	if ref != "Bookkeeping!A1:I4" || len(exp.rows) != 2 || exp.rows[0].Year != "2024" {
		t.Errorf("ref=%q rows=%+v", ref, exp.rows)
	}

	exp.err = errors.New("quota")
	if _, err := s.ExportYearly(context.Background(), core.Window{}, exp); err == nil {
		t.Error("expected exporter error")
	}
}
