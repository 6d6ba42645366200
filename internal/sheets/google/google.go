package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bokforing/internal/core"
	"bokforing/internal/log"
	ports "bokforing/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// YearlyHeader is the first row written by ExportYearly.
var YearlyHeader = []any{"Year", "Revenue", "Expenses", "Profit", "Invoices", "Supplier Invoices", "Payments", "Vouchers", "Documents"}

// Client writes reports into one tab of a spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
}

var _ ports.ReportExporter = (*Client)(nil)

// Options configures the service account used to reach the Sheets API.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// New creates a Sheets client authenticated with a service account, either
// inline JSON or a key file.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var auth goption.ClientOption
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		auth = goption.WithCredentialsJSON([]byte(opts.CredentialsJSON))
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading service account credentials from file", "path", opts.CredentialsFile)
		auth = goption.WithCredentialsFile(opts.CredentialsFile)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}

	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if sheetName == "" {
		sheetName = "Bookkeeping"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}
}

// ExportYearly replaces the content of the tab with the yearly table, newest
// year first, followed by a totals row.
func (c *Client) ExportYearly(ctx context.Context, rows []core.YearlyFinancials) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	clearRange := sheetRange(c.sheetName, "A:J")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := BuildYearlyValues(rows, c.now())
	target := sheetRange(c.sheetName, "A1")
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", target, err)
	}

	ref := target
	if resp != nil && resp.UpdatedRange != "" {
		ref = resp.UpdatedRange
	}
	slog.InfoContext(ctx, "Yearly report exported", log.FieldComponent, log.ComponentSheets, log.FieldSheetsRange, ref, "years", len(rows))
	return ref, nil
}

// sheetRange builds an A1 range on the named tab. The name is always quoted
// so spaces, punctuation and names that look like cells stay intact.
func sheetRange(sheetName, cells string) string {
	return "'" + strings.ReplaceAll(sheetName, "'", "''") + "'!" + cells
}

// BuildYearlyValues lays out the yearly table as sheet rows. The input is
// not modified.
func BuildYearlyValues(rows []core.YearlyFinancials, generatedAt time.Time) [][]any {
	sorted := append([]core.YearlyFinancials(nil), rows...)
	core.SortYearsDescending(sorted)

	values := make([][]any, 0, len(sorted)+3)
	values = append(values, YearlyHeader)
	for _, r := range sorted {
		values = append(values, yearlyRow(r))
	}
	values = append(values, yearlyRow(core.Totals(sorted)))
	values = append(values, []any{"Generated", generatedAt.UTC().Format(time.RFC3339)})
	return values
}

func yearlyRow(r core.YearlyFinancials) []any {
	return []any{
		r.Year,
		r.Revenue,
		r.Expenses,
		r.Profit,
		r.InvoiceCount,
		r.SupplierInvoiceCount,
		r.PaymentCount,
		r.VoucherCount,
		r.TotalDocuments,
	}
}
