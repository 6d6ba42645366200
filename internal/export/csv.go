// Package export renders document listings for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"bokforing/internal/core"
)

// CSVHeader is the first row of every document export.
var CSVHeader = []string{"Type", "Document Number", "Date", "Amount", "Currency", "Description", "Status", "Customer/Supplier"}

// WriteDocumentsCSV writes one row per document after the header. Amounts use
// the shortest decimal representation with a dot separator.
func WriteDocumentsCSV(w io.Writer, docs []core.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, d := range docs {
		row := []string{
			string(d.Type),
			d.DocumentNumber,
			d.Date,
			strconv.FormatFloat(d.Amount, 'f', -1, 64),
			d.CurrencyOrDefault(),
			d.Description,
			string(d.Status),
			d.Counterpart(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", d.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// FileName returns the attachment name for an export made at t.
func FileName(t time.Time) string {
	return "bookkeeping-documents-" + t.Format(time.DateOnly) + ".csv"
}
