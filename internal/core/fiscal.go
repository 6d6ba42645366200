package core

import (
	"sort"
	"strconv"
	"strings"
)

// UnknownFiscalYear keys documents that carry neither a fiscal year nor a
// parseable date.
const UnknownFiscalYear = "unknown"

// FiscalYearKey resolves the yearly bucket of a document. An explicit fiscal
// year wins over the year of the transaction date.
func FiscalYearKey(d Document) string {
	if fy := strings.TrimSpace(d.FiscalYear); fy != "" {
		return fy
	}
	if t, ok := d.Time(); ok {
		return strconv.Itoa(t.Year())
	}
	return UnknownFiscalYear
}

// yearLess orders year keys numerically, with non-numeric keys after all
// numeric ones.
func yearLess(a, b string, ascending bool) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		if ascending {
			return ai < bi
		}
		return ai > bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

// SortYearsDescending orders rows newest first, the table order.
func SortYearsDescending(rows []YearlyFinancials) {
	sort.SliceStable(rows, func(i, j int) bool {
		return yearLess(rows[i].Year, rows[j].Year, false)
	})
}

// SortYearsAscending orders rows oldest first, the time-series order.
func SortYearsAscending(rows []YearlyFinancials) {
	sort.SliceStable(rows, func(i, j int) bool {
		return yearLess(rows[i].Year, rows[j].Year, true)
	})
}
