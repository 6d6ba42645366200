package core

import (
	"github.com/shopspring/decimal"
)

// ChartPoint is one year of the revenue/expenses/profit time series.
type ChartPoint struct {
	Year              string  `json:"year"`
	Revenue           float64 `json:"revenue"`
	Expenses          float64 `json:"expenses"`
	Profit            float64 `json:"profit"`
	RevenueFormatted  string  `json:"revenueFormatted"`
	ExpensesFormatted string  `json:"expensesFormatted"`
	ProfitFormatted   string  `json:"profitFormatted"`
}

// BreakdownEntry is one slice of the current year expense pie.
type BreakdownEntry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Breakdown slice names and colors, in output order.
const (
	BreakdownSupplierInvoices = "Supplier Invoices"
	BreakdownPayments         = "Supplier Payments"
	BreakdownVouchers         = "Vouchers"
	BreakdownOther            = "Other Expenses"
)

var breakdownColors = map[string]string{
	BreakdownSupplierInvoices: "#8b5cf6",
	BreakdownPayments:         "#10b981",
	BreakdownVouchers:         "#f97316",
	BreakdownOther:            "#6b7280",
}

// ChartSeries projects yearly rows into chart points, oldest year first.
// The input slice is left untouched.
func ChartSeries(yearly []YearlyFinancials) []ChartPoint {
	rows := append([]YearlyFinancials(nil), yearly...)
	SortYearsAscending(rows)

	out := make([]ChartPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChartPoint{
			Year:              r.Year,
			Revenue:           RoundDisplay(r.Revenue),
			Expenses:          RoundDisplay(r.Expenses),
			Profit:            RoundDisplay(r.Profit),
			RevenueFormatted:  FormatCurrencyWhole(r.Revenue),
			ExpensesFormatted: FormatCurrencyWhole(r.Expenses),
			ProfitFormatted:   FormatCurrencyWhole(r.Profit),
		})
	}
	return out
}

// ExpenseBreakdown splits the expenses of currentYear into supplier invoices,
// supplier payments, vouchers and other (expenses and receipts). It folds the
// raw documents independently of Aggregate. Empty slices are dropped.
func ExpenseBreakdown(docs []Document, currentYear string) []BreakdownEntry {
	var supplierInvoices, payments, vouchers, other decimal.Decimal

	for _, d := range docs {
		if FiscalYearKey(d) != currentYear {
			continue
		}
		amount := amountDecimal(d.Amount)
		switch d.Type {
		case TypeSupplierInvoice:
			supplierInvoices = supplierInvoices.Add(amount)
		case TypePayment:
			payments = payments.Add(amount)
		case TypeVoucher:
			vouchers = vouchers.Add(amount)
		case TypeExpense, TypeReceipt:
			other = other.Add(amount)
		}
	}

	candidates := []struct {
		name  string
		value decimal.Decimal
	}{
		{BreakdownSupplierInvoices, supplierInvoices},
		{BreakdownPayments, payments},
		{BreakdownVouchers, vouchers},
		{BreakdownOther, other},
	}

	out := make([]BreakdownEntry, 0, len(candidates))
	for _, c := range candidates {
		v := roundHalfUp(c.value)
		if v <= 0 {
			continue
		}
		out = append(out, BreakdownEntry{Name: c.name, Value: v, Color: breakdownColors[c.name]})
	}
	return out
}

// BreakdownTotal sums the slice values.
func BreakdownTotal(entries []BreakdownEntry) float64 {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(amountDecimal(e.Value))
	}
	return total.InexactFloat64()
}

// RoundDisplay rounds to a whole number with halves going up, matching the
// dashboard charts (2.5 -> 3, -2.5 -> -2). Values stay float64 so sums far
// beyond the int64 range keep their sign and magnitude.
func RoundDisplay(v float64) float64 {
	return roundHalfUp(amountDecimal(v))
}

func roundHalfUp(d decimal.Decimal) float64 {
	return d.Add(decimal.NewFromFloat(0.5)).Floor().InexactFloat64()
}
