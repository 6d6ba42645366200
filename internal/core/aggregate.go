package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// YearlyFinancials is the per fiscal year rollup of a document set. It is a
// derived view and is rebuilt on every call to Aggregate.
type YearlyFinancials struct {
	Year                 string  `json:"year"`
	Revenue              float64 `json:"revenue"`
	Expenses             float64 `json:"expenses"`
	Profit               float64 `json:"profit"`
	InvoiceCount         int     `json:"invoiceCount"`
	SupplierInvoiceCount int     `json:"supplierInvoiceCount"`
	// PaymentCount is only filled when WithSeparatePaymentCount is used.
	PaymentCount   int `json:"paymentCount,omitempty"`
	VoucherCount   int `json:"voucherCount"`
	TotalDocuments int `json:"totalDocuments"`
}

type aggregateOptions struct {
	separatePayments bool
}

// AggregateOption tunes Aggregate.
type AggregateOption func(*aggregateOptions)

// WithSeparatePaymentCount counts payment documents in PaymentCount instead
// of SupplierInvoiceCount.
func WithSeparatePaymentCount() AggregateOption {
	return func(o *aggregateOptions) {
		o.separatePayments = true
	}
}

// Aggregate folds documents into one YearlyFinancials per fiscal year. The
// order of the result is unspecified; callers sort with SortYearsDescending
// or SortYearsAscending.
//
// Revenue comes from invoices. Supplier invoices, payments, vouchers,
// expenses and receipts are expenses. Documents of an unknown type only
// count towards TotalDocuments.
func Aggregate(docs []Document, opts ...AggregateOption) []YearlyFinancials {
	var o aggregateOptions
	for _, opt := range opts {
		opt(&o)
	}

	byYear := make(map[string]*yearAccumulator)
	order := make([]string, 0)

	for _, d := range docs {
		key := FiscalYearKey(d)
		acc, ok := byYear[key]
		if !ok {
			acc = &yearAccumulator{row: YearlyFinancials{Year: key}}
			byYear[key] = acc
			order = append(order, key)
		}

		acc.row.TotalDocuments++
		amount := amountDecimal(d.Amount)

		switch d.Type {
		case TypeInvoice:
			acc.revenue = acc.revenue.Add(amount)
			acc.row.InvoiceCount++
		case TypeSupplierInvoice:
			acc.expenses = acc.expenses.Add(amount)
			acc.row.SupplierInvoiceCount++
		case TypePayment:
			acc.expenses = acc.expenses.Add(amount)
			if o.separatePayments {
				acc.row.PaymentCount++
			} else {
				acc.row.SupplierInvoiceCount++
			}
		case TypeVoucher:
			acc.expenses = acc.expenses.Add(amount)
			acc.row.VoucherCount++
		case TypeExpense, TypeReceipt:
			acc.expenses = acc.expenses.Add(amount)
		}
	}

	out := make([]YearlyFinancials, 0, len(order))
	for _, key := range order {
		out = append(out, byYear[key].finish())
	}
	return out
}

// yearAccumulator sums in decimal so the result does not depend on the
// order documents arrive in.
type yearAccumulator struct {
	row      YearlyFinancials
	revenue  decimal.Decimal
	expenses decimal.Decimal
}

func (a *yearAccumulator) finish() YearlyFinancials {
	row := a.row
	row.Revenue = a.revenue.InexactFloat64()
	row.Expenses = a.expenses.InexactFloat64()
	row.Profit = row.Revenue - row.Expenses
	return row
}

// amountDecimal converts an amount for summing. NaN and infinities
// contribute nothing.
func amountDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// FindYear returns the row for year, if present.
func FindYear(rows []YearlyFinancials, year string) (YearlyFinancials, bool) {
	for _, r := range rows {
		if r.Year == year {
			return r, true
		}
	}
	return YearlyFinancials{}, false
}

// Totals sums every row into a single row keyed "total".
func Totals(rows []YearlyFinancials) YearlyFinancials {
	t := YearlyFinancials{Year: "total"}
	for _, r := range rows {
		t.Revenue += r.Revenue
		t.Expenses += r.Expenses
		t.InvoiceCount += r.InvoiceCount
		t.SupplierInvoiceCount += r.SupplierInvoiceCount
		t.PaymentCount += r.PaymentCount
		t.VoucherCount += r.VoucherCount
		t.TotalDocuments += r.TotalDocuments
	}
	t.Profit = t.Revenue - t.Expenses
	return t
}
