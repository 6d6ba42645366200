// Package normalize maps accounting provider list payloads into validated
// core.Document values. Nothing untyped gets past this package.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bokforing/internal/core"

	"github.com/shopspring/decimal"
)

// Kind names a provider list payload.
type Kind string

const (
	KindInvoices                Kind = "invoices"
	KindSupplierInvoicePayments Kind = "supplier_invoice_payments"
	KindVouchers                Kind = "vouchers"
)

// Kinds lists every supported payload kind.
var Kinds = []Kind{KindInvoices, KindSupplierInvoicePayments, KindVouchers}

var ErrUnknownKind = errors.New("unknown import kind")

// ParseKind accepts the kind names used in URLs and queue messages.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindInvoices:
		return KindInvoices, nil
	case KindSupplierInvoicePayments, "supplierinvoicepayments", "payments":
		return KindSupplierInvoicePayments, nil
	case KindVouchers:
		return KindVouchers, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// FileName is the snapshot file holding a payload of this kind.
func (k Kind) FileName() string {
	switch k {
	case KindInvoices:
		return "invoices.json"
	case KindSupplierInvoicePayments:
		return "supplierinvoicepayments.json"
	case KindVouchers:
		return "vouchers.json"
	default:
		return string(k) + ".json"
	}
}

// envelopeKey is the top level key of the provider response.
func (k Kind) envelopeKey() string {
	switch k {
	case KindInvoices:
		return "Invoices"
	case KindSupplierInvoicePayments:
		return "SupplierInvoicePayments"
	default:
		return "Vouchers"
	}
}

// Rejection describes a record that did not become a document.
type Rejection struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Result is the outcome of normalizing one payload.
type Result struct {
	Documents []core.Document `json:"documents"`
	Rejected  []Rejection     `json:"rejected,omitempty"`
}

func (r *Result) add(index int, d core.Document) {
	if err := d.Validate(); err != nil {
		r.Rejected = append(r.Rejected, Rejection{Index: index, ID: d.ID, Reason: err.Error()})
		return
	}
	r.Documents = append(r.Documents, d)
}

// Invoice is a customer invoice as listed by the provider.
type Invoice struct {
	DocumentNumber            Text   `json:"DocumentNumber"`
	InvoiceDate               string `json:"InvoiceDate"`
	DueDate                   string `json:"DueDate"`
	Total                     Amount `json:"Total"`
	Balance                   Amount `json:"Balance"`
	Currency                  string `json:"Currency"`
	CustomerName              string `json:"CustomerName"`
	ExternalInvoiceReference1 string `json:"ExternalInvoiceReference1"`
}

// SupplierInvoicePayment settles a supplier invoice.
type SupplierInvoicePayment struct {
	Number        Text   `json:"Number"`
	InvoiceNumber Text   `json:"InvoiceNumber"`
	PaymentDate   string `json:"PaymentDate"`
	Amount        Amount `json:"Amount"`
	Currency      string `json:"Currency"`
	Booked        bool   `json:"Booked"`
}

// VoucherRow is one ledger line of a voucher.
type VoucherRow struct {
	Account Text   `json:"Account"`
	Debit   Amount `json:"Debit"`
	Credit  Amount `json:"Credit"`
}

// Voucher is a generic ledger transaction.
type Voucher struct {
	VoucherSeries     Text         `json:"VoucherSeries"`
	VoucherNumber     Text         `json:"VoucherNumber"`
	TransactionDate   string       `json:"TransactionDate"`
	VoucherDate       string       `json:"VoucherDate"`
	Description       string       `json:"Description"`
	Total             Amount       `json:"Total"`
	Amount            Amount       `json:"Amount"`
	VoucherRows       []VoucherRow `json:"VoucherRows"`
	FiscalYear        Text         `json:"FiscalYear"`
	ReferenceNumber   Text         `json:"ReferenceNumber"`
	ExternalReference Text         `json:"ExternalReference"`
}

// Invoices maps customer invoices. Status is paid when nothing is left to
// pay, overdue when the due date passed with a balance left, else pending.
func Invoices(list []Invoice, now time.Time) Result {
	res := Result{Documents: make([]core.Document, 0, len(list))}
	for i, inv := range list {
		number := inv.DocumentNumber.String()
		d := core.Document{
			ID:             "invoice-" + number,
			Type:           core.TypeInvoice,
			DocumentNumber: number,
			Date:           strings.TrimSpace(inv.InvoiceDate),
			Amount:         inv.Total.Float(),
			Currency:       currencyOrDefault(inv.Currency),
			Description:    "Invoice to " + inv.CustomerName,
			Status:         invoiceStatus(inv, now),
			Customer:       inv.CustomerName,
			Reference:      inv.ExternalInvoiceReference1,
			FiscalYear:     yearOf(inv.InvoiceDate),
		}
		if number == "" {
			d.ID = ""
		}
		res.add(i, d)
	}
	return res
}

func invoiceStatus(inv Invoice, now time.Time) core.DocumentStatus {
	if inv.Balance.Set && inv.Balance.Value.IsZero() {
		return core.StatusPaid
	}
	if due, ok := core.ParseDate(inv.DueDate); ok && due.Before(now) && inv.Balance.Value.IsPositive() {
		return core.StatusOverdue
	}
	return core.StatusPending
}

// SupplierInvoicePayments maps supplier payments.
func SupplierInvoicePayments(list []SupplierInvoicePayment) Result {
	res := Result{Documents: make([]core.Document, 0, len(list))}
	for i, p := range list {
		number := p.Number.String()
		status := core.StatusPending
		if p.Booked {
			status = core.StatusCompleted
		}
		d := core.Document{
			ID:             "payment-" + number,
			Type:           core.TypePayment,
			DocumentNumber: number,
			Date:           strings.TrimSpace(p.PaymentDate),
			Amount:         p.Amount.Float(),
			Currency:       currencyOrDefault(p.Currency),
			Description:    "Payment for Invoice " + p.InvoiceNumber.String(),
			Status:         status,
			Supplier:       "Supplier Payment",
			Reference:      p.InvoiceNumber.String(),
			FiscalYear:     yearOf(p.PaymentDate),
		}
		if number == "" {
			d.ID = ""
		}
		res.add(i, d)
	}
	return res
}

// Vouchers maps ledger vouchers. The amount is Total, else Amount, else the
// sum of row debits.
func Vouchers(list []Voucher) Result {
	res := Result{Documents: make([]core.Document, 0, len(list))}
	for i, v := range list {
		series, number := v.VoucherSeries.String(), v.VoucherNumber.String()
		date := strings.TrimSpace(v.TransactionDate)
		if date == "" {
			date = strings.TrimSpace(v.VoucherDate)
		}
		description := v.Description
		if description == "" {
			description = "Voucher " + series + number
		}
		reference := v.ReferenceNumber.String()
		if reference == "" {
			reference = v.ExternalReference.String()
		}
		fiscalYear := v.FiscalYear.String()
		if fiscalYear == "" {
			fiscalYear = yearOf(date)
		}
		d := core.Document{
			ID:             "voucher-" + series + "-" + number,
			Type:           core.TypeVoucher,
			DocumentNumber: series + number,
			Date:           date,
			Amount:         voucherAmount(v).InexactFloat64(),
			Currency:       core.DefaultCurrency,
			Description:    description,
			Status:         core.StatusProcessed,
			Reference:      reference,
			FiscalYear:     fiscalYear,
		}
		if number == "" {
			d.ID = ""
		}
		res.add(i, d)
	}
	return res
}

func voucherAmount(v Voucher) decimal.Decimal {
	switch {
	case v.Total.NonZero():
		return v.Total.Value
	case v.Amount.NonZero():
		return v.Amount.Value
	case len(v.VoucherRows) > 0:
		sum := decimal.Zero
		for _, row := range v.VoucherRows {
			if row.Debit.Set {
				sum = sum.Add(row.Debit.Value)
			}
		}
		return sum
	default:
		return decimal.Zero
	}
}

// Payload decodes a raw provider response of the given kind and normalizes
// it. Both the provider envelope ({"Invoices": [...]}) and a bare array are
// accepted.
func Payload(kind Kind, raw []byte, now time.Time) (Result, error) {
	switch kind {
	case KindInvoices:
		var list []Invoice
		if err := decodeList(kind, raw, &list); err != nil {
			return Result{}, err
		}
		return Invoices(list, now), nil
	case KindSupplierInvoicePayments:
		var list []SupplierInvoicePayment
		if err := decodeList(kind, raw, &list); err != nil {
			return Result{}, err
		}
		return SupplierInvoicePayments(list), nil
	case KindVouchers:
		var list []Voucher
		if err := decodeList(kind, raw, &list); err != nil {
			return Result{}, err
		}
		return Vouchers(list), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeList(kind Kind, raw []byte, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("decode %s: empty payload", kind)
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode %s: %w", kind, err)
		}
		return nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	list, ok := envelope[kind.envelopeKey()]
	if !ok || string(list) == "null" {
		return nil
	}
	if err := json.Unmarshal(list, dst); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

func currencyOrDefault(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return core.DefaultCurrency
	}
	return c
}

// yearOf returns the calendar year of an ISO date, or "" when it does not
// parse so the document is rejected on validation rather than bucketed.
func yearOf(date string) string {
	t, ok := core.ParseDate(date)
	if !ok {
		return ""
	}
	return strconv.Itoa(t.Year())
}
