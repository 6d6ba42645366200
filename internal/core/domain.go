package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	TypeInvoice         DocumentType = "invoice"
	TypeExpense         DocumentType = "expense"
	TypeReceipt         DocumentType = "receipt"
	TypeVoucher         DocumentType = "voucher"
	TypeSupplierInvoice DocumentType = "supplier_invoice"
	TypePayment         DocumentType = "payment"
)

const (
	StatusPending   DocumentStatus = "pending"
	StatusApproved  DocumentStatus = "approved"
	StatusProcessed DocumentStatus = "processed"
	StatusPaid      DocumentStatus = "paid"
	StatusOverdue   DocumentStatus = "overdue"
	StatusCompleted DocumentStatus = "completed"
)

// DefaultCurrency is used when the source record carries no currency.
const DefaultCurrency = "SEK"

type (
	DocumentType   string
	DocumentStatus string

	// Document is a normalized accounting record. Only Type, Amount, Date and
	// FiscalYear take part in aggregation; the rest is descriptive.
	Document struct {
		ID             string         `json:"id"`
		Type           DocumentType   `json:"type"`
		DocumentNumber string         `json:"documentNumber"`
		Date           string         `json:"date"`
		Amount         float64        `json:"amount"`
		Currency       string         `json:"currency"`
		Description    string         `json:"description,omitempty"`
		Status         DocumentStatus `json:"status,omitempty"`
		Supplier       string         `json:"supplier,omitempty"`
		Customer       string         `json:"customer,omitempty"`
		Category       string         `json:"category,omitempty"`
		Reference      string         `json:"reference,omitempty"`
		FiscalYear     string         `json:"fiscalYear,omitempty"`
	}
)

var (
	ErrEmptyID             = errors.New("empty document id")
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrMissingDate         = errors.New("missing document date")
	ErrInvalidDate         = errors.New("invalid document date")
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidWindow       = errors.New("invalid date window")
	ErrNotFound            = errors.New("not found")
)

// DocumentTypes lists every known type in display order.
var DocumentTypes = []DocumentType{
	TypeInvoice,
	TypeSupplierInvoice,
	TypePayment,
	TypeVoucher,
	TypeExpense,
	TypeReceipt,
}

// IsValid reports whether t is one of the six known document types.
func (t DocumentType) IsValid() bool {
	switch t {
	case TypeInvoice, TypeExpense, TypeReceipt, TypeVoucher, TypeSupplierInvoice, TypePayment:
		return true
	default:
		return false
	}
}

// Label returns the human readable name used in listings.
func (t DocumentType) Label() string {
	switch t {
	case TypeInvoice:
		return "Invoice"
	case TypeSupplierInvoice:
		return "Supplier Invoice"
	case TypePayment:
		return "Supplier Payment"
	case TypeExpense:
		return "Expense"
	case TypeReceipt:
		return "Receipt"
	case TypeVoucher:
		return "Voucher"
	default:
		return string(t)
	}
}

func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusProcessed, StatusPaid, StatusOverdue, StatusCompleted:
		return true
	default:
		return false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses the ISO date forms accounting sources emit.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time returns the parsed transaction date.
func (d Document) Time() (time.Time, bool) {
	return ParseDate(d.Date)
}

// CurrencyOrDefault returns the document currency, falling back to SEK.
func (d Document) CurrencyOrDefault() string {
	if c := strings.TrimSpace(d.Currency); c != "" {
		return strings.ToUpper(c)
	}
	return DefaultCurrency
}

// Counterpart is the customer for sales documents and the supplier otherwise.
func (d Document) Counterpart() string {
	if d.Customer != "" {
		return d.Customer
	}
	return d.Supplier
}

// Validate checks the document at the normalizer and storage boundary. The
// aggregator itself accepts anything.
func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrEmptyID
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentType, d.Type)
	}
	if strings.TrimSpace(d.Date) == "" {
		if strings.TrimSpace(d.FiscalYear) == "" {
			return ErrMissingDate
		}
	} else if _, ok := d.Time(); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDate, d.Date)
	}
	if math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) {
		return ErrInvalidAmount
	}
	if !validCurrencyCode(d.CurrencyOrDefault()) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, d.Currency)
	}
	return nil
}
