package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	nbsp      = "\u00a0"
	minusSign = "\u2212"
)

// Swedish display symbols; currencies not listed are shown by ISO code.
var svSymbols = map[string]string{
	"SEK": "kr",
	"EUR": "€",
	"USD": "US$",
	"NOK": "Nkr",
	"DKK": "Dkr",
}

func validCurrencyCode(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}

// FormatCurrency renders amount the way the Swedish dashboard does, using the
// standard number of fraction digits of the currency. An empty currency
// means SEK.
func FormatCurrency(amount float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	return formatAmount(amount, code, scale)
}

// FormatCurrencyWhole renders a SEK amount without fraction digits, the chart
// variant.
func FormatCurrencyWhole(amount float64) string {
	return formatAmount(amount, DefaultCurrency, 0)
}

func formatAmount(amount float64, code string, scale int) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "NaN" + nbsp + symbolFor(code)
	}

	rounded := decimal.NewFromFloat(amount).Round(int32(scale))
	neg := rounded.IsNegative()
	abs := rounded.Abs().InexactFloat64()

	digits := message.NewPrinter(language.Swedish).Sprintf("%v", number.Decimal(abs, number.Scale(scale)))
	if neg {
		digits = minusSign + digits
	}
	return digits + nbsp + symbolFor(code)
}

func symbolFor(code string) string {
	if s, ok := svSymbols[code]; ok {
		return s
	}
	return code
}
