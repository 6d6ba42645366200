package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a provider amount that may arrive as a JSON number, a numeric
// string, an empty string or null. Values that do not parse count as unset.
type Amount struct {
	Value decimal.Decimal
	Set   bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	a.Value = d
	a.Set = true
	return nil
}

// NonZero reports whether the amount is present and different from zero.
func (a Amount) NonZero() bool {
	return a.Set && !a.Value.IsZero()
}

// Float returns the amount as float64, zero when unset.
func (a Amount) Float() float64 {
	if !a.Set {
		return 0
	}
	return a.Value.InexactFloat64()
}

// Text is an identifier that may arrive as a JSON string or number.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string { return string(t) }
