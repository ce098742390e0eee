// Package money holds the decimal handling shared by every monetary field:
// lenient coercion of operator input and presentation rounding.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Input is the raw text of an independently editable monetary field.
// Blank or non-numeric text is worth zero; it is never rejected.
type Input string

// Decimal returns the coerced value of the input.
func (i Input) Decimal() decimal.Decimal {
	return Coerce(string(i))
}

// UnmarshalJSON accepts numbers, strings and null. Any other JSON value
// decodes to a blank input instead of failing the whole document.
func (i *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*i = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode money input: %w", err)
		}
		*i = Input(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*i = Input(data)
	default:
		*i = ""
	}
	return nil
}

// MarshalJSON always emits the raw text so a round trip preserves what the
// operator typed.
func (i Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(i))
}

// Coerce parses raw as a decimal, treating blank or invalid text as zero.
func Coerce(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Format rounds to two fraction digits for display. Computation never rounds.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatGrouped is Format with thousands separators, e.g. "1,234.50".
func FormatGrouped(d decimal.Decimal) string {
	r := d.Round(2)
	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Abs()
	}
	whole := r.Truncate(0)
	cents := r.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(whole.IntPart()), cents)
}
