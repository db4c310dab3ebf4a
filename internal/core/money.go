// Package core provides money parsing and handling utilities.
//
// This file contains the decimal Amount type used for every numeric invoice
// field, both energy (kWh) and monetary (R$). Amounts are never processed as
// binary floating point.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative decimal read from the upstream payload.
//
// Decoding never fails on a bad value: the raw text is kept and the problem
// is reported later by Err, so a single malformed field only excludes its
// own record from aggregation.
type Amount struct {
	value decimal.Decimal
	raw   string
	set   bool
	err   error
}

// NewAmount wraps an already parsed decimal.
func NewAmount(d decimal.Decimal) Amount {
	if d.IsNegative() {
		return Amount{raw: d.String(), set: true, err: ErrNegativeAmount}
	}
	return Amount{value: d, raw: d.String(), set: true}
}

// MustAmount parses s and panics when it is not a valid amount. Intended for
// fixtures and tests.
func MustAmount(s string) Amount {
	a := ParseAmount(s)
	if err := a.Err(); err != nil {
		panic(fmt.Sprintf("core: invalid amount %q: %v", s, err))
	}
	return a
}

// ParseAmount converts a decimal string into an Amount.
//
// It accepts dot (12.34) and comma (12,34) decimal separators. When both are
// present the last one is the decimal separator and the other one groups
// thousands ("1.234,56" and "1,234.56" are both 1234.56). Signs are rejected:
// invoice amounts are non-negative.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("-1")       -> invalid (ErrNegativeAmount)
func ParseAmount(s string) Amount {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{raw: raw, err: ErrMissingAmount}
	}
	if strings.HasPrefix(s, "-") {
		return Amount{raw: raw, set: true, err: ErrNegativeAmount}
	}
	if strings.HasPrefix(s, "+") {
		return Amount{raw: raw, set: true, err: ErrInvalidAmount}
	}
	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{raw: raw, set: true, err: fmt.Errorf("%w: %q", ErrInvalidAmount, raw)}
	}
	if d.IsNegative() {
		return Amount{raw: raw, set: true, err: ErrNegativeAmount}
	}
	return Amount{value: d, raw: raw, set: true}
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma == -1:
		return s
	case lastDot == -1:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}

// Decimal returns the parsed value, zero when the amount is invalid.
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// Err reports why the amount cannot be used in arithmetic.
func (a Amount) Err() error {
	if !a.set && a.err == nil {
		return ErrMissingAmount
	}
	return a.err
}

// Valid reports whether Err is nil.
func (a Amount) Valid() bool {
	return a.Err() == nil
}

// Raw returns the text the amount was decoded from.
func (a Amount) Raw() string {
	return a.raw
}

func (a Amount) String() string {
	if !a.Valid() {
		return a.raw
	}
	return a.value.String()
}

// UnmarshalJSON accepts JSON numbers (read as exact text) and decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = Amount{err: ErrMissingAmount}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = Amount{raw: string(data), set: true, err: ErrInvalidAmount}
			return nil
		}
		*a = ParseAmount(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		*a = ParseAmount(string(data))
	default:
		*a = Amount{raw: string(data), set: true, err: fmt.Errorf("%w: %s", ErrInvalidAmount, data)}
	}
	return nil
}

// MarshalJSON writes valid amounts as decimal strings and invalid ones as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(a.value.String())
}

// FormatReais formats a monetary decimal for display, e.g. "R$ 1234,56".
func FormatReais(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.Replace(s, ".", ",", 1)
	if neg {
		return "-R$ " + s
	}
	return "R$ " + s
}

// FormatKWh formats an energy decimal for display, e.g. "120 kWh".
func FormatKWh(d decimal.Decimal) string {
	return d.String() + " kWh"
}
