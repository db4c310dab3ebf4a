package core

import (
	"fmt"
	"strings"
)

// monthAbbreviations is the fixed table billing month tokens are parsed with.
var monthAbbreviations = map[string]string{
	"JAN": "01",
	"FEB": "02",
	"MAR": "03",
	"APR": "04",
	"MAY": "05",
	"JUN": "06",
	"JUL": "07",
	"AUG": "08",
	"SEP": "09",
	"OCT": "10",
	"NOV": "11",
	"DEC": "12",
}

// MonthAbbreviations returns the table keys in calendar order.
func MonthAbbreviations() []string {
	return []string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}
}

// BillingMonth is a parsed "MMM/YY" token.
type BillingMonth struct {
	Month string // "01".."12"
	Year  string // "2000".."2099"
}

// ParseBillingMonth parses tokens such as "JAN/24" into {Month: "01", Year: "2024"}.
// The abbreviation is matched case-insensitively; the year suffix must be
// exactly two digits and always maps into 2000-2099.
func ParseBillingMonth(token string) (BillingMonth, error) {
	abbr, suffix, ok := strings.Cut(strings.TrimSpace(token), "/")
	if !ok || strings.Contains(suffix, "/") {
		return BillingMonth{}, fmt.Errorf("%w: %q", ErrMalformedMonthToken, token)
	}
	month, ok := monthAbbreviations[strings.ToUpper(strings.TrimSpace(abbr))]
	if !ok {
		return BillingMonth{}, fmt.Errorf("%w: %q", ErrUnknownMonthAbbreviation, abbr)
	}
	suffix = strings.TrimSpace(suffix)
	if len(suffix) != 2 || !isDigit(suffix[0]) || !isDigit(suffix[1]) {
		return BillingMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearSuffix, suffix)
	}
	return BillingMonth{Month: month, Year: "20" + suffix}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (m BillingMonth) String() string {
	return m.Year + "-" + m.Month
}
