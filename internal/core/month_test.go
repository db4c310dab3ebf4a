package core

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBillingMonthTable(t *testing.T) {
	for i, abbr := range MonthAbbreviations() {
		for suffix := 0; suffix < 100; suffix++ {
			token := fmt.Sprintf("%s/%02d", abbr, suffix)
			m, err := ParseBillingMonth(token)
			require.NoError(t, err, token)

			month, _ := strconv.Atoi(m.Month)
			year, _ := strconv.Atoi(m.Year)
			assert.Equal(t, i+1, month, token)
			assert.Len(t, m.Month, 2, token)
			assert.Len(t, m.Year, 4, token)
			assert.GreaterOrEqual(t, year, 2000, token)
			assert.LessOrEqual(t, year, 2099, token)
		}
	}
}

func TestParseBillingMonthCaseInsensitive(t *testing.T) {
	m, err := ParseBillingMonth("dec/99")
	require.NoError(t, err)
	assert.Equal(t, BillingMonth{Month: "12", Year: "2099"}, m)
}

func TestParseBillingMonthErrors(t *testing.T) {
	tests := []struct {
		token string
		want  error
	}{
		{"JANUARY/24", ErrUnknownMonthAbbreviation},
		{"FEV/24", ErrUnknownMonthAbbreviation},
		{"JAN24", ErrMalformedMonthToken},
		{"JAN/24/01", ErrMalformedMonthToken},
		{"", ErrMalformedMonthToken},
		{"JAN/2024", ErrInvalidYearSuffix},
		{"JAN/4", ErrInvalidYearSuffix},
		{"JAN/ab", ErrInvalidYearSuffix},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := ParseBillingMonth(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
