package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRows(t *testing.T) {
	values := [][]interface{}{
		{"Client_Number", "installation_number", "reference_month", "energia_eletrica_kwh", "energia_eletrica_valor", "Notes"},
		{"7204076116", "3001116735", "JAN/24", "50", "47,75", "ignored"},
		{},
		{"", "", ""},
		{"7204076116", "3001116735", "FEB/24", "abc"},
	}

	records, skipped, err := parseRows(values)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, records, 2)

	assert.Equal(t, "7204076116", records[0].AccountID)
	assert.Equal(t, "3001116735", records[0].InstallationID)
	assert.Equal(t, "JAN/24", records[0].BillingMonth)
	assert.Equal(t, "47.75", records[0].EnergyCost.String())

	assert.False(t, records[1].ConsumedEnergyKWh.Valid())
	assert.False(t, records[1].EnergyCost.Valid())
}

func TestParseRowsLeftmostColumnWins(t *testing.T) {
	values := [][]interface{}{
		{"accountId", "client_number"},
		{"A", "B"},
	}
	records, _, err := parseRows(values)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].AccountID)
}

func TestParseRowsHeaderErrors(t *testing.T) {
	records, _, err := parseRows(nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, _, err = parseRows([][]interface{}{{"Month", "Value"}})
	assert.ErrorContains(t, err, "no account column")
}
