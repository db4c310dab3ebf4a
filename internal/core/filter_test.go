package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	records := []Invoice{
		sampleInvoice("A", "I1", "JAN/24", "1", "1"),
		sampleInvoice("B", "I2", "JAN/24", "2", "2"),
		sampleInvoice("A", "I1", "FEB/24", "3", "3"),
		sampleInvoice("AB", "I3", "FEB/24", "4", "4"),
	}

	t.Run("all returns input unchanged", func(t *testing.T) {
		assert.Equal(t, records, Filter(records, AllAccounts()))
	})

	t.Run("account keeps exact matches in order", func(t *testing.T) {
		got := Filter(records, ForAccount("A"))
		assert.Equal(t, []Invoice{records[0], records[2]}, got)
	})

	t.Run("no partial match", func(t *testing.T) {
		assert.Empty(t, Filter(records, ForAccount("")))
		assert.Len(t, Filter(records, ForAccount("AB")), 1)
	})

	t.Run("unknown account", func(t *testing.T) {
		assert.Empty(t, Filter(records, ForAccount("Z")))
	})

	t.Run("result is a subsequence", func(t *testing.T) {
		for _, sel := range []Selector{ForAccount("A"), ForAccount("B"), AllAccounts()} {
			assert.True(t, isSubsequence(Filter(records, sel), records), sel.String())
		}
	})
}

func TestParseSelector(t *testing.T) {
	assert.True(t, ParseSelector("").IsAll())
	assert.True(t, ParseSelector("all").IsAll())
	assert.True(t, ParseSelector(" all ").IsAll())

	for _, id := range []string{"ALL", "All"} {
		sel := ParseSelector(id)
		assert.False(t, sel.IsAll(), id)
		assert.Equal(t, id, sel.Account())
	}
	sel := ParseSelector("7204076116")
	assert.False(t, sel.IsAll())
	assert.Equal(t, "7204076116", sel.Account())
}

func TestAccountIndexFirstSeenOrder(t *testing.T) {
	records := []Invoice{
		sampleInvoice("B", "I2", "JAN/24", "1", "1"),
		sampleInvoice("A", "I1", "JAN/24", "1", "1"),
		sampleInvoice("B", "I2", "FEB/24", "1", "1"),
		sampleInvoice("", "I9", "FEB/24", "1", "1"),
	}
	idx := NewAccountIndex(records)
	assert.Equal(t, []string{"B", "A"}, idx.IDs())
	assert.True(t, idx.Contains("A"))
	assert.False(t, idx.Contains(""))
	assert.Equal(t, 2, idx.Len())
}

func TestInstallationIndexKeepsFirst(t *testing.T) {
	records := []Invoice{
		sampleInvoice("A", "I1", "JAN/24", "1", "1"),
		sampleInvoice("A", "I2", "FEB/24", "1", "1"),
		sampleInvoice("B", "", "JAN/24", "1", "1"),
	}
	idx := NewInstallationIndex(records)

	got, ok := idx.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "I1", got)

	_, ok = idx.Lookup("B")
	assert.False(t, ok)

	assert.Equal(t, []InstallationConflict{{AccountID: "A", Kept: "I1", Ignored: "I2", BillingMonth: "FEB/24"}}, idx.Conflicts())
}

func TestMonthsFor(t *testing.T) {
	records := []Invoice{
		sampleInvoice("A", "I1", "FEB/24", "1", "1"),
		sampleInvoice("B", "I2", "JAN/24", "1", "1"),
		sampleInvoice("A", "I1", "JAN/24", "1", "1"),
		sampleInvoice("A", "I1", "FEB/24", "1", "1"),
	}
	assert.Equal(t, []string{"FEB/24", "JAN/24"}, MonthsFor(records, "A"))
	assert.Empty(t, MonthsFor(records, "Z"))
}

func isSubsequence(sub, full []Invoice) bool {
	j := 0
	for i := 0; i < len(full) && j < len(sub); i++ {
		if full[i].AccountID == sub[j].AccountID && full[i].BillingMonth == sub[j].BillingMonth {
			j++
		}
	}
	return j == len(sub)
}
