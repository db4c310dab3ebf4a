package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturas/internal/cache"
	"faturas/internal/core"
	"faturas/internal/records"
)

type swappableSnapshots struct {
	snap *records.Snapshot
}

func (s *swappableSnapshots) Snapshot() *records.Snapshot { return s.snap }

func invoice(account, month, consumed, dg, offset, cost string) core.Invoice {
	return core.Invoice{
		AccountID:                      account,
		InstallationID:                 "I-" + account,
		BillingMonth:                   month,
		ConsumedEnergyKWh:              core.ParseAmount(consumed),
		DistributedGenerationEnergyKWh: core.ParseAmount(dg),
		OffsetEnergyKWh:                core.ParseAmount(offset),
		EnergyCost:                     core.ParseAmount(cost),
		DistributedGenerationCost:      core.MustAmount("10"),
		IlluminationContribution:       core.MustAmount("5"),
		CompensationSavings:            core.MustAmount("2"),
	}
}

func sample() []core.Invoice {
	return []core.Invoice{
		invoice("A", "JAN/24", "100", "0", "50", "80"),
		invoice("B", "JAN/24", "200", "10", "0", "90"),
		invoice("A", "FEB/24", "120", "5", "60", "x"),
		invoice("B", "FEB/24", "abc", "0", "0", "70"),
	}
}

func TestBuildAllAccountsKeepsOrder(t *testing.T) {
	v, err := Build(records.NewSnapshot(sample()), core.AllAccounts())
	require.NoError(t, err)

	assert.Equal(t, "all", v.Selector)
	assert.Equal(t, []string{"A", "B"}, v.Accounts)
	assert.Equal(t, 4, v.Records)

	require.Len(t, v.Energy, 3)
	assert.Equal(t, "JAN/24", v.Energy[0].Month)
	assert.Equal(t, "210", v.Energy[1].Consumption.String())
	assert.Equal(t, "125", v.Energy[2].Consumption.String())
	require.Len(t, v.EnergyExcluded, 1)
	assert.Equal(t, 3, v.EnergyExcluded[0].Index)
	assert.Equal(t, core.FieldConsumedEnergy, v.EnergyExcluded[0].Field)

	require.Len(t, v.Monetary, 3)
	assert.Equal(t, "95", v.Monetary[0].TotalValue.String())
	require.Len(t, v.MonetaryExcluded, 1)
	assert.Equal(t, 2, v.MonetaryExcluded[0].Index)

	assert.Equal(t, 2, v.Excluded())
	assert.Equal(t, "435", v.Totals.Consumption.String())
	assert.Equal(t, "110", v.Totals.Compensation.String())
	assert.Equal(t, "6", v.Totals.Savings.String())
}

func TestBuildSingleAccount(t *testing.T) {
	v, err := Build(records.NewSnapshot(sample()), core.ForAccount("A"))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Records)
	require.Len(t, v.Energy, 2)
	assert.Equal(t, []string{"JAN/24", "FEB/24"}, []string{v.Energy[0].Month, v.Energy[1].Month})
	require.Len(t, v.Monetary, 1)
}

func TestBuildUnknownAccount(t *testing.T) {
	_, err := Build(records.NewSnapshot(sample()), core.ForAccount("Z"))
	assert.True(t, errors.Is(err, ErrUnknownAccount))
}

func TestBuildEmptySnapshot(t *testing.T) {
	v, err := Build(records.NewSnapshot(nil), core.AllAccounts())
	require.NoError(t, err)
	assert.Zero(t, v.Records)
	assert.Empty(t, v.Energy)
	assert.NotNil(t, v.EnergyExcluded)
}

func TestControllerMemoisesPerGeneration(t *testing.T) {
	snaps := &swappableSnapshots{snap: records.NewSnapshot(sample())}
	views := cache.NewLRUCache[View](8, time.Minute)
	c := NewController(snaps, views, nil)

	assert.True(t, c.Active().IsAll())
	first, err := c.Select(core.ForAccount("B"))
	require.NoError(t, err)
	assert.Equal(t, "B", c.Active().Account())
	assert.Equal(t, 1, views.Size())

	again, err := c.Refresh()
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, views.Size())

	// Same account, new snapshot: the view is recomputed.
	snaps.snap = records.NewSnapshot(append(sample(), invoice("B", "MAR/24", "1", "1", "1", "1")))
	updated, err := c.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Records)
}

func TestControllerSelectUnknownKeepsActive(t *testing.T) {
	c := NewController(&swappableSnapshots{snap: records.NewSnapshot(sample())}, nil, nil)
	_, err := c.Select(core.ForAccount("A"))
	require.NoError(t, err)

	_, err = c.Select(core.ForAccount("Z"))
	assert.ErrorIs(t, err, ErrUnknownAccount)
	assert.Equal(t, "A", c.Active().Account())
}

func TestControllerRefreshFallsBackToAll(t *testing.T) {
	snaps := &swappableSnapshots{snap: records.NewSnapshot(sample())}
	c := NewController(snaps, nil, nil)
	_, err := c.Select(core.ForAccount("A"))
	require.NoError(t, err)

	snaps.snap = records.NewSnapshot([]core.Invoice{invoice("C", "JAN/24", "1", "1", "1", "1")})
	v, err := c.Refresh()
	require.NoError(t, err)
	assert.Equal(t, "all", v.Selector)
	assert.True(t, c.Active().IsAll())
}
