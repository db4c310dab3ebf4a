package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturas/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "faturas.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func invoice(account, installation, month string) core.Invoice {
	return core.Invoice{
		AccountID:                      account,
		InstallationID:                 installation,
		BillingMonth:                   month,
		ConsumedEnergyKWh:              core.MustAmount("100"),
		DistributedGenerationEnergyKWh: core.MustAmount("20.5"),
		OffsetEnergyKWh:                core.MustAmount("80"),
		EnergyCost:                     core.MustAmount("95.10"),
		DistributedGenerationCost:      core.MustAmount("12"),
		IlluminationContribution:       core.MustAmount("41.29"),
		CompensationSavings:            core.MustAmount("60"),
	}
}

func TestSQLiteRepository_RoundTripKeepsOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []core.Invoice{
		invoice("B", "I2", "FEB/24"),
		invoice("A", "I1", "JAN/24"),
		invoice("B", "I2", "JAN/24"),
	}
	require.NoError(t, repo.InsertInvoices(ctx, records))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range records {
		assert.Equal(t, records[i].AccountID, got[i].AccountID)
		assert.Equal(t, records[i].BillingMonth, got[i].BillingMonth)
		assert.True(t, records[i].EnergyCost.Decimal().Equal(got[i].EnergyCost.Decimal()))
	}

	byAccount, err := repo.LoadByAccount(ctx, "B")
	require.NoError(t, err)
	require.Len(t, byAccount, 2)
	assert.Equal(t, "FEB/24", byAccount[0].BillingMonth)
	assert.Equal(t, "JAN/24", byAccount[1].BillingMonth)
}

func TestSQLiteRepository_InvalidAndMissingAmounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bad := invoice("A", "I1", "MAR/24")
	bad.EnergyCost = core.ParseAmount("abc")
	bad.CompensationSavings = core.Amount{}
	require.NoError(t, repo.InsertInvoices(ctx, []core.Invoice{bad}))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].EnergyCost.Err(), core.ErrInvalidAmount)
	assert.ErrorIs(t, got[0].CompensationSavings.Err(), core.ErrMissingAmount)
	assert.True(t, got[0].ConsumedEnergyKWh.Valid())
}

func TestSQLiteRepository_EmptyAndTruncate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.InsertInvoices(ctx, []core.Invoice{invoice("A", "I1", "JAN/24")}))
	require.NoError(t, repo.Truncate(ctx))
	got, err = repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteRepository_ClosedIsFetchError(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.LoadAll(context.Background())
	var fe *core.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.URL, "sqlite://")
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faturas.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}
