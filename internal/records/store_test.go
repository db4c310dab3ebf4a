package records

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturas/internal/core"
)

type fakeSource struct {
	calls   atomic.Int32
	records []core.Invoice
	err     error
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeSource) LoadAll(ctx context.Context) ([]core.Invoice, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.Invoice(nil), f.records...), nil
}

func record(account, installation, month, consumed string) core.Invoice {
	return core.Invoice{
		AccountID:                      account,
		InstallationID:                 installation,
		BillingMonth:                   month,
		ConsumedEnergyKWh:              core.ParseAmount(consumed),
		DistributedGenerationEnergyKWh: core.MustAmount("0"),
		OffsetEnergyKWh:                core.MustAmount("0"),
		EnergyCost:                     core.MustAmount("1"),
		DistributedGenerationCost:      core.MustAmount("1"),
		IlluminationContribution:       core.MustAmount("1"),
		CompensationSavings:            core.MustAmount("1"),
	}
}

func TestStoreInitialSnapshotIsEmpty(t *testing.T) {
	s := NewStore(&fakeSource{}, nil)
	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.False(t, snap.Loaded())
	assert.Zero(t, snap.Len())
	assert.Empty(t, snap.Accounts().IDs())
}

func TestStoreLoadBuildsIndexes(t *testing.T) {
	src := &fakeSource{records: []core.Invoice{
		record("B", "I2", "JAN/24", "10"),
		record("A", "I1", "JAN/24", "x"),
		record("A", "I9", "FEB/24", "5"),
	}}
	s := NewStore(src, nil)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Loaded())
	assert.NotZero(t, snap.Generation())
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, []string{"B", "A"}, snap.Accounts().IDs())

	installation, ok := snap.Installations().Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "I1", installation)
	assert.Len(t, snap.Installations().Conflicts(), 1)

	malformed := snap.Malformed()
	require.Len(t, malformed, 1)
	assert.Equal(t, 1, malformed[0].Index)
	assert.Equal(t, core.FieldConsumedEnergy, malformed[0].Field)

	// Malformed records stay visible to selection.
	assert.Equal(t, "A", snap.Records()[1].AccountID)
	assert.Same(t, snap, s.Snapshot())
}

func TestStoreRecordsAreCopies(t *testing.T) {
	s := NewStore(&fakeSource{records: []core.Invoice{record("A", "I1", "JAN/24", "1")}}, nil)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	got := snap.Records()
	got[0].AccountID = "changed"
	assert.Equal(t, "A", snap.Records()[0].AccountID)
}

func TestStoreFailedLoadKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{records: []core.Invoice{record("A", "I1", "JAN/24", "1")}}
	s := NewStore(src, nil)
	first, err := s.Load(context.Background())
	require.NoError(t, err)

	src.err = errors.New("connection refused")
	snap, err := s.Load(context.Background())
	var fe *core.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Same(t, first, snap)
	assert.Same(t, first, s.Snapshot())
	assert.Equal(t, err, s.LastError())

	src.err = nil
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.NoError(t, s.LastError())
	assert.Greater(t, s.Snapshot().Generation(), first.Generation())
}

func TestStoreFetchErrorIsPassedThrough(t *testing.T) {
	upstream := &core.FetchError{Op: "load records", URL: "http://x/records", StatusCode: 503}
	s := NewStore(&fakeSource{err: upstream}, nil)

	_, err := s.Load(context.Background())
	assert.Same(t, upstream, err)
	assert.False(t, s.Snapshot().Loaded())
}

func TestStoreConcurrentLoadsShareOneRequest(t *testing.T) {
	src := &fakeSource{
		records: []core.Invoice{record("A", "I1", "JAN/24", "1")},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	s := NewStore(src, nil)

	var wg sync.WaitGroup
	results := make([]*Snapshot, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.Load(context.Background())
	}()
	<-src.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = s.Load(context.Background())
	}()

	// Give the second caller time to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Same(t, results[0], results[1])
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.True(t, results[1].Loaded())
}

func TestStoreCancelledCallerDoesNotFailJoinedLoad(t *testing.T) {
	src := &fakeSource{
		records: []core.Invoice{record("A", "I1", "JAN/24", "1")},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	s := NewStore(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Load(ctx)
		firstErr <- err
	}()
	<-src.started

	var (
		wg     sync.WaitGroup
		joined *Snapshot
		err    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		joined, err = s.Load(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	first := <-firstErr
	var fe *core.FetchError
	require.ErrorAs(t, first, &fe)
	assert.ErrorIs(t, first, context.Canceled)

	close(src.release)
	wg.Wait()

	require.NoError(t, err)
	require.NotNil(t, joined)
	assert.True(t, joined.Loaded())
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Same(t, joined, s.Snapshot())
}
