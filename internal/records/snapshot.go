package records

import (
	"sync/atomic"
	"time"

	"faturas/internal/core"
)

var generations atomic.Uint64

func nextGeneration() uint64 {
	return generations.Add(1)
}

// Snapshot is one immutable load of the record source. Accessors return
// copies so callers cannot change what other readers see.
type Snapshot struct {
	records       []core.Invoice
	accounts      core.AccountIndex
	installations core.InstallationIndex
	malformed     []*core.MalformedRecordError
	loadedAt      time.Time
	generation    uint64
}

func newSnapshot(records []core.Invoice, generation uint64, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		records:       records,
		accounts:      core.NewAccountIndex(records),
		installations: core.NewInstallationIndex(records),
		loadedAt:      loadedAt,
		generation:    generation,
	}
	for i, r := range records {
		if err := r.Validate(i); err != nil {
			if me, ok := err.(*core.MalformedRecordError); ok {
				s.malformed = append(s.malformed, me)
			}
		}
	}
	return s
}

// NewSnapshot builds a snapshot outside of a Store, for callers that already
// hold the records.
func NewSnapshot(records []core.Invoice) *Snapshot {
	return newSnapshot(append([]core.Invoice(nil), records...), nextGeneration(), time.Now())
}

func emptySnapshot() *Snapshot {
	return newSnapshot(nil, 0, time.Time{})
}

// Records returns the invoices in source order.
func (s *Snapshot) Records() []core.Invoice {
	return append([]core.Invoice(nil), s.records...)
}

func (s *Snapshot) Len() int {
	return len(s.records)
}

func (s *Snapshot) Accounts() core.AccountIndex {
	return s.accounts
}

func (s *Snapshot) Installations() core.InstallationIndex {
	return s.installations
}

// Malformed lists records with at least one unusable field, found when the
// snapshot was built. They stay in Records.
func (s *Snapshot) Malformed() []*core.MalformedRecordError {
	return append([]*core.MalformedRecordError(nil), s.malformed...)
}

func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Generation is unique per snapshot and increases with every load; zero
// means nothing has been loaded yet.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

func (s *Snapshot) Loaded() bool {
	return s.generation > 0
}

// Provider returns the current snapshot. *Store implements it.
type Provider interface {
	Snapshot() *Snapshot
}

var _ Provider = (*Store)(nil)
