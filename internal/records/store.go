package records

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/metrics"
	"faturas/internal/sources"
)

// Store holds the current snapshot of invoice records. Loads are explicit;
// nothing is retried or refreshed in the background.
type Store struct {
	source sources.RecordSource
	logger *log.Logger
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	current *Snapshot
	lastErr error
}

// NewStore returns a store with an empty snapshot.
func NewStore(source sources.RecordSource, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default(log.ComponentRecords)
	}
	return &Store{
		source:  source,
		logger:  logger.WithComponent(log.ComponentRecords),
		now:     time.Now,
		current: emptySnapshot(),
	}
}

// Source exposes the underlying record source, e.g. for per-account queries.
func (s *Store) Source() sources.RecordSource {
	return s.source
}

// Snapshot returns the current snapshot. It is never nil.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastError returns the error of the most recent load, nil after a success.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Load fetches every record from the source and swaps in a new snapshot.
// Concurrent calls share one upstream request. On failure the previous
// snapshot stays current and a *core.FetchError is returned. A caller
// whose ctx ends gets a FetchError wrapping ctx.Err() while the load
// carries on for the others.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	ch := s.group.DoChan("load", func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			s.logger.DebugContext(ctx, "Joined in-flight record load")
		}
		if res.Err != nil {
			return s.Snapshot(), res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return s.Snapshot(), &core.FetchError{Op: "load records", Err: ctx.Err()}
	}
}

func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	start := s.now()
	records, err := s.source.LoadAll(ctx)
	elapsed := s.now().Sub(start)
	if err != nil {
		var fe *core.FetchError
		if !errors.As(err, &fe) {
			err = &core.FetchError{Op: "load records", Err: err}
		}
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		metrics.ObserveLoad(metrics.ResultError, elapsed)
		s.logger.ErrorContext(ctx, "Record load failed",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err.Error())
		return nil, err
	}

	s.mu.Lock()
	snap := newSnapshot(records, nextGeneration(), s.now())
	s.current = snap
	s.lastErr = nil
	s.mu.Unlock()

	metrics.ObserveLoad(metrics.ResultSuccess, elapsed)
	metrics.SetSnapshotSize(snap.Len(), snap.Accounts().Len())
	metrics.AddMalformed("load", len(snap.malformed))

	structured := log.NewStructuredLogger(s.logger)
	for _, m := range snap.malformed {
		structured.LogMalformedRecord(ctx, m.Index, m.AccountID, m.BillingMonth, m.Field, m.Err)
	}
	for _, c := range snap.installations.Conflicts() {
		s.logger.WarnContext(ctx, "Account has more than one installation, keeping the first",
			log.FieldAccountID, c.AccountID,
			log.FieldInstallationID, c.Kept,
			"ignored_installation_id", c.Ignored,
			log.FieldBillingMonth, c.BillingMonth)
	}
	s.logger.InfoContext(ctx, "Records loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldRecords, snap.Len(),
		log.FieldAccounts, snap.Accounts().Len(),
		log.FieldMalformed, len(snap.malformed),
		log.FieldDuration, elapsed.Milliseconds())
	return snap, nil
}
