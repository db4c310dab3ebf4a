// Package selection drives the dependent account → month selection of the
// invoice library and resolves it to a core.DocumentKey.
package selection

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"

	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/metrics"
	"faturas/internal/records"
	"faturas/internal/sources"
)

// ErrStaleMonths is returned by ComputeMonths when the account selection
// changed while the query was in flight. The result was discarded.
var ErrStaleMonths = errors.New("month index discarded: account selection changed")

type State int

const (
	NoAccount State = iota
	AccountChosen
	MonthChosen
	Resolved
)

func (s State) String() string {
	switch s {
	case NoAccount:
		return "NoAccount"
	case AccountChosen:
		return "AccountChosen"
	case MonthChosen:
		return "MonthChosen"
	case Resolved:
		return "Resolved"
	default:
		return "Unknown"
	}
}

// Status is a copy of the resolver state.
type Status struct {
	State       State
	AccountID   string
	Months      []string
	MonthsReady bool
	Month       string
	Key         core.DocumentKey
}

// Resolver is safe for concurrent use. The months query runs without the
// lock held; its result is applied only if no account was chosen since.
type Resolver struct {
	snapshots records.Provider
	querier   sources.AccountRecordSource
	logger    *log.Logger

	mu          sync.Mutex
	state       State
	account     string
	generation  uint64
	months      []string
	monthsReady bool
	month       string
	key         core.DocumentKey
}

// NewResolver returns a resolver in the NoAccount state. querier may be nil,
// in which case months are always derived from the snapshot.
func NewResolver(snapshots records.Provider, querier sources.AccountRecordSource, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default(log.ComponentSelection)
	}
	return &Resolver{
		snapshots: snapshots,
		querier:   querier,
		logger:    logger.WithComponent(log.ComponentSelection),
	}
}

// Status returns the current state.
func (r *Resolver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		State:       r.state,
		AccountID:   r.account,
		Months:      slices.Clone(r.months),
		MonthsReady: r.monthsReady,
		Month:       r.month,
		Key:         r.key,
	}
}

// ChooseAccount selects an account from the current Account Index. Any
// chosen month, month index and resolved key are cleared.
func (r *Resolver) ChooseAccount(id string) error {
	snap := r.snapshots.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !snap.Accounts().Contains(id) {
		return r.invalid(log.OpChooseAccount, "account not in account index")
	}
	r.account = id
	r.generation++
	r.months = nil
	r.monthsReady = false
	r.month = ""
	r.key = core.DocumentKey{}
	r.state = AccountChosen

	r.logger.Debug("Account chosen", log.FieldAccountID, id)
	return nil
}

// ComputeMonths builds the Month Index for the chosen account, in first-seen
// order. An empty index is valid.
func (r *Resolver) ComputeMonths(ctx context.Context, id string) ([]string, error) {
	r.mu.Lock()
	if r.state == NoAccount || r.account != id {
		err := r.invalid(log.OpComputeMonths, "account is not the chosen account")
		r.mu.Unlock()
		return nil, err
	}
	generation := r.generation
	r.mu.Unlock()

	months, err := r.queryMonths(ctx, id)
	if err != nil {
		metrics.IncMonthsResult(metrics.ResultError)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.account != id || r.generation != generation {
		metrics.IncMonthsResult(metrics.ResultStale)
		r.logger.InfoContext(ctx, "Discarding stale month index",
			log.FieldAccountID, id,
			"current_account_id", r.account)
		return nil, ErrStaleMonths
	}
	r.months = months
	r.monthsReady = true
	if r.month != "" && !slices.Contains(months, r.month) {
		r.month = ""
		r.key = core.DocumentKey{}
		r.state = AccountChosen
	}
	metrics.IncMonthsResult(metrics.ResultApplied)
	return slices.Clone(months), nil
}

// queryMonths prefers the per-account query and falls back to the loaded
// snapshot when the source cannot answer it.
func (r *Resolver) queryMonths(ctx context.Context, id string) ([]string, error) {
	if r.querier != nil {
		recs, err := r.querier.LoadByAccount(ctx, id)
		if err == nil {
			return core.MonthsFor(recs, id), nil
		}
		var fe *core.FetchError
		if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
			return nil, err
		}
		r.logger.DebugContext(ctx, "Per-account query unavailable, filtering snapshot",
			log.FieldAccountID, id)
	}
	return core.MonthsFor(r.snapshots.Snapshot().Records(), id), nil
}

// ChooseMonth selects a month from the current Month Index. It may be
// called again to pick a different month, including after Resolve.
func (r *Resolver) ChooseMonth(month string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.state == NoAccount:
		return r.invalid(log.OpChooseMonth, "no account chosen")
	case !r.monthsReady:
		return r.invalid(log.OpChooseMonth, "month index not computed")
	case !slices.Contains(r.months, month):
		return r.invalid(log.OpChooseMonth, "month not in month index")
	}
	r.month = month
	r.key = core.DocumentKey{}
	r.state = MonthChosen
	return nil
}

// Resolve turns the chosen account and month into a DocumentKey. It is
// valid only from MonthChosen.
func (r *Resolver) Resolve() (core.DocumentKey, error) {
	snap := r.snapshots.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != MonthChosen {
		return core.DocumentKey{}, r.invalid(log.OpResolve, "no month chosen")
	}

	installation, ok := snap.Installations().Lookup(r.account)
	if !ok {
		return core.DocumentKey{}, r.unresolvable(core.ErrMissingInstallation)
	}
	key, err := core.NewDocumentKey(installation, r.month)
	if err != nil {
		return core.DocumentKey{}, r.unresolvable(err)
	}
	r.key = key
	r.state = Resolved

	r.logger.Info("Document key resolved",
		log.FieldAccountID, r.account,
		log.FieldBillingMonth, r.month,
		log.FieldInstallationID, key.InstallationID)
	return key, nil
}

// Reset returns to NoAccount.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.state = NoAccount
	r.account = ""
	r.months = nil
	r.monthsReady = false
	r.month = ""
	r.key = core.DocumentKey{}
}

func (r *Resolver) invalid(op, reason string) error {
	return &core.InvalidStateTransitionError{Op: op, State: r.state.String(), Reason: reason}
}

func (r *Resolver) unresolvable(err error) error {
	r.logger.Warn("Selection cannot be resolved",
		log.FieldAccountID, r.account,
		log.FieldBillingMonth, r.month,
		log.FieldError, err.Error())
	return &core.UnresolvableSelectionError{AccountID: r.account, BillingMonth: r.month, Err: err}
}
