package core

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAmount  = errors.New("missing amount")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
	ErrEmptyAccount   = errors.New("empty account id")

	ErrMalformedMonthToken      = errors.New("malformed billing month token")
	ErrUnknownMonthAbbreviation = errors.New("unknown month abbreviation")
	ErrInvalidYearSuffix        = errors.New("invalid two-digit year suffix")
	ErrMissingInstallation      = errors.New("no installation mapping for account")
)

// FetchError reports that the upstream data source was unreachable or
// answered with a non-2xx status.
type FetchError struct {
	Op         string // e.g. "load records", "fetch document"
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s %s: http %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: http %d", e.Op, e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedRecordError marks one record whose numeric fields cannot be used.
// The record is excluded from aggregation, never the whole series.
type MalformedRecordError struct {
	Index        int // position in the slice that was aggregated or loaded
	AccountID    string
	BillingMonth string
	Field        string
	Err          error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record #%d (account=%q month=%q): field %s: %v",
		e.Index, e.AccountID, e.BillingMonth, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// InvalidStateTransitionError reports a selection operation invoked out of
// order. UI gating should make it impossible; it is checked anyway.
type InvalidStateTransitionError struct {
	Op     string
	State  string
	Reason string
}

func (e *InvalidStateTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition %s from state %s: %s", e.Op, e.State, e.Reason)
	}
	return fmt.Sprintf("invalid transition %s from state %s", e.Op, e.State)
}

// UnresolvableSelectionError reports a selection that cannot be turned into
// a DocumentKey: unknown month token or no installation for the account.
type UnresolvableSelectionError struct {
	AccountID    string
	BillingMonth string
	Err          error
}

func (e *UnresolvableSelectionError) Error() string {
	return fmt.Sprintf("cannot resolve document for account %q month %q: %v", e.AccountID, e.BillingMonth, e.Err)
}

func (e *UnresolvableSelectionError) Unwrap() error { return e.Err }
