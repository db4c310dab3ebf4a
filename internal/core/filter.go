package core

import "strings"

// SelectorAll is the query value that selects every account.
const SelectorAll = "all"

// Selector is either every account or exactly one account id.
type Selector struct {
	account string
	all     bool
}

func AllAccounts() Selector {
	return Selector{all: true}
}

func ForAccount(id string) Selector {
	return Selector{account: id}
}

// ParseSelector maps "" and "all" (exact match) to AllAccounts and anything else to that
// account id.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	if s == "" || s == SelectorAll {
		return AllAccounts()
	}
	return ForAccount(s)
}

func (s Selector) IsAll() bool {
	return s.all
}

// Account returns the selected id; empty for AllAccounts.
func (s Selector) Account() string {
	return s.account
}

func (s Selector) String() string {
	if s.all {
		return SelectorAll
	}
	return s.account
}

// Filter returns the records the selector keeps, preserving order. For
// AllAccounts the input slice is returned as is. Account ids are matched
// exactly.
func Filter(records []Invoice, sel Selector) []Invoice {
	if sel.all {
		return records
	}
	out := make([]Invoice, 0, len(records))
	for _, r := range records {
		if r.AccountID == sel.account {
			out = append(out, r)
		}
	}
	return out
}
