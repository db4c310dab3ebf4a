package core

import "strings"

// AccountIndex is the set of distinct account ids in first-seen order.
type AccountIndex struct {
	ids []string
	pos map[string]int
}

// NewAccountIndex scans records once. Records without an account id are
// skipped.
func NewAccountIndex(records []Invoice) AccountIndex {
	idx := AccountIndex{pos: make(map[string]int)}
	for _, r := range records {
		id := strings.TrimSpace(r.AccountID)
		if id == "" {
			continue
		}
		if _, ok := idx.pos[id]; ok {
			continue
		}
		idx.pos[id] = len(idx.ids)
		idx.ids = append(idx.ids, id)
	}
	return idx
}

// Contains reports whether id was observed.
func (a AccountIndex) Contains(id string) bool {
	_, ok := a.pos[id]
	return ok
}

// IDs returns a copy of the ids in display order.
func (a AccountIndex) IDs() []string {
	return append([]string(nil), a.ids...)
}

func (a AccountIndex) Len() int {
	return len(a.ids)
}

// InstallationConflict records a second installation seen for an account.
type InstallationConflict struct {
	AccountID    string
	Kept         string
	Ignored      string
	BillingMonth string // month of the record carrying the ignored installation
}

// InstallationIndex maps account id to installation id. It is built once;
// when an account shows more than one installation the first one wins and
// the others are listed in Conflicts.
type InstallationIndex struct {
	byAccount map[string]string
	conflicts []InstallationConflict
}

func NewInstallationIndex(records []Invoice) InstallationIndex {
	idx := InstallationIndex{byAccount: make(map[string]string)}
	for _, r := range records {
		account := strings.TrimSpace(r.AccountID)
		installation := strings.TrimSpace(r.InstallationID)
		if account == "" || installation == "" {
			continue
		}
		kept, ok := idx.byAccount[account]
		if !ok {
			idx.byAccount[account] = installation
			continue
		}
		if kept != installation {
			idx.conflicts = append(idx.conflicts, InstallationConflict{
				AccountID:    account,
				Kept:         kept,
				Ignored:      installation,
				BillingMonth: r.BillingMonth,
			})
		}
	}
	return idx
}

// Lookup returns the installation kept for the account.
func (i InstallationIndex) Lookup(accountID string) (string, bool) {
	v, ok := i.byAccount[accountID]
	return v, ok
}

// Conflicts returns every ignored mapping in scan order.
func (i InstallationIndex) Conflicts() []InstallationConflict {
	return append([]InstallationConflict(nil), i.conflicts...)
}

// MonthsFor returns the distinct billing months of one account in first-seen
// order. An empty result is valid.
func MonthsFor(records []Invoice, accountID string) []string {
	seen := make(map[string]struct{})
	months := make([]string, 0)
	for _, r := range records {
		if r.AccountID != accountID {
			continue
		}
		m := strings.TrimSpace(r.BillingMonth)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		months = append(months, m)
	}
	return months
}
