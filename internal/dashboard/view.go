// Package dashboard composes the filter and aggregation steps into the
// view rendered by the UI, the JSON API and the CLI.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"faturas/internal/core"
	"faturas/internal/records"
)

// ErrUnknownAccount is returned when the selector names an account that is
// not in the loaded snapshot.
var ErrUnknownAccount = errors.New("unknown account")

// Exclusion describes a record left out of one series.
type Exclusion struct {
	Index        int    `json:"index"`
	AccountID    string `json:"accountId"`
	BillingMonth string `json:"billingMonth"`
	Field        string `json:"field"`
	Reason       string `json:"reason"`
}

type Totals struct {
	Consumption  decimal.Decimal `json:"consumption"`
	Compensation decimal.Decimal `json:"compensation"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Savings      decimal.Decimal `json:"savings"`
}

// View is everything the dashboard shows for one selector.
type View struct {
	Selector         string               `json:"selector"`
	Accounts         []string             `json:"accounts"`
	Records          int                  `json:"records"`
	Energy           []core.EnergyPoint   `json:"energy"`
	Monetary         []core.MonetaryPoint `json:"monetary"`
	EnergyExcluded   []Exclusion          `json:"energyExcluded"`
	MonetaryExcluded []Exclusion          `json:"monetaryExcluded"`
	Totals           Totals               `json:"totals"`
	Generation       uint64               `json:"generation"`
	LoadedAt         time.Time            `json:"loadedAt"`
}

// Excluded is the number of records missing from at least one series.
func (v View) Excluded() int {
	seen := make(map[int]struct{}, len(v.EnergyExcluded)+len(v.MonetaryExcluded))
	for _, e := range v.EnergyExcluded {
		seen[e.Index] = struct{}{}
	}
	for _, e := range v.MonetaryExcluded {
		seen[e.Index] = struct{}{}
	}
	return len(seen)
}

// Build filters the snapshot by selector and computes both series. An
// account selector must name an account of the snapshot.
func Build(snap *records.Snapshot, sel core.Selector) (View, error) {
	if !sel.IsAll() && !snap.Accounts().Contains(sel.Account()) {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownAccount, sel.Account())
	}

	filtered := core.Filter(snap.Records(), sel)
	energy := core.ComputeEnergySeries(filtered)
	monetary := core.ComputeMonetarySeries(filtered)

	var totals Totals
	totals.Consumption, totals.Compensation = energy.Totals()
	totals.TotalValue, totals.Savings = monetary.Totals()

	return View{
		Selector:         sel.String(),
		Accounts:         snap.Accounts().IDs(),
		Records:          len(filtered),
		Energy:           energy.Points,
		Monetary:         monetary.Points,
		EnergyExcluded:   exclusions(energy.Excluded),
		MonetaryExcluded: exclusions(monetary.Excluded),
		Totals:           totals,
		Generation:       snap.Generation(),
		LoadedAt:         snap.LoadedAt(),
	}, nil
}

func exclusions(errs []*core.MalformedRecordError) []Exclusion {
	out := make([]Exclusion, 0, len(errs))
	for _, e := range errs {
		out = append(out, Exclusion{
			Index:        e.Index,
			AccountID:    e.AccountID,
			BillingMonth: e.BillingMonth,
			Field:        e.Field,
			Reason:       e.Err.Error(),
		})
	}
	return out
}
