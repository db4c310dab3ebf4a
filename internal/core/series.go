package core

import "github.com/shopspring/decimal"

// EnergyPoint is one record projected onto the energy chart.
type EnergyPoint struct {
	Month        string          `json:"month"`
	Consumption  decimal.Decimal `json:"consumption"`
	Compensation decimal.Decimal `json:"compensation"`
}

// MonetaryPoint is one record projected onto the monetary chart.
type MonetaryPoint struct {
	Month      string          `json:"month"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Savings    decimal.Decimal `json:"savings"`
}

// EnergySeries holds the points in input order and the records left out.
type EnergySeries struct {
	Points   []EnergyPoint
	Excluded []*MalformedRecordError
}

type MonetarySeries struct {
	Points   []MonetaryPoint
	Excluded []*MalformedRecordError
}

// ComputeEnergySeries maps every record to
// {consumption = consumed + distributed generation, compensation = offset}.
//
// Points keep the order of records. No calendar sort is done: the data
// source is expected to return records chronologically and charts render in
// whatever order they get. Records with an unusable energy field are skipped
// and listed in Excluded.
func ComputeEnergySeries(records []Invoice) EnergySeries {
	series := EnergySeries{Points: make([]EnergyPoint, 0, len(records))}
	for i, r := range records {
		if err := r.checkFields(i, r.energyFields()); err != nil {
			series.Excluded = append(series.Excluded, err)
			continue
		}
		series.Points = append(series.Points, EnergyPoint{
			Month:        r.BillingMonth,
			Consumption:  r.ConsumedEnergyKWh.Decimal().Add(r.DistributedGenerationEnergyKWh.Decimal()),
			Compensation: r.OffsetEnergyKWh.Decimal(),
		})
	}
	return series
}

// ComputeMonetarySeries maps every record to
// {totalValue = energy cost + distributed generation cost + illumination,
// savings = compensation savings}. Order and exclusion rules match
// ComputeEnergySeries.
func ComputeMonetarySeries(records []Invoice) MonetarySeries {
	series := MonetarySeries{Points: make([]MonetaryPoint, 0, len(records))}
	for i, r := range records {
		if err := r.checkFields(i, r.monetaryFields()); err != nil {
			series.Excluded = append(series.Excluded, err)
			continue
		}
		total := r.EnergyCost.Decimal().
			Add(r.DistributedGenerationCost.Decimal()).
			Add(r.IlluminationContribution.Decimal())
		series.Points = append(series.Points, MonetaryPoint{
			Month:      r.BillingMonth,
			TotalValue: total,
			Savings:    r.CompensationSavings.Decimal(),
		})
	}
	return series
}

// Totals sums the energy points.
func (s EnergySeries) Totals() (consumption, compensation decimal.Decimal) {
	for _, p := range s.Points {
		consumption = consumption.Add(p.Consumption)
		compensation = compensation.Add(p.Compensation)
	}
	return consumption, compensation
}

// Totals sums the monetary points.
func (s MonetarySeries) Totals() (total, savings decimal.Decimal) {
	for _, p := range s.Points {
		total = total.Add(p.TotalValue)
		savings = savings.Add(p.Savings)
	}
	return total, savings
}
