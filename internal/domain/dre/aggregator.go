package dre

import (
	"github.com/shopspring/decimal"
)

// Aggregator sums ledger records into leaf line item values.
// It indexes records by account once so that many items can be summed cheaply.
type Aggregator struct {
	byAccount       map[string][]AccountRecord
	allUnits        bool
	units           map[string]struct{}
	costCenters     map[string]struct{}
	includeInactive bool
}

// NewAggregator prepares records for the filters of cfg.
// Display options (ExcludeZeroValues, MinimumAmount) are deliberately not read.
func NewAggregator(records []AccountRecord, cfg ReportConfiguration) *Aggregator {
	a := &Aggregator{
		byAccount:       make(map[string][]AccountRecord),
		allUnits:        cfg.AllUnits(),
		units:           toSet(cfg.Units),
		costCenters:     toSet(cfg.CostCenters),
		includeInactive: cfg.IncludeInactive,
	}
	for _, r := range records {
		a.byAccount[r.AccountID] = append(a.byAccount[r.AccountID], r)
	}
	return a
}

// Sum returns the total of the records matching item within period.
// An item without account refs sums to zero.
func (a *Aggregator) Sum(item LineItem, period Period) decimal.Decimal {
	total := decimal.Zero
	if len(item.AccountRefs) == 0 {
		return total
	}
	itemCostCenters := toSet(item.CostCenterRefs)

	seen := make(map[string]struct{}, len(item.AccountRefs))
	for _, account := range item.AccountRefs {
		if _, dup := seen[account]; dup {
			continue
		}
		seen[account] = struct{}{}

		for _, r := range a.byAccount[account] {
			if !a.matches(r, itemCostCenters, period) {
				continue
			}
			total = total.Add(r.Amount)
		}
	}
	return total
}

func (a *Aggregator) matches(r AccountRecord, itemCostCenters map[string]struct{}, period Period) bool {
	if !period.Contains(r.Date) {
		return false
	}
	if r.Inactive && !a.includeInactive {
		return false
	}
	if !a.allUnits {
		if _, ok := a.units[r.UnitID]; !ok {
			return false
		}
	}
	if len(itemCostCenters) > 0 {
		if _, ok := itemCostCenters[r.CostCenterID]; !ok {
			return false
		}
	}
	if len(a.costCenters) > 0 {
		if _, ok := a.costCenters[r.CostCenterID]; !ok {
			return false
		}
	}
	return true
}

// Aggregate sums the records for a single leaf item
func Aggregate(item LineItem, records []AccountRecord, cfg ReportConfiguration, period Period) decimal.Decimal {
	return NewAggregator(records, cfg).Sum(item, period)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
