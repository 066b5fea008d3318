package dre

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnitsAll disables unit filtering when present in ReportConfiguration.Units
const UnitsAll = "all"

// Period is a half-open date range [Start, End)
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod creates a period and rejects empty or inverted ranges
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate checks that start precedes end
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return newValidationError(ErrKindInvalidConfiguration, nil, nil, "period start and end are required")
	}
	if !p.Start.Before(p.End) {
		return newValidationError(ErrKindInvalidConfiguration, nil, nil, "period start must be before period end")
	}
	return nil
}

// Contains reports whether t falls inside [Start, End)
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Union returns the smallest period covering both p and other
func (p Period) Union(other Period) Period {
	out := p
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}

// ReportConfiguration holds the filter and display options of one generation
type ReportConfiguration struct {
	Period            Period          `json:"period"`
	ComparisonPeriod  *Period         `json:"comparison_period,omitempty"`
	Units             []string        `json:"units,omitempty"`
	CostCenters       []string        `json:"cost_centers,omitempty"`
	IncludeInactive   bool            `json:"include_inactive"`
	ExcludeZeroValues bool            `json:"exclude_zero_values"`
	MinimumAmount     decimal.Decimal `json:"minimum_amount"`
	Precision         int32           `json:"precision"`
	Currency          string          `json:"currency,omitempty"`
	GeneratedBy       string          `json:"generated_by,omitempty"`
	DataSource        string          `json:"data_source,omitempty"`
}

// Validate checks the periods of the configuration
func (c ReportConfiguration) Validate() error {
	if err := c.Period.Validate(); err != nil {
		return err
	}
	if c.ComparisonPeriod != nil {
		if err := c.ComparisonPeriod.Validate(); err != nil {
			return err
		}
	}
	if c.MinimumAmount.IsNegative() {
		return newValidationError(ErrKindInvalidConfiguration, nil, nil, "minimum amount cannot be negative")
	}
	return nil
}

// AllUnits reports whether the unit filter is disabled
func (c ReportConfiguration) AllUnits() bool {
	return len(c.Units) == 0 || slices.ContainsFunc(c.Units, func(u string) bool {
		return strings.EqualFold(u, UnitsAll)
	})
}

// LedgerWindow returns the period covering both current and comparison data
func (c ReportConfiguration) LedgerWindow() Period {
	if c.ComparisonPeriod == nil {
		return c.Period
	}
	return c.Period.Union(*c.ComparisonPeriod)
}

// AccountRecord is a single ledger movement supplied by the caller
type AccountRecord struct {
	AccountID    string          `json:"account_id"`
	UnitID       string          `json:"unit_id"`
	CostCenterID string          `json:"cost_center_id,omitempty"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Inactive     bool            `json:"inactive,omitempty"`
}

// ComputedLineItem is a template row together with its computed figures
type ComputedLineItem struct {
	LineItem
	Value               decimal.Decimal     `json:"value"`
	PercentageOfRevenue decimal.Decimal     `json:"percentage_of_revenue"`
	ComparisonValue     decimal.NullDecimal `json:"comparison_value"`
	Variance            decimal.NullDecimal `json:"variance"`
	VariancePercentage  decimal.NullDecimal `json:"variance_percentage"`
	Hidden              bool                `json:"hidden"`
	Warnings            []Warning           `json:"warnings,omitempty"`
}

// Totals holds the report-wide figures. Margins are percentages of revenue.
type Totals struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	DirectCosts   decimal.Decimal `json:"direct_costs"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	EBITDA        decimal.Decimal `json:"ebitda"`
	GrossMargin   decimal.Decimal `json:"gross_margin"`
	EBITDAMargin  decimal.Decimal `json:"ebitda_margin"`
	NetMargin     decimal.Decimal `json:"net_margin"`
}

// Metadata describes how and when a report was produced
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	GeneratedBy      string    `json:"generated_by,omitempty"`
	DataSource       string    `json:"data_source,omitempty"`
	Period           Period    `json:"period"`
	ComparisonPeriod *Period   `json:"comparison_period,omitempty"`
	RecordCount      int       `json:"record_count"`
	Warnings         []Warning `json:"warnings"`
}

// ReportResult is the complete output of one generation
type ReportResult struct {
	TemplateName    string             `json:"template_name"`
	Items           []ComputedLineItem `json:"items"`
	Totals          Totals             `json:"totals"`
	Comparison      *Totals            `json:"comparison,omitempty"`
	EvaluationOrder EvaluationOrder    `json:"evaluation_order"`
	Metadata        Metadata           `json:"metadata"`
}

// Item returns the computed row with the given code
func (r *ReportResult) Item(code string) (ComputedLineItem, bool) {
	for _, it := range r.Items {
		if it.Code == code {
			return it, true
		}
	}
	return ComputedLineItem{}, false
}

// VisibleItems returns the rows not hidden by display filters
func (r *ReportResult) VisibleItems() []ComputedLineItem {
	out := make([]ComputedLineItem, 0, len(r.Items))
	for _, it := range r.Items {
		if !it.Hidden {
			out = append(out, it)
		}
	}
	return out
}
