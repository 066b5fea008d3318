package dre

import (
	"fmt"
	"slices"
	"strings"

	"github.com/erp/dre/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// GoalMetric names a report total a goal can track
type GoalMetric string

const (
	GoalTotalRevenue GoalMetric = "total_revenue"
	GoalGrossProfit  GoalMetric = "gross_profit"
	GoalNetProfit    GoalMetric = "net_profit"
	GoalEBITDA       GoalMetric = "ebitda"
	GoalGrossMargin  GoalMetric = "gross_margin"
	GoalEBITDAMargin GoalMetric = "ebitda_margin"
	GoalNetMargin    GoalMetric = "net_margin"
	GoalTotalExpense GoalMetric = "total_expenses"
)

var goalMetrics = []GoalMetric{
	GoalTotalRevenue, GoalGrossProfit, GoalNetProfit, GoalEBITDA,
	GoalGrossMargin, GoalEBITDAMargin, GoalNetMargin, GoalTotalExpense,
}

// IsValid returns true if the metric is known
func (m GoalMetric) IsValid() bool {
	return slices.Contains(goalMetrics, m)
}

// value picks the metric out of totals
func (m GoalMetric) value(t Totals) decimal.Decimal {
	switch m {
	case GoalTotalRevenue:
		return t.TotalRevenue
	case GoalGrossProfit:
		return t.GrossProfit
	case GoalNetProfit:
		return t.NetProfit
	case GoalEBITDA:
		return t.EBITDA
	case GoalGrossMargin:
		return t.GrossMargin
	case GoalEBITDAMargin:
		return t.EBITDAMargin
	case GoalNetMargin:
		return t.NetMargin
	case GoalTotalExpense:
		return t.TotalExpenses
	}
	return decimal.Zero
}

// lowerIsBetter is true for metrics where staying under the target is the goal
func (m GoalMetric) lowerIsBetter() bool {
	return m == GoalTotalExpense
}

// Goal is a target for one of the report totals
type Goal struct {
	Metric GoalMetric      `json:"metric"`
	Target decimal.Decimal `json:"target"`
	Label  string          `json:"label,omitempty"`
}

// CostCenterCategory groups cost centers under a display name
type CostCenterCategory struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Color       string   `json:"color,omitempty"`
	CostCenters []string `json:"cost_centers"`
}

// Settings are the persisted preferences of one owner
type Settings struct {
	Goals                []Goal               `json:"goals"`
	CostCenterCategories []CostCenterCategory `json:"cost_center_categories"`
}

// DefaultSettings returns empty settings
func DefaultSettings() Settings {
	return Settings{
		Goals:                []Goal{},
		CostCenterCategories: []CostCenterCategory{},
	}
}

// Validate checks goals and categories
func (s Settings) Validate() error {
	seenMetrics := make(map[GoalMetric]bool)
	for _, g := range s.Goals {
		if !g.Metric.IsValid() {
			return shared.NewDomainError("INVALID_SETTINGS", fmt.Sprintf("unknown goal metric %q", g.Metric))
		}
		if seenMetrics[g.Metric] {
			return shared.NewDomainError("INVALID_SETTINGS", fmt.Sprintf("duplicate goal for metric %q", g.Metric))
		}
		seenMetrics[g.Metric] = true
	}

	seenCodes := make(map[string]bool)
	owner := make(map[string]string)
	for _, c := range s.CostCenterCategories {
		code := strings.TrimSpace(c.Code)
		if code == "" || strings.TrimSpace(c.Name) == "" {
			return shared.NewDomainError("INVALID_SETTINGS", "cost center category code and name are required")
		}
		if seenCodes[code] {
			return shared.NewDomainError("INVALID_SETTINGS", fmt.Sprintf("duplicate cost center category %q", code))
		}
		seenCodes[code] = true
		for _, cc := range c.CostCenters {
			if prev, ok := owner[cc]; ok {
				return shared.NewDomainError("INVALID_SETTINGS", fmt.Sprintf("cost center %q belongs to both %q and %q", cc, prev, code))
			}
			owner[cc] = code
		}
	}
	return nil
}

// CategoryCostCenters returns the cost centers of the given categories,
// usable as ReportConfiguration.CostCenters
func (s Settings) CategoryCostCenters(codes ...string) []string {
	var out []string
	for _, c := range s.CostCenterCategories {
		if slices.Contains(codes, c.Code) {
			out = append(out, c.CostCenters...)
		}
	}
	return out
}

// GoalProgress compares a goal with the generated totals
type GoalProgress struct {
	Goal
	Actual   decimal.Decimal `json:"actual"`
	Progress decimal.Decimal `json:"progress"`
	Achieved bool            `json:"achieved"`
}

// EvaluateGoals measures each goal against totals. Progress is actual as a
// percentage of target, 0 when the target is zero.
func EvaluateGoals(goals []Goal, totals Totals) []GoalProgress {
	out := make([]GoalProgress, 0, len(goals))
	for _, g := range goals {
		actual := g.Metric.value(totals)
		achieved := actual.GreaterThanOrEqual(g.Target)
		if g.Metric.lowerIsBetter() {
			achieved = actual.LessThanOrEqual(g.Target)
		}
		out = append(out, GoalProgress{
			Goal:     g,
			Actual:   actual,
			Progress: PercentOf(actual, g.Target),
			Achieved: achieved,
		})
	}
	return out
}
