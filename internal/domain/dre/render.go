package dre

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// RenderRow is one line of the flattened report, ready for a table or export
type RenderRow struct {
	Code                string              `json:"code"`
	Name                string              `json:"name"`
	Kind                LineItemKind        `json:"kind"`
	Depth               int                 `json:"depth"`
	IsCalculated        bool                `json:"is_calculated"`
	Value               decimal.Decimal     `json:"value"`
	PercentageOfRevenue decimal.Decimal     `json:"percentage_of_revenue"`
	ComparisonValue     decimal.NullDecimal `json:"comparison_value"`
	Variance            decimal.NullDecimal `json:"variance"`
	VariancePercentage  decimal.NullDecimal `json:"variance_percentage"`
	HasWarnings         bool                `json:"has_warnings"`
}

// Flatten walks the display tree depth-first with an explicit stack.
// Siblings are ordered by Order then declaration. Hidden rows are skipped and
// their children are shown one level up.
func Flatten(result *ReportResult) []RenderRow {
	if result == nil || len(result.Items) == 0 {
		return nil
	}
	items := result.Items
	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.Code] = i
	}

	children := make(map[int][]int)
	var roots []int
	for i, it := range items {
		p, ok := index[it.ParentCode]
		if !it.HasParent() || !ok || p == i {
			roots = append(roots, i)
			continue
		}
		children[p] = append(children[p], i)
	}
	byOrder := func(a, b int) int {
		if c := cmp.Compare(items[a].Order, items[b].Order); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}
	slices.SortFunc(roots, byOrder)
	for k := range children {
		slices.SortFunc(children[k], byOrder)
	}

	type frame struct {
		idx   int
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{idx: roots[i]})
	}

	visited := make([]bool, len(items))
	rows := make([]RenderRow, 0, len(items))
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.idx] {
			continue
		}
		visited[f.idx] = true

		it := items[f.idx]
		childDepth := f.depth + 1
		if it.Hidden {
			childDepth = f.depth
		} else {
			rows = append(rows, RenderRow{
				Code:                it.Code,
				Name:                it.Name,
				Kind:                it.Kind,
				Depth:               f.depth,
				IsCalculated:        it.IsCalculated,
				Value:               it.Value,
				PercentageOfRevenue: it.PercentageOfRevenue,
				ComparisonValue:     it.ComparisonValue,
				Variance:            it.Variance,
				VariancePercentage:  it.VariancePercentage,
				HasWarnings:         len(it.Warnings) > 0,
			})
		}

		kids := children[f.idx]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{idx: kids[i], depth: childDepth})
		}
	}
	return rows
}

// Formatter renders amounts and percentages for a locale and currency
type Formatter struct {
	printer   *message.Printer
	symbol    string
	precision int
}

// NewFormatter creates a formatter. An empty currency code formats plain numbers.
func NewFormatter(locale, currencyCode string, precision int32) (*Formatter, error) {
	tag := language.English
	if locale != "" {
		t, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		tag = t
	}
	if precision < 0 {
		precision = 0
	}

	f := &Formatter{
		printer:   message.NewPrinter(tag),
		precision: int(precision),
	}
	if currencyCode != "" {
		unit, err := currency.ParseISO(currencyCode)
		if err != nil {
			return nil, fmt.Errorf("invalid currency %q: %w", currencyCode, err)
		}
		f.symbol = strings.TrimSpace(f.printer.Sprint(currency.Symbol(unit)))
		if f.symbol == "" {
			f.symbol = unit.String()
		}
	}
	return f, nil
}

// Amount formats a monetary value with grouping and the currency symbol
func (f *Formatter) Amount(d decimal.Decimal) string {
	s := f.printer.Sprint(number.Decimal(d.Round(int32(f.precision)).InexactFloat64(), number.Scale(f.precision)))
	if f.symbol == "" {
		return s
	}
	return f.symbol + " " + s
}

// Percent formats a percentage with one decimal place
func (f *Formatter) Percent(d decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(d.Round(1).InexactFloat64(), number.Scale(1))) + "%"
}

// NullAmount formats an optional amount, returning "-" when absent
func (f *Formatter) NullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return f.Amount(d.Decimal)
}

// NullPercent formats an optional percentage, returning "-" when absent
func (f *Formatter) NullPercent(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return f.Percent(d.Decimal)
}
