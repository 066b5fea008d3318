package dre

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EBITDACode is the conventional code of a template's EBITDA line
const EBITDACode = "EBITDA"

// PercentOf returns part / whole × 100, or 0 when whole is zero
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Variance returns value − comparison and that difference as a percentage of
// |comparison|. The percentage is 0 when comparison is zero.
func Variance(value, comparison decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	diff := value.Sub(comparison)
	if comparison.IsZero() {
		return diff, decimal.Zero
	}
	return diff, diff.Div(comparison.Abs()).Mul(hundred)
}

// Summarize computes report-wide totals from computed items.
// A ZeroRevenueDenominator warning is returned when total revenue is zero.
func Summarize(items []ComputedLineItem, order EvaluationOrder) (Totals, []Warning) {
	rows := make([]LineItem, len(items))
	values := make(map[string]decimal.Decimal, len(items))
	for i, it := range items {
		rows[i] = it.LineItem
		values[it.Code] = it.Value
	}
	totals := summarizeValues(rows, values, order)
	if totals.TotalRevenue.IsZero() {
		return totals, []Warning{zeroRevenueWarning()}
	}
	return totals, nil
}

// summarizeValues computes totals for an arbitrary value set over the same rows,
// used for both the current and the comparison period
func summarizeValues(rows []LineItem, values map[string]decimal.Decimal, order EvaluationOrder) Totals {
	byCode := make(map[string]LineItem, len(rows))
	for _, r := range rows {
		byCode[r.Code] = r
	}

	ofKind := func(kind LineItemKind) func(LineItem) bool {
		return func(it LineItem) bool { return it.Kind == kind }
	}
	tagged := func(tag string) func(LineItem) bool {
		return func(it LineItem) bool { return it.HasTag(tag) }
	}

	var t Totals
	t.TotalRevenue = sumTopLevel(rows, values, byCode, ofKind(KindRevenue))
	t.TotalExpenses = sumTopLevel(rows, values, byCode, ofKind(KindExpense))
	t.DirectCosts = sumTopLevel(rows, values, byCode, tagged(TagDirectCost))
	t.GrossProfit = t.TotalRevenue.Sub(t.DirectCosts)

	t.NetProfit = t.TotalRevenue.Sub(t.TotalExpenses)
	for i := len(order) - 1; i >= 0; i-- {
		if it, ok := byCode[order[i]]; ok && it.Kind == KindTotal {
			t.NetProfit = values[it.Code]
			break
		}
	}

	if code, ok := findEBITDA(rows); ok {
		t.EBITDA = values[code]
	} else {
		depreciation := sumTopLevel(rows, values, byCode, tagged(TagDepreciation))
		financial := sumTopLevel(rows, values, byCode, tagged(TagFinancialResult))
		t.EBITDA = t.NetProfit.Add(depreciation).Add(financial)
	}

	t.GrossMargin = PercentOf(t.GrossProfit, t.TotalRevenue)
	t.EBITDAMargin = PercentOf(t.EBITDA, t.TotalRevenue)
	t.NetMargin = PercentOf(t.NetProfit, t.TotalRevenue)
	return t
}

// sumTopLevel adds the values of matching rows that have no matching ancestor,
// so that a parent and its children are not both counted
func sumTopLevel(rows []LineItem, values map[string]decimal.Decimal, byCode map[string]LineItem, match func(LineItem) bool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		if !match(r) || hasMatchingAncestor(r, byCode, match) {
			continue
		}
		total = total.Add(values[r.Code])
	}
	return total
}

func hasMatchingAncestor(it LineItem, byCode map[string]LineItem, match func(LineItem) bool) bool {
	visited := map[string]bool{it.Code: true}
	parent := it.ParentCode
	for parent != "" && !visited[parent] {
		visited[parent] = true
		p, ok := byCode[parent]
		if !ok {
			return false
		}
		if match(p) {
			return true
		}
		parent = p.ParentCode
	}
	return false
}

func findEBITDA(rows []LineItem) (string, bool) {
	for _, r := range rows {
		if strings.EqualFold(r.Code, EBITDACode) || r.HasTag(TagEBITDA) {
			return r.Code, true
		}
	}
	return "", false
}
