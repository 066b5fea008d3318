package dre

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func computed(it LineItem, value string) ComputedLineItem {
	return ComputedLineItem{LineItem: it, Value: d(value)}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		comparison string
		variance   string
		pct        string
	}{
		{"decrease", "150", "200", "-50", "-25"},
		{"increase", "250", "200", "50", "25"},
		{"negative comparison uses absolute value", "-50", "-100", "50", "50"},
		{"zero comparison guarded", "150", "0", "150", "0"},
		{"unchanged", "80", "80", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, pct := Variance(d(tt.value), d(tt.comparison))
			assert.True(t, d(tt.variance).Equal(v), "variance %s", v)
			assert.True(t, d(tt.pct).Equal(pct), "pct %s", pct)
		})
	}
}

func TestPercentOf(t *testing.T) {
	assert.True(t, d("25").Equal(PercentOf(d("50"), d("200"))))
	assert.True(t, PercentOf(d("50"), decimal.Zero).IsZero())
	assert.True(t, PercentOf(decimal.Zero, decimal.Zero).IsZero())
}

func TestSummarize_AvoidsDoubleCounting(t *testing.T) {
	items := []ComputedLineItem{
		computed(calc("REV", KindRevenue, 0, "[R1] + [R2]"), "300"),
		computed(withParent(leaf("R1", KindRevenue, 1, "1"), "REV"), "100"),
		computed(withParent(leaf("R2", KindRevenue, 2, "2"), "REV"), "200"),
		// grandchild of a revenue item through a subtotal is still nested
		computed(leaf("GROUP", KindSubtotal, 3), "0"),
		computed(withParent(leaf("R3", KindRevenue, 4, "3"), "GROUP"), "50"),
		computed(withParent(withTags(leaf("E1", KindExpense, 5, "4"), TagDirectCost), "GROUP"), "70"),
		computed(leaf("E2", KindExpense, 6, "5"), "30"),
	}

	totals, warnings := Summarize(items, EvaluationOrder{"R1", "R2", "GROUP", "R3", "E1", "E2", "REV"})
	assert.Empty(t, warnings)
	assert.True(t, d("350").Equal(totals.TotalRevenue), totals.TotalRevenue.String())
	assert.True(t, d("100").Equal(totals.TotalExpenses))
	assert.True(t, d("70").Equal(totals.DirectCosts))
	assert.True(t, d("280").Equal(totals.GrossProfit))
	// no total item: revenue minus expenses
	assert.True(t, d("250").Equal(totals.NetProfit))
	assert.True(t, d("80").Equal(totals.GrossMargin))
}

func TestSummarize_NetProfitIsLastTotalInEvaluationOrder(t *testing.T) {
	items := []ComputedLineItem{
		computed(leaf("R", KindRevenue, 0, "1"), "1000"),
		computed(calc("T_LATE", KindTotal, 1, "[T_EARLY] - 100"), "500"),
		computed(calc("T_EARLY", KindTotal, 2, "[R] - 400"), "600"),
	}
	totals, _ := Summarize(items, EvaluationOrder{"R", "T_EARLY", "T_LATE"})
	assert.True(t, d("500").Equal(totals.NetProfit))
	assert.True(t, d("50").Equal(totals.NetMargin))
}

func TestSummarize_EBITDA(t *testing.T) {
	base := []ComputedLineItem{
		computed(leaf("R", KindRevenue, 0, "1"), "1000"),
		computed(withTags(leaf("DEP", KindExpense, 1, "2"), TagDepreciation), "100"),
		computed(withTags(leaf("FIN", KindExpense, 2, "3"), TagFinancialResult), "50"),
		computed(calc("NET", KindTotal, 9, "[R] - [DEP] - [FIN]"), "850"),
	}
	order := EvaluationOrder{"R", "DEP", "FIN", "NET"}

	t.Run("derived from net profit", func(t *testing.T) {
		totals, _ := Summarize(base, order)
		assert.True(t, d("1000").Equal(totals.EBITDA))
		assert.True(t, d("100").Equal(totals.EBITDAMargin))
	})

	t.Run("conventional code wins", func(t *testing.T) {
		items := append([]ComputedLineItem{computed(calc("ebitda", KindSubtotal, 5, "[R]"), "777")}, base...)
		totals, _ := Summarize(items, append(EvaluationOrder{"ebitda"}, order...))
		assert.True(t, d("777").Equal(totals.EBITDA))
	})

	t.Run("tag wins", func(t *testing.T) {
		items := append([]ComputedLineItem{computed(withTags(calc("OP", KindSubtotal, 5, "[R]"), "EBITDA"), "555")}, base...)
		totals, _ := Summarize(items, append(EvaluationOrder{"OP"}, order...))
		assert.True(t, d("555").Equal(totals.EBITDA))
	})
}

func TestSummarize_ZeroRevenue(t *testing.T) {
	items := []ComputedLineItem{
		computed(leaf("R", KindRevenue, 0, "1"), "0"),
		computed(leaf("E", KindExpense, 1, "2"), "120"),
		computed(calc("NET", KindTotal, 2, "[R] - [E]"), "-120"),
	}
	totals, warnings := Summarize(items, EvaluationOrder{"R", "E", "NET"})

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnZeroRevenueDenominator, warnings[0].Kind)
	assert.True(t, totals.GrossMargin.IsZero())
	assert.True(t, totals.EBITDAMargin.IsZero())
	assert.True(t, totals.NetMargin.IsZero())
	assert.True(t, d("-120").Equal(totals.NetProfit))
}
