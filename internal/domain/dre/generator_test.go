package dre

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(opts ...GeneratorOption) *Generator {
	return NewGenerator(append([]GeneratorOption{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func requireItem(t *testing.T, r *ReportResult, code string) ComputedLineItem {
	t.Helper()
	it, ok := r.Item(code)
	require.True(t, ok, "item %s not in result", code)
	return it
}

func TestGenerator_SampleReport(t *testing.T) {
	cfg := januaryConfig()
	cfg.GeneratedBy = "analyst@example.com"
	cfg.DataSource = "ledger"

	result, err := newTestGenerator().Generate(sampleTemplate(), cfg, sampleRecords())
	require.NoError(t, err)

	values := map[string]string{
		"3": "1500", "3.01": "1000", "3.02": "500",
		"4.01": "400", "4.02": "200", "4.03": "50", "4.04": "30",
		"GP": "1100", "NET": "820",
	}
	for code, want := range values {
		got := requireItem(t, result, code).Value
		assert.True(t, d(want).Equal(got), "%s: expected %s, got %s", code, want, got)
	}
	assert.Equal(t, "54.67", requireItem(t, result, "NM").Value.StringFixed(2))
	assert.Equal(t, "26.67", requireItem(t, result, "4.01").PercentageOfRevenue.StringFixed(2))

	totals := result.Totals
	assert.True(t, d("1500").Equal(totals.TotalRevenue))
	assert.True(t, d("680").Equal(totals.TotalExpenses))
	assert.True(t, d("400").Equal(totals.DirectCosts))
	assert.True(t, d("1100").Equal(totals.GrossProfit))
	assert.True(t, d("820").Equal(totals.NetProfit))
	assert.True(t, d("900").Equal(totals.EBITDA))
	assert.Equal(t, "73.33", totals.GrossMargin.StringFixed(2))
	assert.Equal(t, "60.00", totals.EBITDAMargin.StringFixed(2))
	assert.Equal(t, "54.67", totals.NetMargin.StringFixed(2))

	assert.Nil(t, result.Comparison)
	assert.False(t, requireItem(t, result, "NET").Variance.Valid)

	assert.Equal(t, fixedNow, result.Metadata.GeneratedAt)
	assert.Equal(t, "analyst@example.com", result.Metadata.GeneratedBy)
	assert.Equal(t, "ledger", result.Metadata.DataSource)
	assert.Equal(t, 9, result.Metadata.RecordCount)
	assert.Empty(t, result.Metadata.Warnings)
	assert.Equal(t, "Monthly DRE", result.TemplateName)
}

func TestGenerator_ItemsSortedByOrder(t *testing.T) {
	tpl := Template{Items: []LineItem{
		leaf("C", KindExpense, 5, "3"),
		leaf("A", KindRevenue, 1, "1"),
		leaf("B1", KindRevenue, 3, "2"),
		leaf("B2", KindRevenue, 3, "2"),
	}}
	result, err := newTestGenerator().Generate(tpl, januaryConfig(), nil)
	require.NoError(t, err)

	codes := make([]string, len(result.Items))
	for i, it := range result.Items {
		codes[i] = it.Code
	}
	assert.Equal(t, []string{"A", "B1", "B2", "C"}, codes)
}

func TestGenerator_ItemsSortedByExtremeOrder(t *testing.T) {
	tpl := Template{Items: []LineItem{
		leaf("A", KindRevenue, math.MaxInt, "1"),
		leaf("B", KindRevenue, math.MinInt, "2"),
		leaf("C", KindExpense, 0, "3"),
	}}
	result, err := newTestGenerator().Generate(tpl, januaryConfig(), nil)
	require.NoError(t, err)

	codes := make([]string, len(result.Items))
	for i, it := range result.Items {
		codes[i] = it.Code
	}
	assert.Equal(t, []string{"B", "C", "A"}, codes)
}

func TestGenerator_Determinism(t *testing.T) {
	records := fakeLedger(42, 2_000)
	cfg := januaryConfig()
	cfg.ComparisonPeriod = &Period{Start: monthPeriod(time.December).Start.AddDate(-1, 0, 0), End: monthPeriod(time.January).Start}

	g := newTestGenerator()
	first, err := g.Generate(sampleTemplate(), cfg, records)
	require.NoError(t, err)
	second, err := g.Generate(sampleTemplate(), cfg, records)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	// a fresh generator with the same clock yields the same bytes too
	third, err := newTestGenerator().Generate(sampleTemplate(), cfg, records)
	require.NoError(t, err)
	c, err := json.Marshal(third)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(c))
}

func TestGenerator_FormulaEvaluation(t *testing.T) {
	tpl := Template{Items: []LineItem{
		leaf("A", KindRevenue, 1, "acc-a"),
		leaf("B", KindExpense, 2, "acc-b"),
		calc("C", KindTotal, 3, "[A] - [B]"),
	}}
	records := []AccountRecord{
		rec("acc-a", day(time.January, 2), "60"),
		rec("acc-a", day(time.January, 3), "40"),
		rec("acc-b", day(time.January, 4), "30"),
	}

	result, err := newTestGenerator().Generate(tpl, januaryConfig(), records)
	require.NoError(t, err)
	assert.True(t, d("70").Equal(requireItem(t, result, "C").Value))
}

func TestGenerator_CycleDetectionStopsBeforeAggregation(t *testing.T) {
	var transitions [][2]Stage
	g := newTestGenerator(WithStageObserver(func(from, to Stage) {
		transitions = append(transitions, [2]Stage{from, to})
	}))

	tpl := Template{Items: []LineItem{
		calc("X", KindSubtotal, 1, "[Y]"),
		calc("Y", KindSubtotal, 2, "[X]"),
	}}
	result, err := g.Generate(tpl, januaryConfig(), sampleRecords())
	require.Nil(t, result)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ErrKindCyclicDependency, ve.Kind)
	assert.ElementsMatch(t, []string{"X", "Y"}, ve.Codes)

	assert.Equal(t, [][2]Stage{
		{StageIdle, StageValidating},
		{StageValidating, StageResolving},
		{StageResolving, StageFailed},
	}, transitions)
}

func TestGenerator_StageTransitions(t *testing.T) {
	var stages []Stage
	g := newTestGenerator(WithStageObserver(func(_, to Stage) { stages = append(stages, to) }))

	_, err := g.Generate(sampleTemplate(), januaryConfig(), sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []Stage{
		StageValidating, StageResolving, StageAggregating, StageEvaluating, StageSummarizing, StageDone,
	}, stages)

	stages = nil
	_, err = g.Generate(Template{}, januaryConfig(), nil)
	assert.ErrorIs(t, err, ErrEmptyTemplate)
	assert.Equal(t, []Stage{StageValidating, StageFailed}, stages)
}

func TestGenerator_InvalidConfiguration(t *testing.T) {
	cfg := januaryConfig()
	cfg.Period.End = cfg.Period.Start
	_, err := newTestGenerator().Generate(sampleTemplate(), cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cfg = januaryConfig()
	cfg.MinimumAmount = d("-1")
	_, err = newTestGenerator().Generate(sampleTemplate(), cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestGenerator_ZeroRevenueSafety(t *testing.T) {
	records := []AccountRecord{rec("5002", day(time.January, 3), "200")}

	assert.NotPanics(t, func() {
		result, err := newTestGenerator().Generate(sampleTemplate(), januaryConfig(), records)
		require.NoError(t, err)

		for _, it := range result.Items {
			assert.True(t, it.PercentageOfRevenue.IsZero(), "%s percentage must be 0", it.Code)
			for _, w := range it.Warnings {
				assert.NotEqual(t, WarnZeroRevenueDenominator, w.Kind, "%s carries a report-level warning", it.Code)
			}
		}
		assert.True(t, result.Totals.GrossMargin.IsZero())
		assert.True(t, result.Totals.EBITDAMargin.IsZero())
		assert.True(t, result.Totals.NetMargin.IsZero())

		kinds := make([]WarningKind, 0, len(result.Metadata.Warnings))
		for _, w := range result.Metadata.Warnings {
			kinds = append(kinds, w.Kind)
		}
		// NM divides by revenue
		assert.Equal(t, []WarningKind{WarnDivisionByZero, WarnZeroRevenueDenominator}, kinds)
	})
}

func TestGenerator_DivisionByZeroRecovery(t *testing.T) {
	tpl := Template{Items: []LineItem{
		leaf("A", KindRevenue, 1, "acc-a"),
		leaf("B", KindExpense, 2, "acc-b"),
		calc("RATIO", KindSubtotal, 3, "[A] / [B]"),
		calc("AFTER", KindTotal, 4, "[A] + [RATIO] + 1"),
	}}
	records := []AccountRecord{rec("acc-a", day(time.January, 2), "100")}

	result, err := newTestGenerator().Generate(tpl, januaryConfig(), records)
	require.NoError(t, err)

	ratio := requireItem(t, result, "RATIO")
	assert.True(t, ratio.Value.IsZero())
	require.Len(t, ratio.Warnings, 1)
	assert.Equal(t, WarnDivisionByZero, ratio.Warnings[0].Kind)
	assert.Equal(t, "RATIO", ratio.Warnings[0].Code)

	assert.True(t, d("101").Equal(requireItem(t, result, "AFTER").Value))
	assert.Empty(t, requireItem(t, result, "AFTER").Warnings)
	assert.True(t, d("100").Equal(requireItem(t, result, "A").Value))

	require.Len(t, result.Metadata.Warnings, 1)
	assert.Equal(t, ratio.Warnings[0], result.Metadata.Warnings[0])
}

func TestGenerator_Variance(t *testing.T) {
	tpl := Template{Items: []LineItem{
		leaf("REV", KindRevenue, 1, "4001"),
		leaf("NEW", KindRevenue, 2, "4002"),
	}}
	records := []AccountRecord{
		rec("4001", day(time.January, 10), "150"),
		rec("4001", day(time.February, 10), "200"),
		rec("4002", day(time.January, 11), "10"),
	}
	feb := monthPeriod(time.February)
	cfg := januaryConfig()
	cfg.ComparisonPeriod = &feb

	result, err := newTestGenerator().Generate(tpl, cfg, records)
	require.NoError(t, err)

	rev := requireItem(t, result, "REV")
	require.True(t, rev.Variance.Valid)
	assert.True(t, d("200").Equal(rev.ComparisonValue.Decimal))
	assert.True(t, d("-50").Equal(rev.Variance.Decimal))
	assert.True(t, d("-25.0").Equal(rev.VariancePercentage.Decimal))

	fresh := requireItem(t, result, "NEW")
	assert.True(t, d("10").Equal(fresh.Variance.Decimal))
	assert.True(t, fresh.VariancePercentage.Decimal.IsZero())

	require.NotNil(t, result.Comparison)
	assert.True(t, d("200").Equal(result.Comparison.TotalRevenue))
	require.NotNil(t, result.Metadata.ComparisonPeriod)
	assert.Equal(t, feb, *result.Metadata.ComparisonPeriod)
}

func TestGenerator_DisplayFiltersDoNotChangeTotals(t *testing.T) {
	tpl := sampleTemplate()
	tpl.Items = append(tpl.Items,
		leaf("EMPTY", KindExpense, 40, "no-records"),
		leaf("SMALL", KindExpense, 41, "small"),
	)
	records := append(sampleRecords(), rec("small", day(time.January, 9), "3"))

	plain := januaryConfig()
	filtered := januaryConfig()
	filtered.ExcludeZeroValues = true
	filtered.MinimumAmount = d("10")

	g := newTestGenerator()
	a, err := g.Generate(tpl, plain, records)
	require.NoError(t, err)
	b, err := g.Generate(tpl, filtered, records)
	require.NoError(t, err)

	assert.Equal(t, a.Totals, b.Totals)
	require.Len(t, b.Items, len(a.Items))
	for i := range a.Items {
		assert.True(t, a.Items[i].Value.Equal(b.Items[i].Value))
		assert.False(t, a.Items[i].Hidden, "%s hidden without filters", a.Items[i].Code)
	}

	assert.True(t, requireItem(t, b, "EMPTY").Hidden)
	assert.True(t, requireItem(t, b, "SMALL").Hidden)
	assert.False(t, requireItem(t, b, "4.03").Hidden)
	assert.Len(t, b.VisibleItems(), len(a.Items)-2)
}

func TestGenerator_InvisibleItemsAreHiddenButCounted(t *testing.T) {
	tpl := Template{Items: []LineItem{
		leaf("R", KindRevenue, 1, "4001"),
		{Code: "SECRET", Kind: KindExpense, AccountRefs: []string{"5001"}, Order: 2},
	}}
	records := []AccountRecord{
		rec("4001", day(time.January, 2), "100"),
		rec("5001", day(time.January, 2), "40"),
	}
	result, err := newTestGenerator().Generate(tpl, januaryConfig(), records)
	require.NoError(t, err)

	assert.True(t, requireItem(t, result, "SECRET").Hidden)
	assert.True(t, d("40").Equal(result.Totals.TotalExpenses))
}

func TestGenerator_SmallValueKeptWhenComparisonIsLarge(t *testing.T) {
	tpl := Template{Items: []LineItem{leaf("R", KindRevenue, 1, "4001")}}
	records := []AccountRecord{rec("4001", day(time.February, 2), "500")}
	feb := monthPeriod(time.February)
	cfg := januaryConfig()
	cfg.ComparisonPeriod = &feb
	cfg.ExcludeZeroValues = true

	result, err := newTestGenerator().Generate(tpl, cfg, records)
	require.NoError(t, err)
	assert.False(t, requireItem(t, result, "R").Hidden)
}

func TestGenerator_GenerateValidatedReusesTemplate(t *testing.T) {
	vt := mustValidate(t, sampleTemplate())
	g := newTestGenerator()

	jan, err := g.GenerateValidated(vt, januaryConfig(), sampleRecords())
	require.NoError(t, err)

	cfg := januaryConfig()
	cfg.Period = monthPeriod(time.February)
	feb, err := g.GenerateValidated(vt, cfg, sampleRecords())
	require.NoError(t, err)

	assert.True(t, d("820").Equal(jan.Totals.NetProfit))
	assert.True(t, d("9999").Equal(feb.Totals.TotalRevenue))

	_, err = g.GenerateValidated(nil, januaryConfig(), nil)
	assert.Error(t, err)
}

func TestGenerator_DoesNotMutateInput(t *testing.T) {
	tpl := sampleTemplate()
	before, err := json.Marshal(tpl)
	require.NoError(t, err)

	result, err := newTestGenerator().Generate(tpl, januaryConfig(), sampleRecords())
	require.NoError(t, err)
	result.Items[0].AccountRefs = append(result.Items[0].AccountRefs, "x")
	result.Items[1].AccountRefs[0] = "mutated"

	after, err := json.Marshal(tpl)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}
