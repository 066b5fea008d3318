package dre

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Stage is a step of report generation
type Stage string

const (
	StageIdle        Stage = "idle"
	StageValidating  Stage = "validating"
	StageResolving   Stage = "resolving"
	StageAggregating Stage = "aggregating"
	StageEvaluating  Stage = "evaluating"
	StageSummarizing Stage = "summarizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// StageObserver is notified on every stage transition
type StageObserver func(from, to Stage)

// Generator runs the validate, resolve, aggregate, evaluate and summarize
// pipeline. It keeps no state between calls and is safe for concurrent use.
type Generator struct {
	now      func() time.Time
	observer StageObserver
}

// GeneratorOption is a functional option for configuring Generator
type GeneratorOption func(*Generator)

// WithClock sets the clock used for Metadata.GeneratedAt
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithStageObserver registers a callback for stage transitions
func WithStageObserver(fn StageObserver) GeneratorOption {
	return func(g *Generator) {
		g.observer = fn
	}
}

// NewGenerator creates a new Generator
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// run tracks the current stage of one generation
type run struct {
	g     *Generator
	stage Stage
}

func (r *run) enter(next Stage) {
	prev := r.stage
	r.stage = next
	if r.g.observer != nil {
		r.g.observer(prev, next)
	}
}

func (r *run) fail(err error) error {
	r.enter(StageFailed)
	return err
}

// Generate validates the template and configuration, then computes the report.
// Structural problems are returned as *ValidationError before any record is read.
func (g *Generator) Generate(t Template, cfg ReportConfiguration, records []AccountRecord) (*ReportResult, error) {
	r := &run{g: g, stage: StageIdle}
	r.enter(StageValidating)
	vt, err := Validate(t)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, r.fail(err)
	}
	return g.generate(r, vt, cfg, records)
}

// GenerateValidated computes a report from an already validated template
func (g *Generator) GenerateValidated(vt *ValidTemplate, cfg ReportConfiguration, records []AccountRecord) (*ReportResult, error) {
	r := &run{g: g, stage: StageIdle}
	r.enter(StageValidating)
	if vt == nil {
		return nil, r.fail(newValidationError(ErrKindEmptyTemplate, nil, nil, "template has no line items"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, r.fail(err)
	}
	return g.generate(r, vt, cfg, records)
}

func (g *Generator) generate(r *run, vt *ValidTemplate, cfg ReportConfiguration, records []AccountRecord) (*ReportResult, error) {
	r.enter(StageResolving)
	order, err := Resolve(vt)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageAggregating)
	agg := NewAggregator(records, cfg)
	current := make(map[string]decimal.Decimal, vt.Len())
	var comparison map[string]decimal.Decimal
	if cfg.ComparisonPeriod != nil {
		comparison = make(map[string]decimal.Decimal, vt.Len())
	}
	for _, it := range vt.items {
		if it.IsCalculated {
			continue
		}
		current[it.Code] = agg.Sum(it, cfg.Period)
		if comparison != nil {
			comparison[it.Code] = agg.Sum(it, *cfg.ComparisonPeriod)
		}
	}

	r.enter(StageEvaluating)
	itemWarnings := make(map[string][]Warning)
	for _, code := range order {
		f := vt.formulas[code]
		if f == nil {
			continue
		}
		v, divZero, err := evaluateRecovering(f, current)
		if err != nil {
			return nil, err
		}
		current[code] = v
		if divZero {
			itemWarnings[code] = append(itemWarnings[code], divisionByZeroWarning(code, false))
		}
		if comparison != nil {
			cv, cDivZero, err := evaluateRecovering(f, comparison)
			if err != nil {
				return nil, err
			}
			comparison[code] = cv
			if cDivZero {
				itemWarnings[code] = append(itemWarnings[code], divisionByZeroWarning(code, true))
			}
		}
	}

	r.enter(StageSummarizing)
	result := g.summarize(vt, cfg, order, current, comparison, itemWarnings)
	result.Metadata.RecordCount = len(records)

	r.enter(StageDone)
	return result, nil
}

// evaluateRecovering turns a division by zero into a zero value plus a flag
func evaluateRecovering(f *Formula, values map[string]decimal.Decimal) (decimal.Decimal, bool, error) {
	v, err := f.Evaluate(values)
	if errors.Is(err, ErrDivisionByZero) {
		return decimal.Zero, true, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return v, false, nil
}

func (g *Generator) summarize(
	vt *ValidTemplate,
	cfg ReportConfiguration,
	order EvaluationOrder,
	current, comparison map[string]decimal.Decimal,
	itemWarnings map[string][]Warning,
) *ReportResult {
	totals := summarizeValues(vt.items, current, order)

	var comparisonTotals *Totals
	if comparison != nil {
		ct := summarizeValues(vt.items, comparison, order)
		comparisonTotals = &ct
	}

	items := make([]ComputedLineItem, len(vt.items))
	for i, it := range vt.items {
		ci := ComputedLineItem{
			LineItem:            cloneLineItem(it),
			Value:               current[it.Code],
			PercentageOfRevenue: PercentOf(current[it.Code], totals.TotalRevenue),
			Warnings:            slices.Clone(itemWarnings[it.Code]),
		}
		if comparison != nil {
			cv := comparison[it.Code]
			variance, pct := Variance(ci.Value, cv)
			ci.ComparisonValue = decimal.NewNullDecimal(cv)
			ci.Variance = decimal.NewNullDecimal(variance)
			ci.VariancePercentage = decimal.NewNullDecimal(pct)
		}
		ci.Hidden = hiddenForDisplay(ci, cfg)
		items[i] = ci
	}
	slices.SortStableFunc(items, func(a, b ComputedLineItem) int {
		return cmp.Compare(a.Order, b.Order)
	})

	warnings := make([]Warning, 0)
	for _, code := range order {
		warnings = append(warnings, itemWarnings[code]...)
	}
	if totals.TotalRevenue.IsZero() {
		warnings = append(warnings, zeroRevenueWarning())
	}

	var comparisonPeriod *Period
	if cfg.ComparisonPeriod != nil {
		p := *cfg.ComparisonPeriod
		comparisonPeriod = &p
	}

	return &ReportResult{
		TemplateName:    vt.name,
		Items:           items,
		Totals:          totals,
		Comparison:      comparisonTotals,
		EvaluationOrder: order,
		Metadata: Metadata{
			GeneratedAt:      g.now(),
			GeneratedBy:      cfg.GeneratedBy,
			DataSource:       cfg.DataSource,
			Period:           cfg.Period,
			ComparisonPeriod: comparisonPeriod,
			Warnings:         warnings,
		},
	}
}

// hiddenForDisplay applies the display-only filters. A row is hidden for being
// zero or small only when its comparison value, if any, is zero or small too.
func hiddenForDisplay(ci ComputedLineItem, cfg ReportConfiguration) bool {
	if !ci.IsVisible {
		return true
	}
	negligible := func(v decimal.Decimal) bool {
		if cfg.ExcludeZeroValues && v.IsZero() {
			return true
		}
		return cfg.MinimumAmount.IsPositive() && v.Abs().LessThan(cfg.MinimumAmount)
	}
	if !negligible(ci.Value) {
		return false
	}
	if ci.ComparisonValue.Valid && !negligible(ci.ComparisonValue.Decimal) {
		return false
	}
	return true
}
