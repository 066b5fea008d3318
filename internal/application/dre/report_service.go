// Package dre holds the application services that wrap the DRE engine:
// report generation, the template library, owner settings, ledger import
// and scheduled runs.
package dre

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/erp/dre/internal/infrastructure/logger"
	"github.com/erp/dre/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrLedgerLimitExceeded is returned when a report would read more ledger
// records than allowed
var ErrLedgerLimitExceeded = shared.NewDomainError("LEDGER_LIMIT_EXCEEDED", "Too many ledger records for one report, narrow the period or units")

// ReportDefaults are applied to requests that leave an option unset
type ReportDefaults struct {
	Currency         string
	Locale           string
	Precision        int32
	DataSource       string
	LedgerFetchLimit int
	BatchConcurrency int
}

// DefaultReportDefaults returns the defaults used when nothing is configured
func DefaultReportDefaults() ReportDefaults {
	return ReportDefaults{
		Currency:         "BRL",
		Locale:           "pt-BR",
		Precision:        2,
		DataSource:       "ledger",
		LedgerFetchLimit: 500_000,
		BatchConcurrency: 4,
	}
}

// ReportServiceOption configures a ReportService
type ReportServiceOption func(*ReportService)

// WithReportMetrics records generation metrics
func WithReportMetrics(m *telemetry.ReportMetrics) ReportServiceOption {
	return func(s *ReportService) {
		s.metrics = m
	}
}

// WithReportClock sets the clock used for report metadata and timings
func WithReportClock(now func() time.Time) ReportServiceOption {
	return func(s *ReportService) {
		if now != nil {
			s.now = now
		}
	}
}

// ReportService generates DRE reports from stored or ad-hoc templates
type ReportService struct {
	templates dre.TemplateRepository
	ledger    dre.LedgerRepository
	settings  dre.SettingsStore
	defaults  ReportDefaults
	metrics   *telemetry.ReportMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService creates a new ReportService. settings may be nil, in
// which case goals and cost center categories are not available.
func NewReportService(
	templates dre.TemplateRepository,
	ledger dre.LedgerRepository,
	settings dre.SettingsStore,
	defaults ReportDefaults,
	log *zap.Logger,
	opts ...ReportServiceOption,
) *ReportService {
	def := DefaultReportDefaults()
	if defaults.LedgerFetchLimit <= 0 {
		defaults.LedgerFetchLimit = def.LedgerFetchLimit
	}
	if defaults.BatchConcurrency <= 0 {
		defaults.BatchConcurrency = def.BatchConcurrency
	}
	if defaults.DataSource == "" {
		defaults.DataSource = def.DataSource
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &ReportService{
		templates: templates,
		ledger:    ledger,
		settings:  settings,
		defaults:  defaults,
		logger:    log.Named("report"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generation is one engine run with everything resolved up front
type generation struct {
	templateID  string
	template    *dre.ValidTemplate
	config      dre.ReportConfiguration
	settings    dre.Settings
	includeRows bool
}

// Generate computes a report from a stored template
func (s *ReportService) Generate(ctx context.Context, in GenerateReportInput) (*ReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "generate",
		telemetry.WithAttribute(telemetry.SpanAttrTemplateID, in.TemplateID.String()))
	defer span.End()

	tpl, err := s.templates.FindByID(ctx, in.TemplateID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	g, err := s.prepare(ctx, in.TemplateID.String(), *tpl, in.Configuration, in.Owner, in.GeneratedBy)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	g.includeRows = in.IncludeRows

	resp, err := s.run(ctx, span, g)
	if err != nil {
		return nil, err
	}
	telemetry.SetOK(span)
	return resp, nil
}

// GenerateConfigured computes a report from a stored template with a ready
// configuration, as kept on a scheduled run. Unset currency and data source
// take the service defaults.
func (s *ReportService) GenerateConfigured(ctx context.Context, templateID uuid.UUID, cfg dre.ReportConfiguration) (*dre.ReportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "generate_configured",
		telemetry.WithAttribute(telemetry.SpanAttrTemplateID, templateID.String()))
	defer span.End()

	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if cfg.Currency == "" {
		cfg.Currency = s.defaults.Currency
	}
	if cfg.DataSource == "" {
		cfg.DataSource = s.defaults.DataSource
	}
	if err := cfg.Validate(); err != nil {
		s.metrics.RecordGeneration(ctx, templateID.String(), telemetry.OutcomeValidationError, 0, 0)
		telemetry.RecordError(span, err)
		return nil, err
	}
	vt, err := dre.Validate(*tpl)
	if err != nil {
		s.metrics.RecordGeneration(ctx, templateID.String(), telemetry.OutcomeValidationError, 0, 0)
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp, err := s.run(ctx, span, generation{
		templateID: templateID.String(),
		template:   vt,
		config:     cfg,
		settings:   dre.DefaultSettings(),
	})
	if err != nil {
		return nil, err
	}
	telemetry.SetOK(span)
	return resp.Report, nil
}

// Preview computes a report from an unsaved template against the stored ledger
func (s *ReportService) Preview(ctx context.Context, in PreviewReportInput) (*ReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "preview")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Preview"
	}
	tpl, err := dre.NewTemplate(name, in.Owner, ToLineItems(in.Items))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	g, err := s.prepare(ctx, "preview", *tpl, in.Configuration, in.Owner, in.GeneratedBy)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	g.includeRows = in.IncludeRows

	resp, err := s.run(ctx, span, g)
	if err != nil {
		return nil, err
	}
	telemetry.SetOK(span)
	return resp, nil
}

// GenerateBatch computes one report per unit group with bounded parallelism.
// The template and configuration are validated once. Results keep the order
// of the requested groups; the first failure cancels the remaining runs.
func (s *ReportService) GenerateBatch(ctx context.Context, in BatchInput) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "generate_batch",
		telemetry.WithAttribute(telemetry.SpanAttrTemplateID, in.TemplateID.String()),
		telemetry.WithAttribute("dre.batch_size", len(in.UnitGroups)))
	defer span.End()

	if len(in.UnitGroups) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one unit group is required")
	}
	for i, group := range in.UnitGroups {
		if len(group) == 0 {
			return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unit group %d is empty", i+1))
		}
	}

	tpl, err := s.templates.FindByID(ctx, in.TemplateID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	base, err := s.prepare(ctx, in.TemplateID.String(), *tpl, in.Configuration, in.Owner, in.GeneratedBy)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	results := make([]BatchItemResponse, len(in.UnitGroups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.defaults.BatchConcurrency)
	for i, group := range in.UnitGroups {
		eg.Go(func() error {
			g := base
			g.config.Units = append([]string(nil), group...)
			resp, err := s.run(egCtx, span, g)
			if err != nil {
				return fmt.Errorf("unit group %s: %w", strings.Join(group, ","), err)
			}
			results[i] = BatchItemResponse{Units: group, Report: *resp}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	return &BatchResponse{TemplateID: in.TemplateID, Results: results}, nil
}

// prepare validates the template and builds the engine configuration
func (s *ReportService) prepare(
	ctx context.Context,
	templateID string,
	tpl dre.Template,
	req ConfigurationRequest,
	owner, generatedBy string,
) (generation, error) {
	settings := dre.DefaultSettings()
	if s.settings != nil && (owner != "" || len(req.CostCenterCategories) > 0) {
		loaded, err := s.settings.Load(ctx, owner)
		if err != nil {
			return generation{}, fmt.Errorf("failed to load settings: %w", err)
		}
		settings = loaded
	}

	cfg, err := s.buildConfiguration(req, settings, generatedBy)
	if err != nil {
		s.metrics.RecordGeneration(ctx, templateID, telemetry.OutcomeValidationError, 0, 0)
		return generation{}, err
	}

	vt, err := dre.Validate(tpl)
	if err != nil {
		s.metrics.RecordGeneration(ctx, templateID, telemetry.OutcomeValidationError, 0, 0)
		return generation{}, err
	}

	return generation{
		templateID: templateID,
		template:   vt,
		config:     cfg,
		settings:   settings,
	}, nil
}

// buildConfiguration applies the defaults and resolves cost center categories
func (s *ReportService) buildConfiguration(req ConfigurationRequest, settings dre.Settings, generatedBy string) (dre.ReportConfiguration, error) {
	cfg := dre.ReportConfiguration{
		Period:            req.Period.ToDomain(),
		Units:             req.Units,
		CostCenters:       req.CostCenters,
		IncludeInactive:   req.IncludeInactive,
		ExcludeZeroValues: req.ExcludeZeroValues,
		Precision:         s.defaults.Precision,
		Currency:          strings.ToUpper(req.Currency),
		GeneratedBy:       generatedBy,
		DataSource:        s.defaults.DataSource,
	}
	if req.ComparisonPeriod != nil {
		p := req.ComparisonPeriod.ToDomain()
		cfg.ComparisonPeriod = &p
	}
	if req.MinimumAmount != nil {
		cfg.MinimumAmount = *req.MinimumAmount
	}
	if req.Precision != nil {
		cfg.Precision = *req.Precision
	}
	if cfg.Currency == "" {
		cfg.Currency = s.defaults.Currency
	}

	if len(req.CostCenterCategories) > 0 {
		resolved := settings.CategoryCostCenters(req.CostCenterCategories...)
		if len(resolved) == 0 {
			return cfg, shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("No cost centers in categories %s", strings.Join(req.CostCenterCategories, ", ")))
		}
		cfg.CostCenters = append(append([]string(nil), cfg.CostCenters...), resolved...)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// run fetches the ledger window and executes the engine
func (s *ReportService) run(ctx context.Context, span trace.Span, g generation) (*ReportResponse, error) {
	log := logger.Enrich(ctx, s.logger).With(zap.String("template_id", g.templateID))
	started := s.now()

	records, err := s.fetchRecords(ctx, g)
	if err != nil {
		s.metrics.RecordGeneration(ctx, g.templateID, telemetry.OutcomeDataError, s.now().Sub(started), 0)
		telemetry.RecordError(span, err)
		log.Error("Failed to fetch ledger records", zap.Error(err))
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemCount, g.template.Len(),
		telemetry.SpanAttrRecordCount, len(records),
		telemetry.SpanAttrPeriodStart, g.config.Period.Start.Format(time.RFC3339),
		telemetry.SpanAttrPeriodEnd, g.config.Period.End.Format(time.RFC3339),
	)

	generator := dre.NewGenerator(
		dre.WithClock(s.now),
		dre.WithStageObserver(func(from, to dre.Stage) {
			telemetry.AddEvent(span, "dre.stage", "from", string(from), "to", string(to))
		}),
	)

	var result *dre.ReportResult
	telemetry.WithProfilingLabels(ctx, func(context.Context) {
		result, err = generator.GenerateValidated(g.template, g.config, records)
	}, "template_id", g.templateID)
	elapsed := s.now().Sub(started)

	if err != nil {
		outcome := telemetry.OutcomeEvaluationError
		var verr *dre.ValidationError
		if errors.As(err, &verr) {
			outcome = telemetry.OutcomeValidationError
		}
		s.metrics.RecordGeneration(ctx, g.templateID, outcome, elapsed, len(records))
		telemetry.RecordError(span, err)
		log.Error("Report generation failed", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordGeneration(ctx, g.templateID, telemetry.OutcomeSuccess, elapsed, len(records))
	warnings := result.Metadata.Warnings
	if len(warnings) > 0 {
		kinds := make([]string, len(warnings))
		for i, w := range warnings {
			kinds[i] = string(w.Kind)
			log.Warn("Report warning",
				zap.String("kind", string(w.Kind)),
				zap.String("code", w.Code),
				zap.String("message", w.Message),
			)
		}
		s.metrics.RecordWarnings(ctx, kinds...)
		telemetry.SetAttribute(span, telemetry.SpanAttrWarningCount, len(warnings))
	}

	log.Info("Report generated",
		zap.String("template", result.TemplateName),
		zap.Int("records", len(records)),
		zap.Int("warnings", len(warnings)),
		zap.Duration("elapsed", elapsed),
	)

	resp := &ReportResponse{Report: result}
	if len(g.settings.Goals) > 0 {
		resp.Goals = dre.EvaluateGoals(g.settings.Goals, result.Totals)
	}
	if g.includeRows {
		rows, err := s.renderRows(result, g.config)
		if err != nil {
			return nil, err
		}
		resp.Rows = rows
	}
	return resp, nil
}

// fetchRecords reads the ledger window covering both periods. Templates
// without account rows need no records at all.
func (s *ReportService) fetchRecords(ctx context.Context, g generation) ([]dre.AccountRecord, error) {
	accounts := dre.AccountsOf(g.template.Items())
	if len(accounts) == 0 {
		return nil, nil
	}

	query := dre.LedgerQuery{
		Period:      g.config.LedgerWindow(),
		CostCenters: g.config.CostCenters,
		Accounts:    accounts,
		Limit:       s.defaults.LedgerFetchLimit + 1,
	}
	if !g.config.AllUnits() {
		query.Units = g.config.Units
	}

	records, err := s.ledger.FindRecords(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(records) > s.defaults.LedgerFetchLimit {
		return nil, ErrLedgerLimitExceeded
	}
	return records, nil
}

func (s *ReportService) renderRows(result *dre.ReportResult, cfg dre.ReportConfiguration) ([]RowResponse, error) {
	f, err := dre.NewFormatter(s.defaults.Locale, cfg.Currency, cfg.Precision)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	flat := dre.Flatten(result)
	rows := make([]RowResponse, len(flat))
	for i, r := range flat {
		rows[i] = RowResponse{
			RenderRow:      r,
			ValueText:      f.Amount(r.Value),
			PercentageText: f.Percent(r.PercentageOfRevenue),
			ComparisonText: f.NullAmount(r.ComparisonValue),
			VarianceText:   f.NullPercent(r.VariancePercentage),
		}
	}
	return rows, nil
}
