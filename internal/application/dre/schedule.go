package dre

import (
	"context"
	"errors"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/erp/dre/internal/infrastructure/scheduler"
	"github.com/erp/dre/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ScheduleDailyTag marks templates the daily trigger generates automatically
const ScheduleDailyTag = "schedule:daily"

// ScheduledBy is recorded as the requester of planned runs
const ScheduledBy = "scheduler"

// ScheduledReportExecutor generates the report of a scheduled run
type ScheduledReportExecutor struct {
	reports *ReportService
}

// NewScheduledReportExecutor creates an executor backed by the report service
func NewScheduledReportExecutor(reports *ReportService) *ScheduledReportExecutor {
	return &ScheduledReportExecutor{reports: reports}
}

// Execute implements scheduler.RunExecutor
func (e *ScheduledReportExecutor) Execute(ctx context.Context, run *dre.ReportRun) (*dre.ReportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "schedule", "execute",
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute(telemetry.SpanAttrRunID, run.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrTemplateID, run.TemplateID.String()))
	defer span.End()

	cfg := run.Configuration
	if cfg.GeneratedBy == "" {
		cfg.GeneratedBy = run.RequestedBy
	}
	result, err := e.reports.GenerateConfigured(ctx, run.TemplateID, cfg)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// SchedulePlanner creates the daily runs of templates tagged ScheduleDailyTag.
// Each run covers the month to date with the same span of the previous month
// as comparison. On the first day of a month the previous full month is used.
type SchedulePlanner struct {
	templates  dre.TemplateRepository
	defaults   ReportDefaults
	maxRetries int
	logger     *zap.Logger
}

// NewSchedulePlanner creates a new SchedulePlanner
func NewSchedulePlanner(templates dre.TemplateRepository, defaults ReportDefaults, maxRetries int, log *zap.Logger) *SchedulePlanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &SchedulePlanner{
		templates:  templates,
		defaults:   defaults,
		maxRetries: maxRetries,
		logger:     log.Named("planner"),
	}
}

// PlanDaily implements scheduler.RunPlanner
func (p *SchedulePlanner) PlanDaily(ctx context.Context, day time.Time) ([]*dre.ReportRun, error) {
	period, comparison := MonthToDate(day)

	filter := shared.DefaultFilter()
	filter.PageSize = 100
	filter.OrderBy = "name"
	filter.OrderDir = "asc"
	filter.Filters["tag"] = ScheduleDailyTag

	var runs []*dre.ReportRun
	for {
		templates, err := p.templates.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, t := range templates {
			cfg := dre.ReportConfiguration{
				Period:           period,
				ComparisonPeriod: &comparison,
				Precision:        p.defaults.Precision,
				Currency:         p.defaults.Currency,
				GeneratedBy:      ScheduledBy,
				DataSource:       p.defaults.DataSource,
			}
			runs = append(runs, dre.NewReportRun(t.ID, cfg, ScheduledBy, p.maxRetries))
		}
		if len(templates) < filter.PageSize {
			break
		}
		filter.Page++
	}

	p.logger.Debug("Planned daily runs",
		zap.Time("period_start", period.Start),
		zap.Time("period_end", period.End),
		zap.Int("runs", len(runs)),
	)
	return runs, nil
}

// MonthToDate returns [first of month, start of day) and the matching span of
// the previous month. On the first of a month it returns the previous month
// and the month before it.
func MonthToDate(day time.Time) (dre.Period, dre.Period) {
	loc := day.Location()
	today := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, loc)

	if today.Equal(monthStart) {
		prev := monthStart.AddDate(0, -1, 0)
		return dre.Period{Start: prev, End: monthStart},
			dre.Period{Start: prev.AddDate(0, -1, 0), End: prev}
	}

	prevStart := monthStart.AddDate(0, -1, 0)
	prevEnd := today.AddDate(0, -1, 0)
	// day 29-31 may overflow into the current month
	if prevEnd.After(monthStart) {
		prevEnd = monthStart
	}
	return dre.Period{Start: monthStart, End: today},
		dre.Period{Start: prevStart, End: prevEnd}
}

// RunSubmitter queues a run for execution
type RunSubmitter interface {
	Submit(run *dre.ReportRun) error
}

// ScheduleService queues on-demand runs and reports their state
type ScheduleService struct {
	templates  dre.TemplateRepository
	runs       dre.RunRepository
	submitter  RunSubmitter
	reports    *ReportService
	maxRetries int
	logger     *zap.Logger
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(
	templates dre.TemplateRepository,
	runs dre.RunRepository,
	submitter RunSubmitter,
	reports *ReportService,
	maxRetries int,
	log *zap.Logger,
) *ScheduleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleService{
		templates:  templates,
		runs:       runs,
		submitter:  submitter,
		reports:    reports,
		maxRetries: maxRetries,
		logger:     log.Named("schedule"),
	}
}

// Submit stores a pending run and queues it. A full queue or a stopped
// scheduler leaves the run pending; it is dispatched on a later tick.
func (s *ScheduleService) Submit(ctx context.Context, req ScheduleRunRequest) (*RunResponse, error) {
	if _, err := s.templates.FindByID(ctx, req.TemplateID); err != nil {
		return nil, err
	}
	cfg, err := s.reports.buildConfiguration(req.Configuration, dre.DefaultSettings(), req.RequestedBy)
	if err != nil {
		return nil, err
	}

	run := dre.NewReportRun(req.TemplateID, cfg, req.RequestedBy, s.maxRetries)
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	if err := s.submitter.Submit(run); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrJobQueueFull), errors.Is(err, scheduler.ErrSchedulerNotRunning):
			s.logger.Warn("Run saved but not queued", zap.String("run_id", run.ID.String()), zap.Error(err))
		default:
			return nil, err
		}
	}

	s.logger.Info("Run submitted",
		zap.String("run_id", run.ID.String()),
		zap.String("template_id", run.TemplateID.String()),
	)
	return ToRunResponse(run), nil
}

// Get returns the current state of a run
func (s *ScheduleService) Get(ctx context.Context, id uuid.UUID) (*RunResponse, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToRunResponse(run), nil
}

// Recent lists the latest runs of a template created after since
func (s *ScheduleService) Recent(ctx context.Context, templateID uuid.UUID, since time.Time, limit int) ([]RunResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.runs.FindRecent(ctx, templateID, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunResponse, len(runs))
	for i := range runs {
		out[i] = *ToRunResponse(&runs[i])
	}
	return out, nil
}
