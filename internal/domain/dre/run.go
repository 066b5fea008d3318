package dre

import (
	"time"

	"github.com/erp/dre/internal/domain/shared"
	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a scheduled report run
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// ReportRun is one asynchronous generation of a stored template
type ReportRun struct {
	shared.BaseEntity
	TemplateID    uuid.UUID           `json:"template_id"`
	Configuration ReportConfiguration `json:"configuration"`
	RequestedBy   string              `json:"requested_by,omitempty"`
	Status        RunStatus           `json:"status"`
	Error         string              `json:"error,omitempty"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	RetryCount    int                 `json:"retry_count"`
	MaxRetries    int                 `json:"max_retries"`
	NextRetryAt   *time.Time          `json:"next_retry_at,omitempty"`
	Totals        *Totals             `json:"totals,omitempty"`
	WarningCount  int                 `json:"warning_count"`
}

// NewReportRun creates a pending run
func NewReportRun(templateID uuid.UUID, cfg ReportConfiguration, requestedBy string, maxRetries int) *ReportRun {
	return &ReportRun{
		BaseEntity:    shared.NewBaseEntity(),
		TemplateID:    templateID,
		Configuration: cfg,
		RequestedBy:   requestedBy,
		Status:        RunStatusPending,
		MaxRetries:    maxRetries,
	}
}

// Start marks the run as running
func (r *ReportRun) Start() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
	r.UpdatedAt = now
	r.Error = ""
}

// Complete marks the run as successful and keeps its totals
func (r *ReportRun) Complete(result *ReportResult) {
	now := time.Now()
	r.Status = RunStatusSuccess
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.NextRetryAt = nil
	if result != nil {
		totals := result.Totals
		r.Totals = &totals
		r.WarningCount = len(result.Metadata.Warnings)
	}
}

// Fail marks the run as failed
func (r *ReportRun) Fail(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.Error = err
}

// ShouldRetry returns true if a failed run has retries left
func (r *ReportRun) ShouldRetry() bool {
	return r.Status == RunStatusFailed && r.RetryCount < r.MaxRetries
}

// ScheduleRetry puts the run back to pending after delay
func (r *ReportRun) ScheduleRetry(delay time.Duration) {
	r.RetryCount++
	r.Status = RunStatusPending
	next := time.Now().Add(delay)
	r.NextRetryAt = &next
	r.UpdatedAt = time.Now()
}

// IsFinal reports whether the run will not change any more
func (r *ReportRun) IsFinal() bool {
	return r.Status == RunStatusSuccess || (r.Status == RunStatusFailed && !r.ShouldRetry())
}
