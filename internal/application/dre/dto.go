package dre

import (
	"strings"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodRequest is a half-open date range [start, end)
type PeriodRequest struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

// ToDomain converts the request to a domain period
func (p PeriodRequest) ToDomain() dre.Period {
	return dre.Period{Start: p.Start, End: p.End}
}

// ConfigurationRequest carries the filter and display options of a generation.
// Unset precision and currency fall back to the service defaults.
type ConfigurationRequest struct {
	Period               PeriodRequest    `json:"period" binding:"required"`
	ComparisonPeriod     *PeriodRequest   `json:"comparison_period"`
	Units                []string         `json:"units"`
	CostCenters          []string         `json:"cost_centers"`
	CostCenterCategories []string         `json:"cost_center_categories"`
	IncludeInactive      bool             `json:"include_inactive"`
	ExcludeZeroValues    bool             `json:"exclude_zero_values"`
	MinimumAmount        *decimal.Decimal `json:"minimum_amount"`
	Precision            *int32           `json:"precision" binding:"omitempty,min=0,max=8"`
	Currency             string           `json:"currency" binding:"omitempty,len=3"`
}

// LineItemRequest is one template row. Visible defaults to true.
type LineItemRequest struct {
	Code           string   `json:"code" binding:"required,max=50,dre_code"`
	Name           string   `json:"name" binding:"required,max=200"`
	Description    string   `json:"description" binding:"max=2000"`
	Kind           string   `json:"kind" binding:"required,oneof=revenue expense subtotal total"`
	Level          int      `json:"level" binding:"min=0"`
	ParentCode     string   `json:"parent_code"`
	AccountRefs    []string `json:"account_refs"`
	CostCenterRefs []string `json:"cost_center_refs"`
	Formula        string   `json:"formula" binding:"max=2000"`
	IsCalculated   bool     `json:"is_calculated"`
	IsVisible      *bool    `json:"is_visible"`
	Order          int      `json:"order"`
	Tags           []string `json:"tags"`
}

// ToDomain converts the request to a domain line item
func (r LineItemRequest) ToDomain() dre.LineItem {
	visible := true
	if r.IsVisible != nil {
		visible = *r.IsVisible
	}
	return dre.LineItem{
		Code:           strings.TrimSpace(r.Code),
		Name:           strings.TrimSpace(r.Name),
		Description:    r.Description,
		Kind:           dre.LineItemKind(strings.ToLower(r.Kind)),
		Level:          r.Level,
		ParentCode:     strings.TrimSpace(r.ParentCode),
		AccountRefs:    r.AccountRefs,
		CostCenterRefs: r.CostCenterRefs,
		Formula:        r.Formula,
		IsCalculated:   r.IsCalculated,
		IsVisible:      visible,
		Order:          r.Order,
		Tags:           r.Tags,
	}
}

// ToLineItems converts a list of requests
func ToLineItems(reqs []LineItemRequest) []dre.LineItem {
	items := make([]dre.LineItem, len(reqs))
	for i, r := range reqs {
		items[i] = r.ToDomain()
	}
	return items
}

// CreateTemplateRequest represents a request to create a template
type CreateTemplateRequest struct {
	Name        string            `json:"name" binding:"required,min=1,max=200"`
	Description string            `json:"description" binding:"max=2000"`
	Owner       string            `json:"owner" binding:"max=100"`
	Visibility  string            `json:"visibility" binding:"omitempty,oneof=private shared public"`
	Tags        []string          `json:"tags"`
	Items       []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateTemplateRequest represents a partial template update. Version, when
// set, must match the stored version.
type UpdateTemplateRequest struct {
	Name        *string           `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string           `json:"description" binding:"omitempty,max=2000"`
	Visibility  *string           `json:"visibility" binding:"omitempty,oneof=private shared public"`
	Tags        []string          `json:"tags"`
	Items       []LineItemRequest `json:"items" binding:"omitempty,min=1,dive"`
	Version     *int              `json:"version"`
}

// ValidateTemplateRequest checks rows without saving them
type ValidateTemplateRequest struct {
	Name  string            `json:"name"`
	Items []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

// TemplateListFilter defines the query parameters of the template library
type TemplateListFilter struct {
	Search       string `form:"search"`
	Owner        string `form:"owner"`
	Visibility   string `form:"visibility" binding:"omitempty,oneof=private shared public"`
	Tag          string `form:"tag"`
	AccessibleBy string `form:"accessible_by"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy       string `form:"sort_by"`
	SortOrder    string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// TemplateResponse represents a template in API responses
type TemplateResponse struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       string         `json:"owner"`
	Visibility  string         `json:"visibility"`
	Tags        []string       `json:"tags"`
	Items       []dre.LineItem `json:"items"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TemplateListResponse is a template without its rows
type TemplateListResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Owner      string    `json:"owner"`
	Visibility string    `json:"visibility"`
	Tags       []string  `json:"tags"`
	ItemCount  int       `json:"item_count"`
	Version    int       `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ToTemplateResponse converts a domain template
func ToTemplateResponse(t *dre.Template) *TemplateResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return &TemplateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Owner:       t.Owner,
		Visibility:  string(t.Visibility),
		Tags:        tags,
		Items:       t.Items,
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ToTemplateListResponses converts domain templates to list items
func ToTemplateListResponses(ts []dre.Template) []TemplateListResponse {
	out := make([]TemplateListResponse, len(ts))
	for i := range ts {
		t := &ts[i]
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = TemplateListResponse{
			ID:         t.ID,
			Name:       t.Name,
			Owner:      t.Owner,
			Visibility: string(t.Visibility),
			Tags:       tags,
			ItemCount:  len(t.Items),
			Version:    t.Version,
			UpdatedAt:  t.UpdatedAt,
		}
	}
	return out
}

// ValidationResponse reports a valid template and its evaluation order
type ValidationResponse struct {
	Valid           bool     `json:"valid"`
	ItemCount       int      `json:"item_count"`
	EvaluationOrder []string `json:"evaluation_order"`
	Accounts        []string `json:"accounts"`
}

// GenerateReportInput requests a report from a stored template.
// Owner selects the settings used for goals and cost center categories.
type GenerateReportInput struct {
	TemplateID    uuid.UUID            `json:"template_id" binding:"required"`
	Configuration ConfigurationRequest `json:"configuration" binding:"required"`
	Owner         string               `json:"owner"`
	GeneratedBy   string               `json:"generated_by"`
	IncludeRows   bool                 `json:"include_rows"`
}

// PreviewReportInput requests a report from an unsaved template
type PreviewReportInput struct {
	Name          string               `json:"name"`
	Items         []LineItemRequest    `json:"items" binding:"required,min=1,dive"`
	Configuration ConfigurationRequest `json:"configuration" binding:"required"`
	Owner         string               `json:"owner"`
	GeneratedBy   string               `json:"generated_by"`
	IncludeRows   bool                 `json:"include_rows"`
}

// BatchInput runs one generation per unit group
type BatchInput struct {
	TemplateID    uuid.UUID            `json:"template_id" binding:"required"`
	Configuration ConfigurationRequest `json:"configuration" binding:"required"`
	UnitGroups    [][]string           `json:"unit_groups" binding:"required,min=1,max=50"`
	Owner         string               `json:"owner"`
	GeneratedBy   string               `json:"generated_by"`
}

// RowResponse is a flattened report row with display strings
type RowResponse struct {
	dre.RenderRow
	ValueText      string `json:"value_text"`
	PercentageText string `json:"percentage_text"`
	ComparisonText string `json:"comparison_text"`
	VarianceText   string `json:"variance_text"`
}

// ReportResponse wraps a generated report
type ReportResponse struct {
	Report *dre.ReportResult  `json:"report"`
	Rows   []RowResponse      `json:"rows,omitempty"`
	Goals  []dre.GoalProgress `json:"goals,omitempty"`
}

// BatchItemResponse is the report of one unit group
type BatchItemResponse struct {
	Units  []string       `json:"units"`
	Report ReportResponse `json:"report"`
}

// BatchResponse lists the reports in the order of the requested unit groups
type BatchResponse struct {
	TemplateID uuid.UUID           `json:"template_id"`
	Results    []BatchItemResponse `json:"results"`
}

// SettingsRequest replaces the settings of an owner
type SettingsRequest struct {
	Goals                []dre.Goal               `json:"goals" binding:"dive"`
	CostCenterCategories []dre.CostCenterCategory `json:"cost_center_categories" binding:"dive"`
}

// ImportResponse summarizes a ledger import
type ImportResponse struct {
	TotalRows    int              `json:"total_rows"`
	ImportedRows int              `json:"imported_rows"`
	ErrorRows    int              `json:"error_rows"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	TotalErrors  int              `json:"total_errors"`
	Truncated    bool             `json:"truncated"`
}

// ImportRowError is a row-level import problem
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScheduleRunRequest queues an asynchronous generation
type ScheduleRunRequest struct {
	TemplateID    uuid.UUID            `json:"template_id" binding:"required"`
	Configuration ConfigurationRequest `json:"configuration" binding:"required"`
	RequestedBy   string               `json:"requested_by"`
}

// RunResponse represents a scheduled run
type RunResponse struct {
	ID           uuid.UUID   `json:"id"`
	TemplateID   uuid.UUID   `json:"template_id"`
	Status       string      `json:"status"`
	Error        string      `json:"error,omitempty"`
	RequestedBy  string      `json:"requested_by,omitempty"`
	RetryCount   int         `json:"retry_count"`
	MaxRetries   int         `json:"max_retries"`
	NextRetryAt  *time.Time  `json:"next_retry_at,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Totals       *dre.Totals `json:"totals,omitempty"`
	WarningCount int         `json:"warning_count"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ToRunResponse converts a domain run
func ToRunResponse(r *dre.ReportRun) *RunResponse {
	return &RunResponse{
		ID:           r.ID,
		TemplateID:   r.TemplateID,
		Status:       string(r.Status),
		Error:        r.Error,
		RequestedBy:  r.RequestedBy,
		RetryCount:   r.RetryCount,
		MaxRetries:   r.MaxRetries,
		NextRetryAt:  r.NextRetryAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		Totals:       r.Totals,
		WarningCount: r.WarningCount,
		CreatedAt:    r.CreatedAt,
	}
}
