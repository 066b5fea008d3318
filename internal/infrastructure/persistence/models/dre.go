package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TemplateModel is the persistence model for report templates.
// Items and tags are stored as JSON documents.
type TemplateModel struct {
	AggregateModel
	Name        string `gorm:"type:varchar(200);not null;uniqueIndex:idx_dre_templates_name"`
	Description string `gorm:"type:text"`
	Owner       string `gorm:"type:varchar(100);index"`
	Visibility  string `gorm:"type:varchar(20);not null;default:'private'"`
	Tags        string `gorm:"column:tags;type:jsonb"`
	Items       string `gorm:"column:items;type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (TemplateModel) TableName() string {
	return "dre_templates"
}

// TemplateModelFromDomain converts a domain template to its persistence model
func TemplateModelFromDomain(t *dre.Template) (*TemplateModel, error) {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return nil, fmt.Errorf("encode template items: %w", err)
	}
	tags := "[]"
	if len(t.Tags) > 0 {
		b, err := json.Marshal(t.Tags)
		if err != nil {
			return nil, fmt.Errorf("encode template tags: %w", err)
		}
		tags = string(b)
	}

	m := &TemplateModel{
		Name:        t.Name,
		Description: t.Description,
		Owner:       t.Owner,
		Visibility:  string(t.Visibility),
		Tags:        tags,
		Items:       string(items),
	}
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	return m, nil
}

// ToDomain converts the model back to a domain template
func (m *TemplateModel) ToDomain() (*dre.Template, error) {
	var items []dre.LineItem
	if err := json.Unmarshal([]byte(m.Items), &items); err != nil {
		return nil, fmt.Errorf("decode items of template %s: %w", m.ID, err)
	}
	var tags []string
	if m.Tags != "" {
		if err := json.Unmarshal([]byte(m.Tags), &tags); err != nil {
			return nil, fmt.Errorf("decode tags of template %s: %w", m.ID, err)
		}
	}
	if len(tags) == 0 {
		tags = nil
	}
	return &dre.Template{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Description:       m.Description,
		Owner:             m.Owner,
		Visibility:        dre.Visibility(m.Visibility),
		Tags:              tags,
		Items:             items,
	}, nil
}

// LedgerEntryModel is one imported account movement.
type LedgerEntryModel struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	AccountID    string          `gorm:"type:varchar(64);not null;index:idx_dre_ledger_account_date,priority:1"`
	UnitID       string          `gorm:"type:varchar(64);not null;index"`
	CostCenterID string          `gorm:"type:varchar(64)"`
	EntryDate    time.Time       `gorm:"not null;index:idx_dre_ledger_account_date,priority:2"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Inactive     bool            `gorm:"not null;default:false"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "dre_ledger_entries"
}

// LedgerEntryModelFromDomain converts an account record to its persistence model
func LedgerEntryModelFromDomain(r dre.AccountRecord) LedgerEntryModel {
	return LedgerEntryModel{
		AccountID:    r.AccountID,
		UnitID:       r.UnitID,
		CostCenterID: r.CostCenterID,
		EntryDate:    r.Date.UTC(),
		Amount:       r.Amount,
		Inactive:     r.Inactive,
	}
}

// ToDomain converts the model to an account record
func (m *LedgerEntryModel) ToDomain() dre.AccountRecord {
	return dre.AccountRecord{
		AccountID:    m.AccountID,
		UnitID:       m.UnitID,
		CostCenterID: m.CostCenterID,
		Date:         m.EntryDate.UTC(),
		Amount:       m.Amount,
		Inactive:     m.Inactive,
	}
}

// ReportRunModel is the persistence model for scheduled report runs.
type ReportRunModel struct {
	BaseModel
	TemplateID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_dre_runs_template_created,priority:1"`
	Configuration string     `gorm:"column:configuration;type:jsonb;not null"`
	RequestedBy   string     `gorm:"type:varchar(100)"`
	Status        string     `gorm:"type:varchar(20);not null;index:idx_dre_runs_status_retry,priority:1"`
	Error         string     `gorm:"type:text"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	RetryCount    int        `gorm:"not null;default:0"`
	MaxRetries    int        `gorm:"not null;default:0"`
	NextRetryAt   *time.Time `gorm:"index:idx_dre_runs_status_retry,priority:2"`
	Totals        *string    `gorm:"column:totals;type:jsonb"`
	WarningCount  int        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ReportRunModel) TableName() string {
	return "dre_report_runs"
}

// ReportRunModelFromDomain converts a run to its persistence model
func ReportRunModelFromDomain(r *dre.ReportRun) (*ReportRunModel, error) {
	cfg, err := json.Marshal(r.Configuration)
	if err != nil {
		return nil, fmt.Errorf("encode run configuration: %w", err)
	}
	m := &ReportRunModel{
		TemplateID:    r.TemplateID,
		Configuration: string(cfg),
		RequestedBy:   r.RequestedBy,
		Status:        string(r.Status),
		Error:         r.Error,
		StartedAt:     utcPtr(r.StartedAt),
		CompletedAt:   utcPtr(r.CompletedAt),
		RetryCount:    r.RetryCount,
		MaxRetries:    r.MaxRetries,
		NextRetryAt:   utcPtr(r.NextRetryAt),
		WarningCount:  r.WarningCount,
	}
	if r.Totals != nil {
		b, err := json.Marshal(r.Totals)
		if err != nil {
			return nil, fmt.Errorf("encode run totals: %w", err)
		}
		s := string(b)
		m.Totals = &s
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m, nil
}

// ToDomain converts the model back to a domain run
func (m *ReportRunModel) ToDomain() (*dre.ReportRun, error) {
	var cfg dre.ReportConfiguration
	if err := json.Unmarshal([]byte(m.Configuration), &cfg); err != nil {
		return nil, fmt.Errorf("decode configuration of run %s: %w", m.ID, err)
	}
	run := &dre.ReportRun{
		BaseEntity:    m.BaseModel.ToDomain(),
		TemplateID:    m.TemplateID,
		Configuration: cfg,
		RequestedBy:   m.RequestedBy,
		Status:        dre.RunStatus(m.Status),
		Error:         m.Error,
		StartedAt:     utcPtr(m.StartedAt),
		CompletedAt:   utcPtr(m.CompletedAt),
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		NextRetryAt:   utcPtr(m.NextRetryAt),
		WarningCount:  m.WarningCount,
	}
	if m.Totals != nil && *m.Totals != "" {
		var totals dre.Totals
		if err := json.Unmarshal([]byte(*m.Totals), &totals); err != nil {
			return nil, fmt.Errorf("decode totals of run %s: %w", m.ID, err)
		}
		run.Totals = &totals
	}
	return run, nil
}
