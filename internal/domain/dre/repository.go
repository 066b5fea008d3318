package dre

import (
	"context"
	"time"

	"github.com/erp/dre/internal/domain/shared"
	"github.com/google/uuid"
)

// TemplateRepository stores report templates
type TemplateRepository interface {
	shared.Repository[Template]
	FindByName(ctx context.Context, name string) (*Template, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// LedgerQuery selects the records a generation needs. Empty slices mean no filter.
type LedgerQuery struct {
	Period      Period
	Units       []string
	CostCenters []string
	Accounts    []string
	Limit       int
}

// LedgerRepository supplies account records. The engine itself never calls it.
type LedgerRepository interface {
	FindRecords(ctx context.Context, query LedgerQuery) ([]AccountRecord, error)
	CountRecords(ctx context.Context, query LedgerQuery) (int64, error)
	SaveBatch(ctx context.Context, records []AccountRecord) error
}

// SettingsStore loads and saves the persisted settings of an owner.
// Load returns DefaultSettings when nothing was saved yet.
type SettingsStore interface {
	Load(ctx context.Context, owner string) (Settings, error)
	Save(ctx context.Context, owner string, settings Settings) error
}

// RunRepository keeps track of scheduled runs
type RunRepository interface {
	Save(ctx context.Context, run *ReportRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*ReportRun, error)
	FindRecent(ctx context.Context, templateID uuid.UUID, since time.Time, limit int) ([]ReportRun, error)
	// FindDue returns pending runs whose retry time, if any, has passed
	FindDue(ctx context.Context, now time.Time, limit int) ([]ReportRun, error)
}

// AccountsOf returns the distinct account refs of all leaf items, in template order
func AccountsOf(items []LineItem) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		if it.IsCalculated {
			continue
		}
		for _, a := range it.AccountRefs {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
