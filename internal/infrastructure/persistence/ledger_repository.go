package persistence

import (
	"context"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const ledgerInsertBatchSize = 500

// GormLedgerRepository implements dre.LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// FindRecords returns the entries inside the query period ordered by date.
// Inactive entries are returned too; the engine decides whether to count them.
func (r *GormLedgerRepository) FindRecords(ctx context.Context, query dre.LedgerQuery) ([]dre.AccountRecord, error) {
	var entries []models.LedgerEntryModel
	q := r.applyQuery(r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}), query).
		Order("entry_date ASC").Order("id ASC")
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}

	records := make([]dre.AccountRecord, len(entries))
	for i := range entries {
		records[i] = entries[i].ToDomain()
	}
	return records, nil
}

// CountRecords counts the entries a FindRecords call would return without a limit
func (r *GormLedgerRepository) CountRecords(ctx context.Context, query dre.LedgerQuery) (int64, error) {
	var count int64
	if err := r.applyQuery(r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}), query).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveBatch inserts the records in one transaction
func (r *GormLedgerRepository) SaveBatch(ctx context.Context, records []dre.AccountRecord) error {
	if len(records) == 0 {
		return nil
	}
	entries := make([]models.LedgerEntryModel, len(records))
	for i, rec := range records {
		entries[i] = models.LedgerEntryModelFromDomain(rec)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&entries, ledgerInsertBatchSize).Error
	})
}

func (r *GormLedgerRepository) applyQuery(q *gorm.DB, query dre.LedgerQuery) *gorm.DB {
	if !query.Period.Start.IsZero() {
		q = q.Where("entry_date >= ?", query.Period.Start.UTC())
	}
	if !query.Period.End.IsZero() {
		q = q.Where("entry_date < ?", query.Period.End.UTC())
	}
	if len(query.Units) > 0 {
		q = q.Where("unit_id IN ?", query.Units)
	}
	if len(query.CostCenters) > 0 {
		q = q.Where("cost_center_id IN ?", query.CostCenters)
	}
	if len(query.Accounts) > 0 {
		q = q.Where("account_id IN ?", query.Accounts)
	}
	return q
}

var _ dre.LedgerRepository = (*GormLedgerRepository)(nil)
