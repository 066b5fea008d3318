package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/erp/dre/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRunRepository implements dre.RunRepository using GORM
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// Save inserts the run or overwrites the stored state
func (r *GormRunRepository) Save(ctx context.Context, run *dre.ReportRun) error {
	model, err := models.ReportRunModelFromDomain(run)
	if err != nil {
		return err
	}
	model.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
}

// FindByID finds a run by its ID
func (r *GormRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*dre.ReportRun, error) {
	var model models.ReportRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindRecent returns the newest runs of a template created at or after since
func (r *GormRunRepository) FindRecent(ctx context.Context, templateID uuid.UUID, since time.Time, limit int) ([]dre.ReportRun, error) {
	q := r.db.WithContext(ctx).
		Where("template_id = ? AND created_at >= ?", templateID, since.UTC()).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runModels []models.ReportRunModel
	if err := q.Find(&runModels).Error; err != nil {
		return nil, err
	}
	return toDomainRuns(runModels)
}

// FindDue returns pending runs whose retry time, if any, has passed, oldest first
func (r *GormRunRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]dre.ReportRun, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", string(dre.RunStatusPending)).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runModels []models.ReportRunModel
	if err := q.Find(&runModels).Error; err != nil {
		return nil, err
	}
	return toDomainRuns(runModels)
}

func toDomainRuns(runModels []models.ReportRunModel) ([]dre.ReportRun, error) {
	runs := make([]dre.ReportRun, 0, len(runModels))
	for i := range runModels {
		run, err := runModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

var _ dre.RunRepository = (*GormRunRepository)(nil)
