package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/erp/dre/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTemplateRepository implements dre.TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

// FindByID finds a template by its ID
func (r *GormTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*dre.Template, error) {
	var model models.TemplateModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByName finds a template by its exact name
func (r *GormTemplateRepository) FindByName(ctx context.Context, name string) (*dre.Template, error) {
	var model models.TemplateModel
	if err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAll finds templates matching the filter
func (r *GormTemplateRepository) FindAll(ctx context.Context, filter shared.Filter) ([]dre.Template, error) {
	var templateModels []models.TemplateModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.TemplateModel{}), filter)
	if err := query.Find(&templateModels).Error; err != nil {
		return nil, err
	}

	templates := make([]dre.Template, 0, len(templateModels))
	for i := range templateModels {
		t, err := templateModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

// Count counts templates matching the filter
func (r *GormTemplateRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.TemplateModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByName checks if a template with the given name exists
func (r *GormTemplateRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TemplateModel{}).
		Where("name = ?", strings.TrimSpace(name)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates the template or updates it with an optimistic version check.
// The domain bumps Version on every mutation, so the stored row must still
// carry Version-1.
func (r *GormTemplateRepository) Save(ctx context.Context, template *dre.Template) error {
	model, err := models.TemplateModelFromDomain(template)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.TemplateModel{}).
			Where("id = ? AND version = ?", template.ID, template.Version-1).
			Updates(map[string]any{
				"name":        model.Name,
				"description": model.Description,
				"owner":       model.Owner,
				"visibility":  model.Visibility,
				"tags":        model.Tags,
				"items":       model.Items,
				"version":     model.Version,
				"updated_at":  model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		var existing int64
		if err := tx.Model(&models.TemplateModel{}).Where("id = ?", template.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return shared.ErrConcurrencyConflict
		}
		return tx.Create(model).Error
	})
}

// Delete deletes a template
func (r *GormTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.TemplateModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormTemplateRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, TemplateSortFields, "name")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	if filter.OrderBy == "" && filter.OrderDir == "" {
		sortOrder = "ASC"
	}
	return query.Order(sortField + " " + sortOrder).Order("id ASC")
}

func (r *GormTemplateRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "owner":
			query = query.Where("owner = ?", value)
		case "visibility":
			query = query.Where("visibility = ?", value)
		case "tag":
			if tag, ok := value.(string); ok && tag != "" {
				query = query.Where("LOWER(CAST(tags AS TEXT)) LIKE ?", `%"`+strings.ToLower(tag)+`"%`)
			}
		case "accessible_by":
			query = query.Where("owner = ? OR visibility IN ?", value,
				[]string{string(dre.VisibilityShared), string(dre.VisibilityPublic)})
		}
	}
	return query
}

var _ dre.TemplateRepository = (*GormTemplateRepository)(nil)
