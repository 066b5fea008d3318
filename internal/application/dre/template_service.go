package dre

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateService manages the template library
type TemplateService struct {
	templates dre.TemplateRepository
	logger    *zap.Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(templates dre.TemplateRepository, log *zap.Logger) *TemplateService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TemplateService{templates: templates, logger: log.Named("template")}
}

// Create validates and stores a new template
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateRequest) (*TemplateResponse, error) {
	exists, err := s.templates.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Template with this name already exists")
	}

	tpl, err := dre.NewTemplate(req.Name, req.Owner, ToLineItems(req.Items))
	if err != nil {
		return nil, err
	}
	tpl.Description = strings.TrimSpace(req.Description)
	tpl.Tags = req.Tags
	if req.Visibility != "" {
		tpl.Visibility = dre.Visibility(req.Visibility)
		if !tpl.Visibility.IsValid() {
			return nil, shared.NewDomainError("INVALID_VISIBILITY", "Unknown template visibility")
		}
	}

	if _, _, err := checkTemplate(*tpl); err != nil {
		return nil, err
	}
	if err := s.templates.Save(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("Template created",
		zap.String("template_id", tpl.ID.String()),
		zap.String("name", tpl.Name),
		zap.Int("items", len(tpl.Items)),
	)
	return ToTemplateResponse(tpl), nil
}

// Update applies a partial update. The result is validated before saving.
func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, req UpdateTemplateRequest) (*TemplateResponse, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != tpl.Version {
		return nil, shared.ErrConcurrencyConflict
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != tpl.Name {
		other, err := s.templates.FindByName(ctx, *req.Name)
		switch {
		case err == nil && other.ID != tpl.ID:
			return nil, shared.NewDomainError("ALREADY_EXISTS", "Template with this name already exists")
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
		if err := tpl.Rename(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil || req.Tags != nil {
		description := tpl.Description
		if req.Description != nil {
			description = *req.Description
		}
		tags := tpl.Tags
		if req.Tags != nil {
			tags = req.Tags
		}
		tpl.Describe(description, tags)
	}
	if req.Visibility != nil {
		if err := tpl.SetVisibility(dre.Visibility(*req.Visibility)); err != nil {
			return nil, err
		}
	}
	if req.Items != nil {
		tpl.ReplaceItems(ToLineItems(req.Items))
	}

	if _, _, err := checkTemplate(*tpl); err != nil {
		return nil, err
	}
	if err := s.templates.Save(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("Template updated",
		zap.String("template_id", tpl.ID.String()),
		zap.Int("version", tpl.Version),
	)
	return ToTemplateResponse(tpl), nil
}

// Get retrieves a template by ID
func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (*TemplateResponse, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToTemplateResponse(tpl), nil
}

// List returns a page of the template library
func (s *TemplateService) List(ctx context.Context, filter TemplateListFilter) (shared.Paginated[TemplateListResponse], error) {
	domainFilter := shared.DefaultFilter()
	domainFilter.Search = filter.Search
	domainFilter.OrderBy = filter.SortBy
	domainFilter.OrderDir = filter.SortOrder
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.Owner != "" {
		domainFilter.Filters["owner"] = filter.Owner
	}
	if filter.Visibility != "" {
		domainFilter.Filters["visibility"] = filter.Visibility
	}
	if filter.Tag != "" {
		domainFilter.Filters["tag"] = filter.Tag
	}
	if filter.AccessibleBy != "" {
		domainFilter.Filters["accessible_by"] = filter.AccessibleBy
	}

	templates, err := s.templates.FindAll(ctx, domainFilter)
	if err != nil {
		return shared.Paginated[TemplateListResponse]{}, err
	}
	total, err := s.templates.Count(ctx, domainFilter)
	if err != nil {
		return shared.Paginated[TemplateListResponse]{}, err
	}
	return shared.NewPaginated(ToTemplateListResponses(templates), total, domainFilter.Page, domainFilter.PageSize), nil
}

// Delete removes a template
func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Template deleted", zap.String("template_id", id.String()))
	return nil
}

// Validate checks rows without saving and returns their evaluation order
func (s *TemplateService) Validate(_ context.Context, req ValidateTemplateRequest) (*ValidationResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Untitled"
	}
	tpl := dre.Template{Name: name, Items: ToLineItems(req.Items)}

	vt, order, err := checkTemplate(tpl)
	if err != nil {
		return nil, err
	}
	accounts := dre.AccountsOf(vt.Items())
	if accounts == nil {
		accounts = []string{}
	}
	return &ValidationResponse{
		Valid:           true,
		ItemCount:       vt.Len(),
		EvaluationOrder: order,
		Accounts:        accounts,
	}, nil
}

// checkTemplate runs the structural checks and the dependency resolution,
// so cyclic templates are rejected before they are stored
func checkTemplate(t dre.Template) (*dre.ValidTemplate, dre.EvaluationOrder, error) {
	vt, err := dre.Validate(t)
	if err != nil {
		return nil, nil, err
	}
	order, err := dre.Resolve(vt)
	if err != nil {
		return nil, nil, err
	}
	return vt, order, nil
}
