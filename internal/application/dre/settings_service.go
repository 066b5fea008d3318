package dre

import (
	"context"
	"strings"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"go.uber.org/zap"
)

// SettingsService reads and replaces the goals and cost center categories
// of an owner
type SettingsService struct {
	store  dre.SettingsStore
	logger *zap.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(store dre.SettingsStore, log *zap.Logger) *SettingsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsService{store: store, logger: log.Named("settings")}
}

// Get returns the settings of owner, or the defaults when none were saved
func (s *SettingsService) Get(ctx context.Context, owner string) (dre.Settings, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return dre.Settings{}, shared.NewDomainError("INVALID_INPUT", "Owner is required")
	}
	return s.store.Load(ctx, owner)
}

// Update validates and replaces the settings of owner
func (s *SettingsService) Update(ctx context.Context, owner string, req SettingsRequest) (dre.Settings, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return dre.Settings{}, shared.NewDomainError("INVALID_INPUT", "Owner is required")
	}

	settings := dre.DefaultSettings()
	if req.Goals != nil {
		settings.Goals = req.Goals
	}
	if req.CostCenterCategories != nil {
		settings.CostCenterCategories = req.CostCenterCategories
	}
	if err := settings.Validate(); err != nil {
		return dre.Settings{}, err
	}
	if err := s.store.Save(ctx, owner, settings); err != nil {
		return dre.Settings{}, err
	}

	s.logger.Info("Settings updated",
		zap.String("owner", owner),
		zap.Int("goals", len(settings.Goals)),
		zap.Int("categories", len(settings.CostCenterCategories)),
	)
	return settings, nil
}
