package dre

import (
	"context"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mocks
// =============================================================================

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*dre.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dre.Template), args.Error(1)
}

func (m *MockTemplateRepository) FindByName(ctx context.Context, name string) (*dre.Template, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dre.Template), args.Error(1)
}

func (m *MockTemplateRepository) FindAll(ctx context.Context, filter shared.Filter) ([]dre.Template, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dre.Template), args.Error(1)
}

func (m *MockTemplateRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTemplateRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockTemplateRepository) Save(ctx context.Context, template *dre.Template) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) FindRecords(ctx context.Context, query dre.LedgerQuery) ([]dre.AccountRecord, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dre.AccountRecord), args.Error(1)
}

func (m *MockLedgerRepository) CountRecords(ctx context.Context, query dre.LedgerQuery) (int64, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) SaveBatch(ctx context.Context, records []dre.AccountRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

type MockSettingsStore struct {
	mock.Mock
}

func (m *MockSettingsStore) Load(ctx context.Context, owner string) (dre.Settings, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(dre.Settings), args.Error(1)
}

func (m *MockSettingsStore) Save(ctx context.Context, owner string, settings dre.Settings) error {
	args := m.Called(ctx, owner, settings)
	return args.Error(0)
}

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, run *dre.ReportRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*dre.ReportRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dre.ReportRun), args.Error(1)
}

func (m *MockRunRepository) FindRecent(ctx context.Context, templateID uuid.UUID, since time.Time, limit int) ([]dre.ReportRun, error) {
	args := m.Called(ctx, templateID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dre.ReportRun), args.Error(1)
}

func (m *MockRunRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]dre.ReportRun, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dre.ReportRun), args.Error(1)
}

type MockRunSubmitter struct {
	mock.Mock
}

func (m *MockRunSubmitter) Submit(run *dre.ReportRun) error {
	args := m.Called(run)
	return args.Error(0)
}
