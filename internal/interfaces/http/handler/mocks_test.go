package handler

import (
	"context"
	"io"
	"time"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockReportGenerator struct {
	mock.Mock
}

func (m *MockReportGenerator) Generate(ctx context.Context, in dreapp.GenerateReportInput) (*dreapp.ReportResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.ReportResponse), args.Error(1)
}

func (m *MockReportGenerator) Preview(ctx context.Context, in dreapp.PreviewReportInput) (*dreapp.ReportResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.ReportResponse), args.Error(1)
}

func (m *MockReportGenerator) GenerateBatch(ctx context.Context, in dreapp.BatchInput) (*dreapp.BatchResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.BatchResponse), args.Error(1)
}

type MockTemplateManager struct {
	mock.Mock
}

func (m *MockTemplateManager) Create(ctx context.Context, req dreapp.CreateTemplateRequest) (*dreapp.TemplateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.TemplateResponse), args.Error(1)
}

func (m *MockTemplateManager) Update(ctx context.Context, id uuid.UUID, req dreapp.UpdateTemplateRequest) (*dreapp.TemplateResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.TemplateResponse), args.Error(1)
}

func (m *MockTemplateManager) Get(ctx context.Context, id uuid.UUID) (*dreapp.TemplateResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.TemplateResponse), args.Error(1)
}

func (m *MockTemplateManager) List(ctx context.Context, filter dreapp.TemplateListFilter) (shared.Paginated[dreapp.TemplateListResponse], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[dreapp.TemplateListResponse]), args.Error(1)
}

func (m *MockTemplateManager) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTemplateManager) Validate(ctx context.Context, req dreapp.ValidateTemplateRequest) (*dreapp.ValidationResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.ValidationResponse), args.Error(1)
}

type MockSettingsManager struct {
	mock.Mock
}

func (m *MockSettingsManager) Get(ctx context.Context, owner string) (dre.Settings, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(dre.Settings), args.Error(1)
}

func (m *MockSettingsManager) Update(ctx context.Context, owner string, req dreapp.SettingsRequest) (dre.Settings, error) {
	args := m.Called(ctx, owner, req)
	return args.Get(0).(dre.Settings), args.Error(1)
}

type MockLedgerImporter struct {
	mock.Mock
	body string
}

func (m *MockLedgerImporter) Import(ctx context.Context, r io.Reader) (*dreapp.ImportResponse, error) {
	raw, _ := io.ReadAll(r)
	m.body = string(raw)
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.ImportResponse), args.Error(1)
}

type MockRunScheduler struct {
	mock.Mock
}

func (m *MockRunScheduler) Submit(ctx context.Context, req dreapp.ScheduleRunRequest) (*dreapp.RunResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.RunResponse), args.Error(1)
}

func (m *MockRunScheduler) Get(ctx context.Context, id uuid.UUID) (*dreapp.RunResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dreapp.RunResponse), args.Error(1)
}

func (m *MockRunScheduler) Recent(ctx context.Context, templateID uuid.UUID, since time.Time, limit int) ([]dreapp.RunResponse, error) {
	args := m.Called(ctx, templateID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dreapp.RunResponse), args.Error(1)
}
