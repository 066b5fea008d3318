package handler

import (
	"context"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ReportGenerator produces income statements
type ReportGenerator interface {
	Generate(ctx context.Context, in dreapp.GenerateReportInput) (*dreapp.ReportResponse, error)
	Preview(ctx context.Context, in dreapp.PreviewReportInput) (*dreapp.ReportResponse, error)
	GenerateBatch(ctx context.Context, in dreapp.BatchInput) (*dreapp.BatchResponse, error)
}

// ReportHandler handles report generation endpoints
type ReportHandler struct {
	BaseHandler
	reports ReportGenerator
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports ReportGenerator) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// requester fills owner and generatedBy from the X-Owner header when the
// body leaves them empty.
func requester(c *gin.Context, owner, generatedBy *string) {
	if *owner == "" {
		*owner = middleware.GetOwner(c)
	}
	if *generatedBy == "" {
		*generatedBy = *owner
	}
}

// Generate builds a report from a stored template
// POST /api/v1/dre/reports
func (h *ReportHandler) Generate(c *gin.Context) {
	var in dreapp.GenerateReportInput
	if !h.BindJSON(c, &in) {
		return
	}
	requester(c, &in.Owner, &in.GeneratedBy)

	resp, err := h.reports.Generate(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Preview evaluates an unsaved template
// POST /api/v1/dre/reports/preview
func (h *ReportHandler) Preview(c *gin.Context) {
	var in dreapp.PreviewReportInput
	if !h.BindJSON(c, &in) {
		return
	}
	requester(c, &in.Owner, &in.GeneratedBy)

	resp, err := h.reports.Preview(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GenerateBatch builds one report per unit group
// POST /api/v1/dre/reports/batch
func (h *ReportHandler) GenerateBatch(c *gin.Context) {
	var in dreapp.BatchInput
	if !h.BindJSON(c, &in) {
		return
	}
	requester(c, &in.Owner, &in.GeneratedBy)

	resp, err := h.reports.GenerateBatch(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
