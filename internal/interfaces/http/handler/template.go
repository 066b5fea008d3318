package handler

import (
	"context"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/erp/dre/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TemplateManager stores and validates templates
type TemplateManager interface {
	Create(ctx context.Context, req dreapp.CreateTemplateRequest) (*dreapp.TemplateResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dreapp.UpdateTemplateRequest) (*dreapp.TemplateResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dreapp.TemplateResponse, error)
	List(ctx context.Context, filter dreapp.TemplateListFilter) (shared.Paginated[dreapp.TemplateListResponse], error)
	Delete(ctx context.Context, id uuid.UUID) error
	Validate(ctx context.Context, req dreapp.ValidateTemplateRequest) (*dreapp.ValidationResponse, error)
}

// TemplateHandler handles the template library endpoints
type TemplateHandler struct {
	BaseHandler
	templates TemplateManager
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templates TemplateManager) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// Create stores a new template
// POST /api/v1/dre/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req dreapp.CreateTemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Owner == "" {
		req.Owner = middleware.GetOwner(c)
	}

	resp, err := h.templates.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Update applies a partial update
// PUT /api/v1/dre/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dreapp.UpdateTemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.templates.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Get returns one template
// GET /api/v1/dre/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	resp, err := h.templates.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List pages through the template library. Without an explicit filter the
// caller sees its own templates plus shared and public ones.
// GET /api/v1/dre/templates
func (h *TemplateHandler) List(c *gin.Context) {
	var filter dreapp.TemplateListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	if filter.Owner == "" && filter.Visibility == "" && filter.AccessibleBy == "" {
		filter.AccessibleBy = middleware.GetOwner(c)
	}

	page, err := h.templates.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Delete removes a template
// DELETE /api/v1/dre/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Validate checks line items without storing them
// POST /api/v1/dre/templates/validate
func (h *TemplateHandler) Validate(c *gin.Context) {
	var req dreapp.ValidateTemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.templates.Validate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
