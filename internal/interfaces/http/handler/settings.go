package handler

import (
	"context"
	"net/http"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SettingsManager reads and writes per-owner settings
type SettingsManager interface {
	Get(ctx context.Context, owner string) (dre.Settings, error)
	Update(ctx context.Context, owner string, req dreapp.SettingsRequest) (dre.Settings, error)
}

// SettingsHandler handles goal and cost center category settings
type SettingsHandler struct {
	BaseHandler
	settings SettingsManager
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settings SettingsManager) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) owner(c *gin.Context) (string, bool) {
	var req dto.OwnerRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid owner")
		return "", false
	}
	return req.Owner, true
}

// Get returns the owner's settings, or the defaults when none are stored
// GET /api/v1/dre/settings/:owner
func (h *SettingsHandler) Get(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	settings, err := h.settings.Get(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// Update replaces the owner's settings
// PUT /api/v1/dre/settings/:owner
func (h *SettingsHandler) Update(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req dreapp.SettingsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	settings, err := h.settings.Update(c.Request.Context(), owner, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}
