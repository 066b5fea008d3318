package handler

import (
	"context"
	"time"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RunScheduler queues report runs and reads their state
type RunScheduler interface {
	Submit(ctx context.Context, req dreapp.ScheduleRunRequest) (*dreapp.RunResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dreapp.RunResponse, error)
	Recent(ctx context.Context, templateID uuid.UUID, since time.Time, limit int) ([]dreapp.RunResponse, error)
}

// ScheduleHandler handles asynchronous report runs
type ScheduleHandler struct {
	BaseHandler
	runs RunScheduler
	now  func() time.Time
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(runs RunScheduler) *ScheduleHandler {
	return &ScheduleHandler{runs: runs, now: time.Now}
}

// RecentRunsQuery filters the run history of a template
type RecentRunsQuery struct {
	Since time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit int       `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Submit queues a run
// POST /api/v1/dre/schedules
func (h *ScheduleHandler) Submit(c *gin.Context) {
	var req dreapp.ScheduleRunRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = middleware.GetOwner(c)
	}

	resp, err := h.runs.Submit(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, resp)
}

// Get returns the state of a run
// GET /api/v1/dre/schedules/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	resp, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Recent lists the latest runs of a template, by default those of the last
// seven days
// GET /api/v1/dre/templates/:id/runs
func (h *ScheduleHandler) Recent(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var q RecentRunsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Since.IsZero() {
		q.Since = h.now().AddDate(0, 0, -7)
	}

	runs, err := h.runs.Recent(c.Request.Context(), id, q.Since, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, runs)
}
