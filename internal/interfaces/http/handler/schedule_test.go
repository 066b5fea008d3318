package handler

import (
	"net/http"
	"testing"
	"time"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/erp/dre/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newScheduleRouter(h *ScheduleHandler) *gin.Engine {
	return newTestRouter(func(r *gin.Engine) {
		r.POST("/schedules", h.Submit)
		r.GET("/schedules/:id", h.Get)
		r.GET("/templates/:id/runs", h.Recent)
	})
}

func TestScheduleHandler_Submit(t *testing.T) {
	templateID := uuid.New()
	runID := uuid.New()

	t.Run("accepted", func(t *testing.T) {
		m := new(MockRunScheduler)
		m.On("Submit", mock.Anything, mock.MatchedBy(func(req dreapp.ScheduleRunRequest) bool {
			return req.TemplateID == templateID && req.RequestedBy == "finance"
		})).Return(&dreapp.RunResponse{ID: runID, TemplateID: templateID, Status: "PENDING"}, nil)

		w := doJSON(newScheduleRouter(NewScheduleHandler(m)), http.MethodPost, "/schedules", map[string]any{
			"template_id":   templateID,
			"configuration": januaryConfig,
		})
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "PENDING", decode(t, w).Data.(map[string]any)["status"])
	})

	t.Run("duplicate run", func(t *testing.T) {
		m := new(MockRunScheduler)
		m.On("Submit", mock.Anything, mock.Anything).Return(nil, scheduler.ErrAlreadyQueued)

		w := doJSON(newScheduleRouter(NewScheduleHandler(m)), http.MethodPost, "/schedules", map[string]any{
			"template_id":   templateID,
			"configuration": januaryConfig,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestScheduleHandler_Get(t *testing.T) {
	m := new(MockRunScheduler)
	id := uuid.New()
	m.On("Get", mock.Anything, id).Return(nil, shared.ErrNotFound)

	w := doJSON(newScheduleRouter(NewScheduleHandler(m)), http.MethodGet, "/schedules/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleHandler_Recent(t *testing.T) {
	templateID := uuid.New()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	t.Run("defaults to the last week", func(t *testing.T) {
		m := new(MockRunScheduler)
		m.On("Recent", mock.Anything, templateID, now.AddDate(0, 0, -7), 0).
			Return([]dreapp.RunResponse{{TemplateID: templateID}}, nil)

		h := NewScheduleHandler(m)
		h.now = func() time.Time { return now }
		w := doJSON(newScheduleRouter(h), http.MethodGet, "/templates/"+templateID.String()+"/runs", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w).Data, 1)
	})

	t.Run("explicit since and limit", func(t *testing.T) {
		since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		m := new(MockRunScheduler)
		m.On("Recent", mock.Anything, templateID, mock.MatchedBy(func(t time.Time) bool { return t.Equal(since) }), 5).
			Return([]dreapp.RunResponse{}, nil)

		w := doJSON(newScheduleRouter(NewScheduleHandler(m)), http.MethodGet,
			"/templates/"+templateID.String()+"/runs?since=2026-01-01T00:00:00Z&limit=5", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		m.AssertExpectations(t)
	})
}
