package schedules

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/access"
	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

// Handler handles project schedule requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new schedules handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers routes under /projects/:id/schedule
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw *auth.Middleware) {
	rg.GET("", h.Get)
	rg.PUT("", mw.RequireUser(), h.Put)
}

// ScheduleResponse is a project's schedule (nil when unset) and other links
type ScheduleResponse struct {
	Schedule   *models.Schedule      `json:"schedule"`
	OtherLinks []models.RoleplayLink `json:"otherLinks"`
}

// Get returns the project's schedule with runtimes
// @Summary Get a schedule
// @Description Get the project's schedule with runtimes
// @Tags schedules
// @Produce json
// @Param id path integer true "Project ID"
// @Success 200 {object} api.Response{data=ScheduleResponse}
// @Failure 400 {object} api.Response "Invalid project ID"
// @Failure 404 {object} api.Response "Project not found"
// @Router /projects/{id}/schedule [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}
	if _, err := access.FindProject(c.Request.Context(), h.db, id); err != nil {
		api.Fail(c, err)
		return
	}

	resp, err := h.load(c, id)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, resp)
}

// Put replaces the schedule, runtimes and other links. Owners and admins only.
// @Summary Replace a schedule
// @Description Replace the schedule, runtimes and other links. Owners and admins only
// @Tags schedules
// @Accept json
// @Produce json
// @Param id path integer true "Project ID"
// @Param request body Input true "Schedule"
// @Success 200 {object} api.Response{data=ScheduleResponse}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Not an owner"
// @Failure 404 {object} api.Response "Project not found"
// @Failure 409 {object} api.Response "Reconciliation error"
// @Security BearerAuth
// @Router /projects/{id}/schedule [put]
func (h *Handler) Put(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		api.Fail(c, api.BindError(err))
		return
	}
	if err := in.Validate(); err != nil {
		api.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := access.FindProject(ctx, h.db, id); err != nil {
		api.Fail(c, err)
		return
	}
	if err := access.RequireManager(ctx, h.db, user, id); err != nil {
		api.Fail(c, err)
		return
	}

	if _, err := Save(ctx, h.db, id, in); err != nil {
		if api.IsName(err, api.NameReconciliation) {
			logger.FromContext(c).Warn("schedule save conflicted", zap.Uint("project_id", id), zap.Error(err))
		}
		api.Fail(c, err)
		return
	}

	resp, err := h.load(c, id)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, resp)
}

func (h *Handler) load(c *gin.Context, projectID uint) (*ScheduleResponse, error) {
	db := h.db.WithContext(c.Request.Context())
	resp := &ScheduleResponse{OtherLinks: []models.RoleplayLink{}}

	var schedule models.Schedule
	err := db.Preload("Runtimes", func(db *gorm.DB) *gorm.DB {
		return db.Order("runtimes.start ASC")
	}).Where("project_id = ?", projectID).First(&schedule).Error
	switch {
	case err == nil:
		resp.Schedule = &schedule
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, api.QueryError("load schedule", err)
	}

	if err := db.Where("project_id = ?", projectID).Order("id ASC").Find(&resp.OtherLinks).Error; err != nil {
		return nil, api.QueryError("load links", err)
	}
	return resp, nil
}
