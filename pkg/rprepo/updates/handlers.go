package updates

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/access"
	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/messaging"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/pagination"
)

// Handler handles the activity feed
type Handler struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

// NewHandler creates a new updates handler
func NewHandler(db *gorm.DB, publisher messaging.Publisher) *Handler {
	if publisher == nil {
		publisher = messaging.Nop{}
	}
	return &Handler{db: db, publisher: publisher}
}

// RegisterRoutes registers routes under /updates
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw *auth.Middleware) {
	rg.GET("", h.List)
	rg.POST("", mw.RequireUser(), h.Create)
	rg.DELETE("/:id", mw.RequireUser(), h.Delete)
}

// CreateUpdateRequest represents a new feed entry
type CreateUpdateRequest struct {
	Content   string `json:"content" binding:"required,notblank,max=2000"`
	ProjectID *uint  `json:"projectId" binding:"omitempty,min=1"`
}

// UpdateResponse represents a feed entry in API responses
type UpdateResponse struct {
	ID          uint      `json:"id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	ProjectID   *uint     `json:"projectId"`
	ProjectName *string   `json:"projectName"`
	User        Author    `json:"user"`
}

// Author is the public part of an update's user
type Author struct {
	ID        uint    `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func updateToResponse(u models.Update) UpdateResponse {
	resp := UpdateResponse{
		ID:        u.ID,
		Content:   u.Content,
		CreatedAt: u.CreatedAt,
		ProjectID: u.ProjectID,
		User:      Author{ID: u.User.ID, Name: u.User.Name, AvatarURL: u.User.AvatarURL},
	}
	if u.Project != nil {
		name := u.Project.Name
		resp.ProjectName = &name
	}
	return resp
}

func optionalID(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, api.ValidationError("invalid %s", name)
	}
	return uint(n), nil
}

// List returns the feed, newest first. Updates by banned users are hidden.
// @Summary List updates
// @Description Get the update feed, newest first
// @Tags updates
// @Produce json
// @Param start query integer false "Offset of the first row"
// @Param limit query integer false "Page size, at most 1000"
// @Param projectId query integer false "Filter by project"
// @Param userId query integer false "Filter by author"
// @Success 200 {object} api.Response{data=pagination.Page[UpdateResponse]}
// @Failure 400 {object} api.Response "Invalid query"
// @Router /updates [get]
func (h *Handler) List(c *gin.Context) {
	params, err := pagination.ParseParams(c.Query("start"), c.Query("limit"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	projectID, err := optionalID(c, "projectId")
	if err != nil {
		api.Fail(c, err)
		return
	}
	userID, err := optionalID(c, "userId")
	if err != nil {
		api.Fail(c, err)
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Update{}).
		Preload("User").
		Preload("Project").
		Where("updates.user_id NOT IN (?)",
			h.db.Model(&models.User{}).Select("id").Where("role = ?", models.RoleBanned))
	if projectID != 0 {
		q = q.Where("updates.project_id = ?", projectID)
	}
	if userID != 0 {
		q = q.Where("updates.user_id = ?", userID)
	}
	q = q.Order("updates.created_at DESC").Order("updates.id DESC")

	page, err := pagination.Fetch[models.Update](q, params)
	if err != nil {
		api.Fail(c, err)
		return
	}

	data := make([]UpdateResponse, len(page.Data))
	for i, u := range page.Data {
		data[i] = updateToResponse(u)
	}
	api.OK(c, pagination.Page[UpdateResponse]{Data: data, HasNext: page.HasNext, NextCursor: page.NextCursor})
}

// Create posts an update. Attaching it to a project requires ownership.
// @Summary Post an update
// @Description Post an update, optionally attached to an owned project
// @Tags updates
// @Accept json
// @Produce json
// @Param request body CreateUpdateRequest true "Update text"
// @Success 201 {object} api.Response{data=UpdateResponse}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Not an owner"
// @Security BearerAuth
// @Router /updates [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req CreateUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.BindError(err))
		return
	}

	ctx := c.Request.Context()
	update := models.Update{UserID: user.ID, Content: strings.TrimSpace(req.Content), User: *user}

	if req.ProjectID != nil {
		project, err := access.FindProject(ctx, h.db, *req.ProjectID)
		if err != nil {
			api.Fail(c, err)
			return
		}
		if err := access.RequireManager(ctx, h.db, user, project.ID); err != nil {
			api.Fail(c, err)
			return
		}
		update.ProjectID = &project.ID
		update.Project = project
	}

	if err := h.db.WithContext(ctx).Omit("User", "Project").Create(&update).Error; err != nil {
		api.Fail(c, api.QueryError("create update", err))
		return
	}

	resp := updateToResponse(update)
	event := messaging.UpdateCreated{
		ID:        update.ID,
		UserID:    user.ID,
		UserName:  user.Name,
		ProjectID: update.ProjectID,
		Content:   update.Content,
		CreatedAt: update.CreatedAt,
	}
	if resp.ProjectName != nil {
		event.ProjectName = *resp.ProjectName
	}
	if err := h.publisher.Publish(ctx, messaging.SubjectUpdateCreated, event); err != nil {
		logger.FromContext(c).Warn("publish update event failed", zap.Uint("update_id", update.ID), zap.Error(err))
	}

	api.Created(c, resp)
}

// Delete removes an update. Its author or an admin only.
// @Summary Delete an update
// @Description Delete an update. Its author or an admin only
// @Tags updates
// @Produce json
// @Param id path integer true "Update ID"
// @Success 200 {object} api.Response
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Forbidden"
// @Failure 404 {object} api.Response "Update not found"
// @Security BearerAuth
// @Router /updates/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var update models.Update
	if err := db.First(&update, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(c, api.NotFoundError("update"))
			return
		}
		api.Fail(c, api.QueryError("find update", err))
		return
	}

	if update.UserID != user.ID && !user.IsAdmin() {
		api.Fail(c, api.ForbiddenError("only the author or an admin can delete this update"))
		return
	}

	if err := db.Delete(&update).Error; err != nil {
		api.Fail(c, api.QueryError("delete update", err))
		return
	}

	logger.FromContext(c).Info("update deleted", zap.Uint("update_id", id), zap.Uint("by", user.ID))
	api.OK(c, gin.H{"id": id})
}
