package projects

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/access"
	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

// Handler handles project requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new projects handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers project routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw *auth.Middleware) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/links", h.Links)
	rg.POST("", mw.RequireUser(), h.Create)
	rg.PATCH("/:id", mw.RequireUser(), h.Update)
	rg.DELETE("/:id", mw.RequireUser(), auth.RequireAdmin(), h.Delete)
}

// CreateProjectRequest represents the request to create a project
type CreateProjectRequest struct {
	Name             string               `json:"name" binding:"required,notblank,max=120"`
	ShortDescription string               `json:"shortDescription" binding:"max=300"`
	Description      string               `json:"description" binding:"max=20000"`
	Setting          string               `json:"setting" binding:"max=120"`
	Tags             []string             `json:"tags" binding:"max=30,dive,max=40"`
	Status           models.ProjectStatus `json:"status"`
	ImageURL         string               `json:"imageUrl" binding:"omitempty,url"`
	DiscordURL       string               `json:"discordUrl" binding:"omitempty,url"`
}

// UpdateProjectRequest represents a partial project update.
// Tags, when present, replace the whole tag set.
type UpdateProjectRequest struct {
	Name             *string               `json:"name" binding:"omitempty,notblank,max=120"`
	ShortDescription *string               `json:"shortDescription" binding:"omitempty,max=300"`
	Description      *string               `json:"description" binding:"omitempty,max=20000"`
	Setting          *string               `json:"setting" binding:"omitempty,max=120"`
	Tags             *[]string             `json:"tags" binding:"omitempty,max=30,dive,max=40"`
	Status           *models.ProjectStatus `json:"status"`
	ImageURL         *string               `json:"imageUrl" binding:"omitempty,url"`
	DiscordURL       *string               `json:"discordUrl" binding:"omitempty,url"`
}

// List returns a page of projects
// @Summary List projects
// @Description Get a page of projects
// @Tags projects
// @Produce json
// @Param start query integer false "Offset of the first row"
// @Param limit query integer false "Page size, at most 1000"
// @Param sortBy query string false "Sort field"
// @Param asc query boolean false "Ascending order"
// @Param name query string false "Fuzzy name match"
// @Param tags query string false "Pipe-delimited tags"
// @Param active query boolean false "Only active projects"
// @Success 200 {object} api.Response{data=pagination.Page[ProjectResponse]}
// @Failure 400 {object} api.Response "Invalid query"
// @Router /projects [get]
func (h *Handler) List(c *gin.Context) {
	params, err := ParseListParams(c)
	if err != nil {
		api.Fail(c, err)
		return
	}

	page, err := List(c.Request.Context(), h.db, params)
	if err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, pageToResponse(page))
}

// Get returns a project with its tags, owners, links and schedule
// @Summary Get a project
// @Description Get a project with its tags, owners, links and schedule
// @Tags projects
// @Produce json
// @Param id path integer true "Project ID"
// @Success 200 {object} api.Response{data=ProjectResponse}
// @Failure 400 {object} api.Response "Invalid project ID"
// @Failure 404 {object} api.Response "Project not found"
// @Router /projects/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	project, err := h.load(c, id)
	if err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, projectToResponse(*project))
}

func (h *Handler) load(c *gin.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := withAssociations(h.db.WithContext(c.Request.Context())).
		Preload("Schedule").
		Preload("Schedule.Runtimes", func(db *gorm.DB) *gorm.DB {
			return db.Order("runtimes.start ASC")
		}).
		First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, api.NotFoundError("project")
		}
		return nil, api.QueryError("load project", err)
	}
	return &project, nil
}

// Create adds a project owned by the caller
// @Summary Create a project
// @Description Create a project owned by the caller
// @Tags projects
// @Accept json
// @Produce json
// @Param request body CreateProjectRequest true "Project details"
// @Success 201 {object} api.Response{data=ProjectResponse}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Authentication required"
// @Security BearerAuth
// @Router /projects [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.BindError(err))
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusUpcoming
	}
	if !status.Valid() {
		api.Fail(c, api.ValidationError("invalid status %q", status))
		return
	}

	project := models.Project{
		Name:             strings.TrimSpace(req.Name),
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		Setting:          req.Setting,
		Status:           status,
		ImageURL:         req.ImageURL,
		DiscordURL:       req.DiscordURL,
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags", "Owners", "OtherLinks", "Schedule").Create(&project).Error; err != nil {
			return err
		}
		if err := replaceTags(tx, project.ID, req.Tags); err != nil {
			return err
		}
		return tx.Create(&models.Ownership{ProjectID: project.ID, UserID: user.ID, Active: true}).Error
	})
	if err != nil {
		api.Fail(c, api.QueryError("create project", err))
		return
	}

	logger.FromContext(c).Info("project created",
		zap.Uint("project_id", project.ID), zap.Uint("user_id", user.ID))

	created, err := h.load(c, project.ID)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Created(c, projectToResponse(*created))
}

// Update edits project metadata. Owners and admins only.
// @Summary Update a project
// @Description Edit project metadata. Owners and admins only
// @Tags projects
// @Accept json
// @Produce json
// @Param id path integer true "Project ID"
// @Param request body UpdateProjectRequest true "Fields to change"
// @Success 200 {object} api.Response{data=ProjectResponse}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Not an owner"
// @Failure 404 {object} api.Response "Project not found"
// @Security BearerAuth
// @Router /projects/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.BindError(err))
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

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.ShortDescription != nil {
		updates["short_description"] = *req.ShortDescription
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Setting != nil {
		updates["setting"] = *req.Setting
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			api.Fail(c, api.ValidationError("invalid status %q", *req.Status))
			return
		}
		updates["status"] = *req.Status
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.DiscordURL != nil {
		updates["discord_url"] = *req.DiscordURL
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Project{ID: id}).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Tags != nil {
			if err := replaceTags(tx, id, *req.Tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		api.Fail(c, api.QueryError("update project", err))
		return
	}

	project, err := h.load(c, id)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, projectToResponse(*project))
}

// Delete removes a project and every row that belongs to it.
// Updates posted on the project stay in the feed, detached.
// @Summary Delete a project
// @Description Delete a project and everything that belongs to it
// @Tags projects
// @Produce json
// @Param id path integer true "Project ID"
// @Success 200 {object} api.Response
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Admin required"
// @Failure 404 {object} api.Response "Project not found"
// @Security BearerAuth
// @Router /projects/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := access.FindProject(ctx, h.db, id); err != nil {
		api.Fail(c, err)
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := []interface{}{
			&models.ProjectTag{},
			&models.Ownership{},
			&models.RoleplayLink{},
			&models.Runtime{},
			&models.Schedule{},
		}
		for _, model := range owned {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Update{}).Where("project_id = ?", id).Update("project_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
	if err != nil {
		api.Fail(c, api.QueryError("delete project", err))
		return
	}

	logger.FromContext(c).Info("project deleted", zap.Uint("project_id", id))
	api.OK(c, gin.H{"id": id})
}

// Links returns the project's other links
// @Summary List project links
// @Description Get the project's other links
// @Tags projects
// @Produce json
// @Param id path integer true "Project ID"
// @Success 200 {object} api.Response{data=[]models.RoleplayLink}
// @Failure 400 {object} api.Response "Invalid project ID"
// @Failure 404 {object} api.Response "Project not found"
// @Router /projects/{id}/links [get]
func (h *Handler) Links(c *gin.Context) {
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := access.FindProject(ctx, h.db, id); err != nil {
		api.Fail(c, err)
		return
	}

	links := []models.RoleplayLink{}
	if err := h.db.WithContext(ctx).Where("project_id = ?", id).Order("id ASC").Find(&links).Error; err != nil {
		api.Fail(c, api.QueryError("list links", err))
		return
	}
	api.OK(c, links)
}

// replaceTags sets the project's tag set to tags
func replaceTags(tx *gorm.DB, projectID uint, tags []string) error {
	if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectTag{}).Error; err != nil {
		return err
	}
	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return nil
	}
	rows := make([]models.ProjectTag, len(tags))
	for i, t := range tags {
		rows[i] = models.ProjectTag{ProjectID: projectID, Tag: t}
	}
	return tx.Create(&rows).Error
}
