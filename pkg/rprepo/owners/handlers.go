package owners

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vrrprepo/rprepo/pkg/rprepo/access"
	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/mailer"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

// Handler handles project ownership requests
type Handler struct {
	db     *gorm.DB
	mailer mailer.Mailer
	admins []string
}

// NewHandler creates a new owners handler. admins receive request notifications.
func NewHandler(db *gorm.DB, m mailer.Mailer, admins []string) *Handler {
	if m == nil {
		m = mailer.Nop{}
	}
	return &Handler{db: db, mailer: m, admins: admins}
}

// RegisterRoutes registers routes under /projects/:id/owners
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw *auth.Middleware) {
	rg.GET("", mw.OptionalUser(), h.List)
	rg.POST("", mw.RequireUser(), h.Request)
	rg.PUT("/:userId", mw.RequireUser(), auth.RequireAdmin(), h.Approve)
	rg.DELETE("/:userId", mw.RequireUser(), h.Remove)
}

// List returns active owners. With pending=true, owners and admins also see
// pending requests.
// @Summary List project owners
// @Description Get active owners. Owners and admins may include pending requests
// @Tags owners
// @Produce json
// @Param id path integer true "Project ID"
// @Param pending query boolean false "Include pending requests"
// @Success 200 {object} api.Response{data=[]OwnerResponse}
// @Failure 400 {object} api.Response "Invalid project ID"
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 404 {object} api.Response "Project not found"
// @Router /projects/{id}/owners [get]
func (h *Handler) List(c *gin.Context) {
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}
	withPending, err := api.QueryBool(c, "pending", false)
	if err != nil {
		api.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := access.FindProject(ctx, h.db, id); err != nil {
		api.Fail(c, err)
		return
	}

	query := h.db.WithContext(ctx).Preload("User").Where("project_id = ?", id)
	if withPending {
		user, ok := auth.CurrentUser(c)
		if !ok {
			api.Fail(c, api.AuthorizationError("authentication required"))
			return
		}
		if err := access.RequireManager(ctx, h.db, user, id); err != nil {
			api.Fail(c, err)
			return
		}
	} else {
		query = query.Where("active = ?", true)
	}

	var rows []models.Ownership
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		api.Fail(c, api.QueryError("list owners", err))
		return
	}
	api.OK(c, ToResponses(rows))
}

// Request records a pending ownership request for the caller and notifies admins
// @Summary Request ownership
// @Description Record a pending ownership request and notify admins
// @Tags owners
// @Produce json
// @Param id path integer true "Project ID"
// @Success 201 {object} api.Response{data=OwnerResponse}
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 404 {object} api.Response "Project not found"
// @Failure 409 {object} api.Response "Ownership already requested"
// @Security BearerAuth
// @Router /projects/{id}/owners [post]
func (h *Handler) Request(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	project, err := access.FindProject(ctx, h.db, id)
	if err != nil {
		api.Fail(c, err)
		return
	}

	// the (project, user) unique index settles concurrent requests
	ownership := models.Ownership{ProjectID: id, UserID: user.ID}
	result := h.db.WithContext(ctx).Omit("User").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ownership)
	if result.Error != nil {
		api.Fail(c, api.QueryError("request ownership", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		api.Fail(c, api.ConflictError("ownership already requested"))
		return
	}
	ownership.User = *user

	log := logger.FromContext(c)
	log.Info("ownership requested", zap.Uint("project_id", id), zap.Uint("user_id", user.ID))

	msg := mailer.OwnershipRequestMessage(h.admins, project.ID, project.Name, user.Name)
	if err := h.mailer.Send(ctx, msg); err != nil {
		log.Warn("ownership request email failed", zap.Uint("project_id", id), zap.Error(err))
	}

	api.Created(c, ownerToResponse(ownership))
}

// Approve activates a pending ownership. Admins only.
// @Summary Approve ownership
// @Description Activate a pending ownership request
// @Tags owners
// @Produce json
// @Param id path integer true "Project ID"
// @Param userId path integer true "User ID"
// @Success 200 {object} api.Response{data=OwnerResponse}
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Admin required"
// @Failure 404 {object} api.Response "Ownership not found"
// @Security BearerAuth
// @Router /projects/{id}/owners/{userId} [put]
func (h *Handler) Approve(c *gin.Context) {
	projectID, userID, err := h.params(c)
	if err != nil {
		api.Fail(c, err)
		return
	}

	ownership, err := h.find(c, projectID, userID)
	if err != nil {
		api.Fail(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(ownership).Update("active", true).Error; err != nil {
		api.Fail(c, api.QueryError("approve ownership", err))
		return
	}
	ownership.Active = true

	logger.FromContext(c).Info("ownership approved", zap.Uint("project_id", projectID), zap.Uint("user_id", userID))
	api.OK(c, ownerToResponse(*ownership))
}

// Remove rejects a request or removes an owner. Admins, or the user themself.
// @Summary Remove ownership
// @Description Reject a request or remove an owner
// @Tags owners
// @Produce json
// @Param id path integer true "Project ID"
// @Param userId path integer true "User ID"
// @Success 200 {object} api.Response
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Forbidden"
// @Failure 404 {object} api.Response "Ownership not found"
// @Security BearerAuth
// @Router /projects/{id}/owners/{userId} [delete]
func (h *Handler) Remove(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	projectID, userID, err := h.params(c)
	if err != nil {
		api.Fail(c, err)
		return
	}

	if !user.IsAdmin() && user.ID != userID {
		api.Fail(c, api.ForbiddenError("only admins can remove other owners"))
		return
	}

	ownership, err := h.find(c, projectID, userID)
	if err != nil {
		api.Fail(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(ownership).Error; err != nil {
		api.Fail(c, api.QueryError("remove ownership", err))
		return
	}

	logger.FromContext(c).Info("ownership removed", zap.Uint("project_id", projectID), zap.Uint("user_id", userID))
	api.OK(c, gin.H{"projectId": projectID, "userId": userID})
}

func (h *Handler) params(c *gin.Context) (uint, uint, error) {
	projectID, err := api.ParamID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	userID, err := api.ParamID(c, "userId")
	if err != nil {
		return 0, 0, err
	}
	return projectID, userID, nil
}

func (h *Handler) find(c *gin.Context, projectID, userID uint) (*models.Ownership, error) {
	var ownership models.Ownership
	err := h.db.WithContext(c.Request.Context()).Preload("User").
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&ownership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, api.NotFoundError("ownership")
		}
		return nil, api.QueryError("find ownership", err)
	}
	return &ownership, nil
}
