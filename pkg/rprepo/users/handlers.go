package users

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

const MaxNameLength = 64

// Handler serves public profiles and profile edits
type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers user routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw *auth.Middleware) {
	rg.PATCH("/name", mw.RequireUser(), h.Rename)
	rg.GET("/:id", h.Get)
}

// ProfileResponse is the public view of a user
type ProfileResponse struct {
	ID        uint        `json:"id"`
	Name      string      `json:"name"`
	AvatarURL *string     `json:"avatarUrl"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

// RenameRequest changes the caller's display name
type RenameRequest struct {
	Name string `json:"name" binding:"required,notblank,max=64"`
}

func toProfile(u *models.User) ProfileResponse {
	return ProfileResponse{
		ID:        u.ID,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Get returns a user's public profile
// @Summary Get a user
// @Description Get a user's public profile
// @Tags users
// @Produce json
// @Param id path integer true "User ID"
// @Success 200 {object} api.Response{data=ProfileResponse}
// @Failure 400 {object} api.Response "Invalid user ID"
// @Failure 404 {object} api.Response "User not found"
// @Router /users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(c, api.NotFoundError("user"))
			return
		}
		api.Fail(c, api.QueryError("find user", err))
		return
	}

	api.OK(c, toProfile(&user))
}

// Rename updates the logged-in user's display name
// @Summary Rename yourself
// @Description Change the logged-in user's display name
// @Tags users
// @Accept json
// @Produce json
// @Param request body RenameRequest true "New name"
// @Success 200 {object} api.Response{data=ProfileResponse}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Authentication required"
// @Security BearerAuth
// @Router /users/name [patch]
func (h *Handler) Rename(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.BindError(err))
		return
	}
	name := strings.TrimSpace(req.Name)

	if err := h.db.WithContext(c.Request.Context()).Model(user).Update("name", name).Error; err != nil {
		api.Fail(c, api.QueryError("rename user", err))
		return
	}
	user.Name = name

	api.OK(c, toProfile(user))
}
