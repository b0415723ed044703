package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/pagination"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers admin routes. The group must already require an admin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.PUT("/users/:id/role", h.SetRole)
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID           uint        `json:"id"`
	Name         string      `json:"name"`
	AvatarURL    *string     `json:"avatarUrl"`
	Role         models.Role `json:"role"`
	DiscordID    *string     `json:"discordId"`
	GoogleID     *string     `json:"googleId"`
	CreatedAt    time.Time   `json:"createdAt"`
	ProjectCount int64       `json:"projectCount"`
	UpdateCount  int64       `json:"updateCount"`
}

// SetRoleRequest represents the request to change a user's role
type SetRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// StatsResponse represents catalog statistics
type StatsResponse struct {
	TotalUsers       int64 `json:"totalUsers"`
	AdminUsers       int64 `json:"adminUsers"`
	BannedUsers      int64 `json:"bannedUsers"`
	TotalProjects    int64 `json:"totalProjects"`
	ActiveProjects   int64 `json:"activeProjects"`
	PendingOwnership int64 `json:"pendingOwnership"`
	TotalUpdates     int64 `json:"totalUpdates"`
	DistinctTags     int64 `json:"distinctTags"`
}

type countRow struct {
	UserID uint
	Count  int64
}

// countsBy returns per-user row counts of model for the given users
func (h *Handler) countsBy(c *gin.Context, model interface{}, userIDs []uint, conds ...interface{}) (map[uint]int64, error) {
	var rows []countRow
	q := h.db.WithContext(c.Request.Context()).Model(model).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs)
	if len(conds) > 0 {
		q = q.Where(conds[0], conds[1:]...)
	}
	if err := q.Group("user_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.UserID] = r.Count
	}
	return counts, nil
}

// withCounts attaches each user's active project and update counts
func (h *Handler) withCounts(c *gin.Context, users []models.User) ([]UserResponse, error) {
	responses := make([]UserResponse, len(users))
	if len(users) == 0 {
		return responses, nil
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	projectCounts, err := h.countsBy(c, &models.Ownership{}, ids, "active = ?", true)
	if err != nil {
		return nil, api.QueryError("count ownerships", err)
	}
	updateCounts, err := h.countsBy(c, &models.Update{}, ids)
	if err != nil {
		return nil, api.QueryError("count updates", err)
	}
	for i, u := range users {
		responses[i] = userToResponse(u, projectCounts[u.ID], updateCounts[u.ID])
	}
	return responses, nil
}

// ListUsers returns a page of users, optionally filtered by name and role
// @Summary List users
// @Description Get a page of users with their owned project and update counts
// @Tags admin
// @Produce json
// @Param start query integer false "Offset of the first row"
// @Param limit query integer false "Page size, at most 1000"
// @Param q query string false "Name contains"
// @Param role query string false "Filter by role"
// @Success 200 {object} api.Response{data=pagination.Page[UserResponse]}
// @Failure 400 {object} api.Response "Invalid query"
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Admin required"
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	params, err := pagination.ParseParams(c.Query("start"), c.Query("limit"))
	if err != nil {
		api.Fail(c, err)
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if role := models.Role(c.Query("role")); role != "" {
		if !role.Valid() {
			api.Fail(c, api.ValidationError("invalid role %q", role))
			return
		}
		query = query.Where("role = ?", role)
	}
	query = query.Order("created_at DESC").Order("id DESC")

	page, err := pagination.Fetch[models.User](query, params)
	if err != nil {
		api.Fail(c, err)
		return
	}

	responses, err := h.withCounts(c, page.Data)
	if err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, pagination.Page[UserResponse]{Data: responses, HasNext: page.HasNext, NextCursor: page.NextCursor})
}

func userToResponse(u models.User, projects, updates int64) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		AvatarURL:    u.AvatarURL,
		Role:         u.Role,
		DiscordID:    u.DiscordID,
		GoogleID:     u.GoogleID,
		CreatedAt:    u.CreatedAt,
		ProjectCount: projects,
		UpdateCount:  updates,
	}
}

// SetRole promotes, demotes, bans or unbans a user
// @Summary Set a user's role
// @Description Promote, demote, ban or unban a user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path integer true "User ID"
// @Param request body SetRoleRequest true "New role"
// @Success 200 {object} api.Response{data=UserResponse}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Admin required"
// @Failure 404 {object} api.Response "User not found"
// @Security BearerAuth
// @Router /admin/users/{id}/role [put]
func (h *Handler) SetRole(c *gin.Context) {
	current, _ := auth.CurrentUser(c)
	id, err := api.ParamID(c, "id")
	if err != nil {
		api.Fail(c, err)
		return
	}

	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.BindError(err))
		return
	}
	if !req.Role.Valid() {
		api.Fail(c, api.ValidationError("invalid role %q", req.Role))
		return
	}

	// Prevent admin from demoting themselves
	if id == current.ID && req.Role != models.RoleAdmin {
		api.Fail(c, api.ValidationError("cannot demote yourself"))
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(c, api.NotFoundError("user"))
			return
		}
		api.Fail(c, api.QueryError("find user", err))
		return
	}

	if err := db.Model(&user).Update("role", req.Role).Error; err != nil {
		api.Fail(c, api.QueryError("update role", err))
		return
	}
	user.Role = req.Role

	logger.FromContext(c).Info("user role changed",
		zap.Uint("user_id", user.ID), zap.String("role", string(req.Role)), zap.Uint("by", current.ID))

	responses, err := h.withCounts(c, []models.User{user})
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, responses[0])
}

// GetStats returns catalog-wide statistics
// @Summary Get catalog statistics
// @Description Count users, projects, updates and pending ownership requests
// @Tags admin
// @Produce json
// @Success 200 {object} api.Response{data=StatsResponse}
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 403 {object} api.Response "Admin required"
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	db := h.db.WithContext(c.Request.Context())

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, db.Model(&models.User{})},
		{&stats.AdminUsers, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin)},
		{&stats.BannedUsers, db.Model(&models.User{}).Where("role = ?", models.RoleBanned)},
		{&stats.TotalProjects, db.Model(&models.Project{})},
		{&stats.ActiveProjects, db.Model(&models.Project{}).Where("status = ?", models.StatusActive)},
		{&stats.PendingOwnership, db.Model(&models.Ownership{}).Where("active = ?", false)},
		{&stats.TotalUpdates, db.Model(&models.Update{})},
		{&stats.DistinctTags, db.Model(&models.ProjectTag{}).Distinct("tag")},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dest).Error; err != nil {
			api.Fail(c, api.QueryError("count stats", err))
			return
		}
	}

	api.OK(c, stats)
}
