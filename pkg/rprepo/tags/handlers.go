package tags

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers tag routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
}

// TagResponse is a tag and the number of projects carrying it
type TagResponse struct {
	Tag          string `json:"tag"`
	ProjectCount int64  `json:"projectCount"`
}

// List returns every tag in use, most used first.
// q narrows to tags containing the given text; active=true counts only active projects.
// @Summary List tags
// @Description Get every tag in use, most used first
// @Tags tags
// @Produce json
// @Param q query string false "Tag contains"
// @Param active query boolean false "Count only active projects"
// @Success 200 {object} api.Response{data=[]TagResponse}
// @Failure 400 {object} api.Response "Invalid query"
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	activeOnly, err := api.QueryBool(c, "active", false)
	if err != nil {
		api.Fail(c, err)
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Model(&models.ProjectTag{}).
		Select("project_tags.tag AS tag, COUNT(*) AS project_count").
		Group("project_tags.tag").
		Order("project_count DESC").
		Order("project_tags.tag ASC")

	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		query = query.Where("LOWER(project_tags.tag) LIKE ?", "%"+q+"%")
	}
	if activeOnly {
		query = query.Joins("JOIN projects ON projects.id = project_tags.project_id").
			Where("projects.status = ?", models.StatusActive)
	}

	results := []TagResponse{}
	if err := query.Scan(&results).Error; err != nil {
		api.Fail(c, api.QueryError("list tags", err))
		return
	}

	api.OK(c, results)
}
