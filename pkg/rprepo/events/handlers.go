package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/pagination"
	"github.com/vrrprepo/rprepo/pkg/rprepo/projects"
)

// Handler serves the events calendar
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new events handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers routes under /events
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
}

// parseDate accepts RFC 3339 timestamps and plain dates (midnight UTC)
func parseDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, api.ValidationError("%s is required", name)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, api.ValidationError("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name)
}

// List returns a page of session occurrences in [start_date, end_date)
// @Summary List session occurrences
// @Description Get the session occurrences between start_date and end_date
// @Tags events
// @Produce json
// @Param start_date query string true "Window start (YYYY-MM-DD or RFC 3339)"
// @Param end_date query string true "Window end, exclusive"
// @Param tags query string false "Pipe-delimited tags"
// @Param active query boolean false "Only active projects"
// @Param start query integer false "Offset of the first row"
// @Param limit query integer false "Page size, at most 1000"
// @Success 200 {object} api.Response{data=pagination.Page[Occurrence]}
// @Failure 400 {object} api.Response "Validation error"
// @Router /events [get]
func (h *Handler) List(c *gin.Context) {
	from, err := parseDate("start_date", c.Query("start_date"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	to, err := parseDate("end_date", c.Query("end_date"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	params, err := pagination.ParseParams(c.Query("start"), c.Query("limit"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	active, err := api.QueryBool(c, "active", false)
	if err != nil {
		api.Fail(c, err)
		return
	}

	occurrences, err := Find(c.Request.Context(), h.db, Query{
		From:       from,
		To:         to,
		Tags:       projects.ParseTags(c.Query("tags")),
		ActiveOnly: active,
	})
	if err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, pagination.FromSlice(occurrences, params))
}
