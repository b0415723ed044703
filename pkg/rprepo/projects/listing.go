package projects

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/pagination"
)

// fuzzyMaxDistance bounds levenshtein_less_equal; anything further sorts last
const fuzzyMaxDistance = 20

// sortColumns maps accepted sortBy values to SQL columns.
// Request values are only ever used as keys.
var sortColumns = map[string]string{
	"name":       "projects.name",
	"createdAt":  "projects.created_at",
	"created_at": "projects.created_at",
	"updatedAt":  "projects.updated_at",
	"updated_at": "projects.updated_at",
	"status":     "projects.status",
}

// ListParams are the listing options of GET /projects
type ListParams struct {
	pagination.Params
	SortBy     string
	Asc        bool
	Name       string
	Tags       []string
	ActiveOnly bool
}

// ParseListParams reads listing options from the query string
func ParseListParams(c *gin.Context) (ListParams, error) {
	page, err := pagination.ParseParams(c.Query("start"), c.Query("limit"))
	if err != nil {
		return ListParams{}, err
	}

	asc, err := api.QueryBool(c, "asc", true)
	if err != nil {
		return ListParams{}, err
	}
	active, err := api.QueryBool(c, "active", false)
	if err != nil {
		return ListParams{}, err
	}

	p := ListParams{
		Params:     page,
		SortBy:     c.DefaultQuery("sortBy", "name"),
		Asc:        asc,
		Name:       strings.TrimSpace(c.Query("name")),
		Tags:       ParseTags(c.Query("tags")),
		ActiveOnly: active,
	}
	if _, ok := sortColumns[p.SortBy]; !ok {
		return ListParams{}, api.ValidationError("unknown sort field %q", p.SortBy)
	}
	return p, nil
}

// ParseTags splits a pipe-delimited tag list ("a|b")
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return NormalizeTags(strings.Split(raw, "|"))
}

// NormalizeTags trims tags and drops empty values and duplicates, keeping order
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// TaggedWithAll is a subquery selecting the ids of projects whose tag set
// contains every tag in tags
func TaggedWithAll(db *gorm.DB, tags []string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&models.ProjectTag{}).
		Select("project_id").
		Where("tag IN ?", tags).
		Group("project_id").
		Having("COUNT(DISTINCT tag) = ?", len(tags))
}

// withAssociations preloads what a project card shows: tags, active owners
// with their user, and other links. One query per association.
func withAssociations(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("project_tags.tag ASC")
		}).
		Preload("Owners", func(db *gorm.DB) *gorm.DB {
			return db.Where("ownerships.active = ?", true).Order("ownerships.id ASC")
		}).
		Preload("Owners.User").
		Preload("OtherLinks", func(db *gorm.DB) *gorm.DB {
			return db.Order("roleplay_links.id ASC")
		})
}

// BuildListQuery returns the filtered, ordered project query for p.
// A name search orders by fuzzy distance and ignores SortBy and Asc.
func BuildListQuery(db *gorm.DB, p ListParams) (*gorm.DB, error) {
	column, ok := sortColumns[p.SortBy]
	if !ok {
		return nil, api.ValidationError("unknown sort field %q", p.SortBy)
	}

	q := withAssociations(db.Model(&models.Project{}))

	if p.ActiveOnly {
		q = q.Where("projects.status = ?", models.StatusActive)
	}

	if len(p.Tags) > 0 {
		q = q.Where("projects.id IN (?)", TaggedWithAll(db, p.Tags))
	}

	if p.Name != "" {
		return q.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "levenshtein_less_equal(lower(projects.name), lower(?), ?) ASC, projects.name ASC, projects.id ASC",
			Vars:               []interface{}{p.Name, fuzzyMaxDistance},
			WithoutParentheses: true,
		}}), nil
	}

	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: !p.Asc})
	if column != "projects.name" {
		q = q.Order("projects.name ASC")
	}
	return q.Order("projects.id ASC"), nil
}

// List returns one page of projects with their associations
func List(ctx context.Context, db *gorm.DB, p ListParams) (pagination.Page[models.Project], error) {
	q, err := BuildListQuery(db.WithContext(ctx), p)
	if err != nil {
		return pagination.Page[models.Project]{}, err
	}
	return pagination.Fetch[models.Project](q, p.Params)
}
