package events

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/projects"
)

// MaxRange bounds the date window of one events query
const MaxRange = 366 * 24 * time.Hour

// Occurrence is one concrete session of a project
type Occurrence struct {
	ProjectID   uint       `json:"projectId"`
	ProjectName string     `json:"projectName"`
	ImageURL    string     `json:"imageUrl"`
	Region      *string    `json:"region"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end"`
}

// Query selects the projects and window to expand
type Query struct {
	From       time.Time
	To         time.Time
	Tags       []string
	ActiveOnly bool
}

type runtimeRow struct {
	models.Runtime
	ProjectName string
	ImageURL    string
}

// Find expands every matching runtime into occurrences within [From, To),
// ordered by start time, then project name.
func Find(ctx context.Context, db *gorm.DB, q Query) ([]Occurrence, error) {
	if !q.To.After(q.From) {
		return nil, api.ValidationError("end_date must be after start_date")
	}
	if q.To.Sub(q.From) > MaxRange {
		return nil, api.ValidationError("date range may not exceed 366 days")
	}

	query := db.WithContext(ctx).
		Table("runtimes").
		Select("runtimes.*, projects.name AS project_name, projects.image_url AS image_url").
		Joins("JOIN projects ON projects.id = runtimes.project_id").
		Where("runtimes.start < ?", q.To.UTC())
	if q.ActiveOnly {
		query = query.Where("projects.status = ?", models.StatusActive)
	}
	if len(q.Tags) > 0 {
		query = query.Where("projects.id IN (?)", projects.TaggedWithAll(db, q.Tags))
	}

	var rows []runtimeRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, api.QueryError("list runtimes", err)
	}

	out := []Occurrence{}
	for _, r := range rows {
		out = append(out, Expand(r.Runtime, r.ProjectName, r.ImageURL, q.From, q.To)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if out[i].ProjectName != out[j].ProjectName {
			return out[i].ProjectName < out[j].ProjectName
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out, nil
}

// Expand returns the occurrences of r that start within [from, to).
// A repeating runtime recurs every RepeatDays days; End keeps its offset.
func Expand(r models.Runtime, projectName, imageURL string, from, to time.Time) []Occurrence {
	occurrence := func(offset time.Duration) Occurrence {
		o := Occurrence{
			ProjectID:   r.ProjectID,
			ProjectName: projectName,
			ImageURL:    imageURL,
			Region:      r.Region,
			Start:       r.Start.Add(offset),
		}
		if r.End != nil {
			end := r.End.Add(offset)
			o.End = &end
		}
		return o
	}

	if r.RepeatDays == nil || *r.RepeatDays <= 0 {
		if !r.Start.Before(from) && r.Start.Before(to) {
			return []Occurrence{occurrence(0)}
		}
		return nil
	}

	step := time.Duration(*r.RepeatDays) * 24 * time.Hour
	var k int64
	if r.Start.Before(from) {
		k = int64((from.Sub(r.Start) + step - 1) / step)
	}

	var out []Occurrence
	for offset := time.Duration(k) * step; r.Start.Add(offset).Before(to); offset += step {
		out = append(out, occurrence(offset))
	}
	return out
}
