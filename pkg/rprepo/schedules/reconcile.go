package schedules

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

// Link is a label/url pair as submitted by clients
type Link struct {
	Label string `json:"label" binding:"required,notblank,max=80"`
	URL   string `json:"url" binding:"required,url,max=500"`
}

func (l Link) key() string {
	return l.Label + "|" + l.URL
}

// RuntimeInput is one session slot as submitted by clients
type RuntimeInput struct {
	Region     *string    `json:"region" binding:"omitempty,max=40"`
	Start      time.Time  `json:"start" binding:"required"`
	End        *time.Time `json:"end"`
	RepeatDays *int       `json:"repeatDays" binding:"omitempty,min=1,max=366"`
}

// Input is the full desired state of a project's schedule and other links
type Input struct {
	Type        models.ScheduleType `json:"type" binding:"required"`
	ScheduleURL *string             `json:"scheduleUrl" binding:"omitempty,url"`
	Notes       *string             `json:"notes" binding:"omitempty,max=5000"`
	Runtimes    []RuntimeInput      `json:"runtimes" binding:"max=50,dive"`
	OtherLinks  []Link              `json:"otherLinks" binding:"max=30,dive"`
}

// Validate checks the rules binding tags cannot express
func (in Input) Validate() error {
	if !in.Type.Valid() {
		return api.ValidationError("invalid schedule type %q", in.Type)
	}
	if in.Type == models.ScheduleLink && (in.ScheduleURL == nil || *in.ScheduleURL == "") {
		return api.ValidationError("scheduleUrl is required for %s schedules", models.ScheduleLink)
	}
	for _, r := range in.Runtimes {
		if r.End != nil && !r.End.After(r.Start) {
			return api.ValidationError("runtime end must be after start")
		}
	}
	return nil
}

// DiffLinks compares link sets keyed by label and url. Duplicates in
// incoming collapse to one entry.
func DiffLinks(existing []models.RoleplayLink, incoming []Link) (added []Link, removed []models.RoleplayLink) {
	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		have[Link{Label: l.Label, URL: l.URL}.key()] = true
	}

	want := make(map[string]bool, len(incoming))
	for _, l := range incoming {
		k := l.key()
		if want[k] {
			continue
		}
		want[k] = true
		if !have[k] {
			added = append(added, l)
		}
	}

	for _, l := range existing {
		if !want[Link{Label: l.Label, URL: l.URL}.key()] {
			removed = append(removed, l)
		}
	}
	return added, removed
}

// Save replaces the project's schedule, runtimes and other links with in,
// all in one transaction. If an insert or delete touches a different number
// of rows than planned (a concurrent edit), it returns a ReconciliationError
// and nothing is written.
func Save(ctx context.Context, db *gorm.DB, projectID uint, in Input) (*models.Schedule, error) {
	var saved models.Schedule

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		schedule := models.Schedule{
			ProjectID:   projectID,
			Type:        in.Type,
			ScheduleURL: in.ScheduleURL,
			Notes:       in.Notes,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "schedule_url", "notes", "updated_at"}),
		}).Omit("Runtimes").Create(&schedule).Error
		if err != nil {
			return api.QueryError("upsert schedule", err)
		}

		if err := tx.Where("project_id = ?", projectID).Delete(&models.Runtime{}).Error; err != nil {
			return api.QueryError("delete runtimes", err)
		}
		if len(in.Runtimes) > 0 {
			runtimes := make([]models.Runtime, len(in.Runtimes))
			for i, r := range in.Runtimes {
				runtimes[i] = models.Runtime{
					ProjectID:  projectID,
					Region:     r.Region,
					Start:      r.Start.UTC(),
					End:        utc(r.End),
					RepeatDays: r.RepeatDays,
				}
			}
			if err := tx.Create(&runtimes).Error; err != nil {
				return api.QueryError("insert runtimes", err)
			}
		}

		var existing []models.RoleplayLink
		if err := tx.Where("project_id = ?", projectID).Find(&existing).Error; err != nil {
			return api.QueryError("load links", err)
		}
		added, removed := DiffLinks(existing, in.OtherLinks)

		if len(added) > 0 {
			rows := make([]models.RoleplayLink, len(added))
			for i, l := range added {
				rows[i] = models.RoleplayLink{ProjectID: projectID, Label: l.Label, URL: l.URL}
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
			if res.Error != nil {
				return api.QueryError("insert links", res.Error)
			}
			if res.RowsAffected != int64(len(rows)) {
				return api.ReconciliationError("insert links", int64(len(rows)), res.RowsAffected)
			}
		}

		if len(removed) > 0 {
			ids := make([]uint, len(removed))
			for i, l := range removed {
				ids[i] = l.ID
			}
			res := tx.Where("project_id = ? AND id IN ?", projectID, ids).Delete(&models.RoleplayLink{})
			if res.Error != nil {
				return api.QueryError("delete links", res.Error)
			}
			if res.RowsAffected != int64(len(ids)) {
				return api.ReconciliationError("delete links", int64(len(ids)), res.RowsAffected)
			}
		}

		return tx.Preload("Runtimes", func(db *gorm.DB) *gorm.DB {
			return db.Order("runtimes.start ASC")
		}).Where("project_id = ?", projectID).First(&saved).Error
	})
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, api.QueryError("save schedule", err)
	}
	return &saved, nil
}

// utc normalizes t so SQLite's text timestamps compare in instant order
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
