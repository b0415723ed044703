package models

import "time"

type ScheduleType string

const (
	SchedulePeriodic ScheduleType = "Periodic"
	ScheduleOneShot  ScheduleType = "OneShot"
	ScheduleLink     ScheduleType = "ScheduleLink"
	ScheduleOther    ScheduleType = "Other"
)

func (t ScheduleType) Valid() bool {
	switch t {
	case SchedulePeriodic, ScheduleOneShot, ScheduleLink, ScheduleOther:
		return true
	}
	return false
}

// Schedule describes when a project runs. One per project, replaced on save.
type Schedule struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	ProjectID   uint         `gorm:"not null;uniqueIndex" json:"projectId"`
	Type        ScheduleType `gorm:"type:varchar(20);not null" json:"type"`
	ScheduleURL *string      `json:"scheduleUrl"`
	Notes       *string      `gorm:"type:text" json:"notes"`

	Runtimes []Runtime `gorm:"foreignKey:ProjectID;references:ProjectID" json:"runtimes"`
}

// Runtime is one session slot. RepeatDays > 0 makes it recur.
type Runtime struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	ProjectID  uint       `gorm:"not null;index" json:"projectId"`
	Region     *string    `json:"region"`
	Start      time.Time  `gorm:"not null;index" json:"start"`
	End        *time.Time `json:"end"`
	RepeatDays *int       `json:"repeatDays"`
}
