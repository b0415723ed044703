package models

import "time"

// Update is an immutable activity feed entry, optionally attached to a project
type Update struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	ProjectID *uint     `gorm:"index" json:"projectId"`
	Content   string    `gorm:"type:text;not null" json:"content"`

	User    User     `gorm:"foreignKey:UserID" json:"user"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}
