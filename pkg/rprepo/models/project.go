package models

import "time"

// ProjectStatus is the lifecycle state of a roleplay project
type ProjectStatus string

const (
	StatusActive   ProjectStatus = "Active"
	StatusUpcoming ProjectStatus = "Upcoming"
	StatusHiatus   ProjectStatus = "Hiatus"
	StatusInactive ProjectStatus = "Inactive"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusActive, StatusUpcoming, StatusHiatus, StatusInactive:
		return true
	}
	return false
}

// Project is a roleplay community listed in the catalog
type Project struct {
	ID               uint          `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time     `gorm:"index" json:"updatedAt"`
	Name             string        `gorm:"not null;index" json:"name"`
	ShortDescription string        `json:"shortDescription"`
	Description      string        `gorm:"type:text" json:"description"`
	Setting          string        `json:"setting"`
	Status           ProjectStatus `gorm:"type:varchar(20);default:'Upcoming';index" json:"status"`
	ImageURL         string        `json:"imageUrl"`
	DiscordURL       string        `json:"discordUrl"`

	// Relationships
	Tags       []ProjectTag   `gorm:"foreignKey:ProjectID" json:"-"`
	Owners     []Ownership    `gorm:"foreignKey:ProjectID" json:"-"`
	OtherLinks []RoleplayLink `gorm:"foreignKey:ProjectID" json:"-"`
	Schedule   *Schedule      `gorm:"foreignKey:ProjectID" json:"-"`
}

// TagNames returns the project's tags in stored order
func (p *Project) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Tag
	}
	return names
}

// ProjectTag is one member of a project's tag set
type ProjectTag struct {
	ID        uint   `gorm:"primarykey"`
	ProjectID uint   `gorm:"not null;uniqueIndex:idx_project_tag"`
	Tag       string `gorm:"not null;uniqueIndex:idx_project_tag;index"`
}

// Ownership links a user to a project. Inactive rows are pending requests.
type Ownership struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_owner" json:"projectId"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_project_owner;index" json:"userId"`
	Active    bool      `gorm:"not null;default:false" json:"active"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// RoleplayLink is an extra labelled link shown on a project page
type RoleplayLink struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	ProjectID uint   `gorm:"not null;uniqueIndex:idx_project_link" json:"projectId"`
	Label     string `gorm:"not null;uniqueIndex:idx_project_link" json:"label"`
	URL       string `gorm:"not null;uniqueIndex:idx_project_link" json:"url"`
}
