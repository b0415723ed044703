package projects

import (
	"time"

	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/owners"
	"github.com/vrrprepo/rprepo/pkg/rprepo/pagination"
)

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID               uint                   `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription string                 `json:"shortDescription"`
	Description      string                 `json:"description"`
	Setting          string                 `json:"setting"`
	Tags             []string               `json:"tags"`
	Status           models.ProjectStatus   `json:"status"`
	ImageURL         string                 `json:"imageUrl"`
	DiscordURL       string                 `json:"discordUrl"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
	Owners           []owners.OwnerResponse `json:"owners"`
	OtherLinks       []models.RoleplayLink  `json:"otherLinks"`
	Schedule         *models.Schedule       `json:"schedule,omitempty"`
}

func projectToResponse(p models.Project) ProjectResponse {
	links := p.OtherLinks
	if links == nil {
		links = []models.RoleplayLink{}
	}
	return ProjectResponse{
		ID:               p.ID,
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		Description:      p.Description,
		Setting:          p.Setting,
		Tags:             p.TagNames(),
		Status:           p.Status,
		ImageURL:         p.ImageURL,
		DiscordURL:       p.DiscordURL,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		Owners:           owners.ToResponses(p.Owners),
		OtherLinks:       links,
		Schedule:         p.Schedule,
	}
}

func pageToResponse(page pagination.Page[models.Project]) pagination.Page[ProjectResponse] {
	data := make([]ProjectResponse, len(page.Data))
	for i, p := range page.Data {
		data[i] = projectToResponse(p)
	}
	return pagination.Page[ProjectResponse]{
		Data:       data,
		HasNext:    page.HasNext,
		NextCursor: page.NextCursor,
	}
}
