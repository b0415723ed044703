package owners

import "github.com/vrrprepo/rprepo/pkg/rprepo/models"

// OwnerResponse represents an ownership in API responses
type OwnerResponse struct {
	UserID    uint    `json:"userId"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
	Active    bool    `json:"active"`
}

func ownerToResponse(o models.Ownership) OwnerResponse {
	return OwnerResponse{
		UserID:    o.UserID,
		Name:      o.User.Name,
		AvatarURL: o.User.AvatarURL,
		Active:    o.Active,
	}
}

// ToResponses converts ownership rows with a preloaded User
func ToResponses(rows []models.Ownership) []OwnerResponse {
	out := make([]OwnerResponse, len(rows))
	for i, o := range rows {
		out[i] = ownerToResponse(o)
	}
	return out
}
