package models

import "time"

// Role is a user's site-wide role
type Role string

const (
	RoleUser   Role = "User"
	RoleAdmin  Role = "Admin"
	RoleBanned Role = "Banned"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleBanned:
		return true
	}
	return false
}

// User is an account created on first login through an identity provider.
// Each supported provider links at most one external identity.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Name      string    `gorm:"not null" json:"name"`
	AvatarURL *string   `json:"avatarUrl"`
	Role      Role      `gorm:"type:varchar(20);default:'User';index" json:"role"`
	DiscordID *string   `gorm:"uniqueIndex" json:"-"`
	GoogleID  *string   `gorm:"uniqueIndex" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsBanned() bool {
	return u.Role == RoleBanned
}
