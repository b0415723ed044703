// Package access holds the ownership checks shared by project-scoped handlers.
package access

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

// FindProject loads a project row without associations
func FindProject(ctx context.Context, db *gorm.DB, id uint) (*models.Project, error) {
	var project models.Project
	if err := db.WithContext(ctx).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, api.NotFoundError("project")
		}
		return nil, api.QueryError("find project", err)
	}
	return &project, nil
}

// IsActiveOwner reports whether user holds an approved ownership of the project
func IsActiveOwner(ctx context.Context, db *gorm.DB, userID, projectID uint) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Ownership{}).
		Where("project_id = ? AND user_id = ? AND active = ?", projectID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, api.QueryError("check ownership", err)
	}
	return count > 0, nil
}

// RequireManager returns nil when user is an admin or an active owner of the
// project, and a ForbiddenError otherwise.
func RequireManager(ctx context.Context, db *gorm.DB, user *models.User, projectID uint) error {
	if user == nil {
		return api.AuthorizationError("authentication required")
	}
	if user.IsAdmin() {
		return nil
	}
	ok, err := IsActiveOwner(ctx, db, user.ID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return api.ForbiddenError("only project owners can do that")
	}
	return nil
}
