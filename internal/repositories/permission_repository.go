package repositories

import (
	"context"
	"errors"

	"github.com/asakaida/kanmon/internal/entities"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// PermissionRepository defines the interface for permission data access
type PermissionRepository interface {
	// Create stores a permission for its role and returns it with ID and timestamps set
	Create(ctx context.Context, permission *entities.Permission) (*entities.Permission, error)

	// FindByRoleID returns the permissions of a role ordered by ID
	FindByRoleID(ctx context.Context, roleID int64) ([]entities.Permission, error)

	// FindByRoleIDs returns the permissions of several roles ordered by ID
	FindByRoleIDs(ctx context.Context, roleIDs []int64) ([]entities.Permission, error)

	// FindAll returns every stored permission ordered by ID
	FindAll(ctx context.Context) ([]entities.Permission, error)

	// ReplaceForRole replaces the permission set of a role in a single transaction
	ReplaceForRole(ctx context.Context, roleID int64, permissions []entities.Permission) ([]entities.Permission, error)

	// DeleteByRoleID removes every permission of a role
	DeleteByRoleID(ctx context.Context, roleID int64) error

	// DeleteByIDs removes the given permissions
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// ChangeLog exposes the latest permission change, used to invalidate cached abilities
type ChangeLog interface {
	// LatestChange returns the ID of the latest permission change ("" when none)
	LatestChange(ctx context.Context) (string, error)
}
