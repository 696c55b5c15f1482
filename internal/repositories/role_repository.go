package repositories

import (
	"context"

	"github.com/asakaida/kanmon/internal/entities"
)

// RoleRepository defines the interface for role data access
type RoleRepository interface {
	// Create stores a role and returns it with its ID set
	Create(ctx context.Context, role *entities.Role) (*entities.Role, error)

	// Get returns a role by ID, or ErrNotFound
	Get(ctx context.Context, id int64) (*entities.Role, error)

	// GetByCode returns a role by code, or ErrNotFound
	GetByCode(ctx context.Context, code string) (*entities.Role, error)

	// List returns every role ordered by ID
	List(ctx context.Context) ([]*entities.Role, error)
}
