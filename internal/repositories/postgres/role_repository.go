package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
)

// PostgresRoleRepository implements RoleRepository using PostgreSQL
type PostgresRoleRepository struct {
	db *sql.DB
}

// NewPostgresRoleRepository creates a new PostgreSQL role repository
func NewPostgresRoleRepository(db *sql.DB) repositories.RoleRepository {
	return &PostgresRoleRepository{db: db}
}

// Create stores a role
func (r *PostgresRoleRepository) Create(ctx context.Context, role *entities.Role) (*entities.Role, error) {
	out := *role
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO roles (code, name, description)
		VALUES ($1, $2, $3)
		RETURNING id
	`, role.Code, role.Name, role.Description).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return &out, nil
}

// Get returns a role by ID
func (r *PostgresRoleRepository) Get(ctx context.Context, id int64) (*entities.Role, error) {
	return r.get(ctx, `SELECT id, code, name, description FROM roles WHERE id = $1`, id)
}

// GetByCode returns a role by code
func (r *PostgresRoleRepository) GetByCode(ctx context.Context, code string) (*entities.Role, error) {
	return r.get(ctx, `SELECT id, code, name, description FROM roles WHERE code = $1`, code)
}

func (r *PostgresRoleRepository) get(ctx context.Context, query string, arg any) (*entities.Role, error) {
	var role entities.Role
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&role.ID, &role.Code, &role.Name, &role.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %v: %w", arg, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// List returns every role
func (r *PostgresRoleRepository) List(ctx context.Context) ([]*entities.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, name, description FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*entities.Role
	for rows.Next() {
		var role entities.Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Description); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}
	return roles, nil
}
