package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
)

const permissionColumns = `id, role_id, action, subject, properties, conditions, created_at, updated_at`

// PostgresPermissionRepository implements PermissionRepository using PostgreSQL
type PostgresPermissionRepository struct {
	db *sql.DB
}

// NewPostgresPermissionRepository creates a new PostgreSQL permission repository
func NewPostgresPermissionRepository(db *sql.DB) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{db: db}
}

var _ repositories.PermissionRepository = (*PostgresPermissionRepository)(nil)
var _ repositories.ChangeLog = (*PostgresPermissionRepository)(nil)

// Create stores a permission and records the change
func (r *PostgresPermissionRepository) Create(ctx context.Context, permission *entities.Permission) (*entities.Permission, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created, err := insertPermission(ctx, tx, permission.RoleID, *permission)
	if err != nil {
		return nil, err
	}
	if err := recordChange(ctx, tx, permission.RoleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// FindByRoleID returns the permissions of a role
func (r *PostgresPermissionRepository) FindByRoleID(ctx context.Context, roleID int64) ([]entities.Permission, error) {
	return r.query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE role_id = $1 ORDER BY id`, roleID)
}

// FindByRoleIDs returns the permissions of several roles
func (r *PostgresPermissionRepository) FindByRoleIDs(ctx context.Context, roleIDs []int64) ([]entities.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE role_id = ANY($1) ORDER BY id`, pq.Array(roleIDs))
}

// FindAll returns every permission
func (r *PostgresPermissionRepository) FindAll(ctx context.Context) ([]entities.Permission, error) {
	return r.query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY id`)
}

// ReplaceForRole deletes the permissions of a role and inserts the new set
func (r *PostgresPermissionRepository) ReplaceForRole(ctx context.Context, roleID int64, permissions []entities.Permission) ([]entities.Permission, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE role_id = $1`, roleID); err != nil {
		return nil, fmt.Errorf("failed to delete permissions: %w", err)
	}

	out := make([]entities.Permission, 0, len(permissions))
	for _, p := range permissions {
		created, err := insertPermission(ctx, tx, roleID, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *created)
	}

	if err := recordChange(ctx, tx, roleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return out, nil
}

// DeleteByRoleID removes every permission of a role
func (r *PostgresPermissionRepository) DeleteByRoleID(ctx context.Context, roleID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete permissions: %w", err)
	}
	if err := recordChange(ctx, tx, roleID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByIDs removes the given permissions
func (r *PostgresPermissionRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete permissions: %w", err)
	}
	if err := recordChange(ctx, tx, 0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LatestChange returns the ID of the latest permission change
func (r *PostgresPermissionRepository) LatestChange(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(id::text, '')
		FROM permission_changes
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest permission change: %w", err)
	}
	return token, nil
}

func (r *PostgresPermissionRepository) query(ctx context.Context, query string, args ...any) ([]entities.Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions: %w", err)
	}
	defer rows.Close()

	var permissions []entities.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}
	return permissions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermission(row rowScanner) (*entities.Permission, error) {
	var (
		p          entities.Permission
		subject    sql.NullString
		properties []byte
		conditions []byte
	)
	if err := row.Scan(&p.ID, &p.RoleID, &p.Action, &subject, &properties, &conditions, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan permission: %w", err)
	}
	p.Subject = subject.String

	if len(properties) > 0 {
		if err := json.Unmarshal(properties, &p.Properties); err != nil {
			return nil, fmt.Errorf("failed to decode properties of permission %d: %w", p.ID, err)
		}
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &p.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode conditions of permission %d: %w", p.ID, err)
		}
	}

	normalized := entities.CreatePermission(p)
	return &normalized, nil
}

func insertPermission(ctx context.Context, tx *sql.Tx, roleID int64, permission entities.Permission) (*entities.Permission, error) {
	p := entities.CreatePermission(permission)
	p.RoleID = roleID

	properties, err := json.Marshal(p.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}

	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO permissions (role_id, action, subject, properties, conditions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, roleID, p.Action, sql.NullString{String: p.Subject, Valid: p.Subject != ""}, properties, conditions, now).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert permission: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return &p, nil
}

// recordChange appends to permission_changes; a trigger notifies listeners
func recordChange(ctx context.Context, tx *sql.Tx, roleID int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO permission_changes (role_id) VALUES ($1)`,
		sql.NullInt64{Int64: roleID, Valid: roleID != 0},
	)
	if err != nil {
		return fmt.Errorf("failed to record permission change: %w", err)
	}
	return nil
}
