package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/bulletin/internal/database"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type RoleRepository struct {
	db *database.DB
}

func NewRoleRepository(db *database.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleSelect = `SELECT id, name, authorities, created_at, updated_at FROM roles`

func scanRoleRow(scanner rowScanner) (*models.Role, error) {
	var role models.Role
	var authorities []byte

	if err := scanner.Scan(&role.ID, &role.Name, &authorities, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	if err := json.Unmarshal(authorities, &role.Authorities); err != nil {
		return nil, fmt.Errorf("failed to decode authorities: %w", err)
	}
	if role.Authorities == nil {
		role.Authorities = models.Authorities{}
	}
	return &role, nil
}

func scanRoleRows(rows pgx.Rows) ([]*models.Role, error) {
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		role, err := scanRoleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return roles, nil
}

func notFoundRole(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewNotFoundError("Role", "Role not found")
	}
	return err
}

func encodeAuthorities(as models.Authorities) ([]byte, error) {
	if as == nil {
		as = models.Authorities{}
	}
	b, err := json.Marshal(as)
	if err != nil {
		return nil, fmt.Errorf("failed to encode authorities: %w", err)
	}
	return b, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role, err := scanRoleRow(r.db.Querier(ctx).QueryRow(ctx, roleSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundRole(err)
	}
	return role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role, err := scanRoleRow(r.db.Querier(ctx).QueryRow(ctx, roleSelect+` WHERE name = $1`, name))
	if err != nil {
		return nil, notFoundRole(err)
	}
	return role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, roleSelect+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", database.MapPostgresError(err))
	}
	return scanRoleRows(rows)
}

func (r *RoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	authorities, err := encodeAuthorities(role.Authorities)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO roles (id, name, authorities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, name, authorities, created_at, updated_at
	`
	return scanRoleRow(r.db.Querier(ctx).QueryRow(ctx, query, uuid.New().String(), role.Name, authorities, now))
}

// Upsert creates the role or replaces the authorities of an existing role with
// the same name.
func (r *RoleRepository) Upsert(ctx context.Context, role *models.Role) (*models.Role, error) {
	authorities, err := encodeAuthorities(role.Authorities)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO roles (id, name, authorities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name) DO UPDATE SET authorities = EXCLUDED.authorities, updated_at = EXCLUDED.updated_at
		RETURNING id, name, authorities, created_at, updated_at
	`
	return scanRoleRow(r.db.Querier(ctx).QueryRow(ctx, query, uuid.New().String(), role.Name, authorities, now))
}

func (r *RoleRepository) Update(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error) {
	args := []any{id}
	var set []string

	if upd.Name != nil {
		args = append(args, *upd.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if upd.Authorities != nil {
		authorities, err := encodeAuthorities(*upd.Authorities)
		if err != nil {
			return nil, err
		}
		args = append(args, authorities)
		set = append(set, fmt.Sprintf("authorities = $%d", len(args)))
	}
	args = append(args, time.Now().UTC())
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))

	query := `UPDATE roles SET ` + strings.Join(set, ", ") + ` WHERE id = $1
		RETURNING id, name, authorities, created_at, updated_at`

	role, err := scanRoleRow(r.db.Querier(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFoundRole(err)
	}
	return role, nil
}

func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("Role", "Role not found")
	}
	return nil
}
