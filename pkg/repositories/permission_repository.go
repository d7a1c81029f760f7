package repositories

import (
	"context"
	"fmt"

	"github.com/datalens-io/querygate/pkg/apperrors"
	"github.com/datalens-io/querygate/pkg/database"
	"github.com/datalens-io/querygate/pkg/models"
)

// PermissionRepository is the role-permission source: role membership and
// the permission strings each role carries, plus the catalog mapping
// permissions to access-type families.
type PermissionRepository interface {
	// PermissionsFor returns the principal's effective permission strings
	// and admin flag, aggregated over its roles.
	PermissionsFor(ctx context.Context, principalID string) (*models.PrincipalPermissions, error)

	// Families returns the permission-family catalog. Falls back to the
	// compiled-in defaults when the catalog table is empty.
	Families(ctx context.Context) (*models.PermissionFamilies, error)

	// AssignRole binds a principal to a role.
	AssignRole(ctx context.Context, principalID, role string) error
}

type permissionRepository struct {
	db *database.DB
}

// NewPermissionRepository creates a new PermissionRepository backed by the
// engine database.
func NewPermissionRepository(db *database.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

var _ PermissionRepository = (*permissionRepository)(nil)

func (r *permissionRepository) PermissionsFor(ctx context.Context, principalID string) (*models.PrincipalPermissions, error) {
	query := `
		SELECT COALESCE(bool_or(pr.role = 'admin'), false),
		       COALESCE(array_agg(DISTINCT rp.permission) FILTER (WHERE rp.permission IS NOT NULL), '{}')
		FROM engine_principal_roles pr
		LEFT JOIN engine_role_permissions rp ON rp.role = pr.role
		WHERE pr.principal_id = $1`

	perms := &models.PrincipalPermissions{}
	if err := r.db.QueryRow(ctx, query, principalID).Scan(&perms.IsAdmin, &perms.Permissions); err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	return perms, nil
}

func (r *permissionRepository) Families(ctx context.Context) (*models.PermissionFamilies, error) {
	query := `SELECT access_type, permission FROM engine_permission_catalog ORDER BY access_type, permission`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query permission catalog: %w", err)
	}
	defer rows.Close()

	families := &models.PermissionFamilies{}
	empty := true
	for rows.Next() {
		var accessType, permission string
		if err := rows.Scan(&accessType, &permission); err != nil {
			return nil, fmt.Errorf("failed to scan permission catalog row: %w", err)
		}
		empty = false
		switch accessType {
		case "read":
			families.Read = append(families.Read, permission)
		case "write":
			families.Write = append(families.Write, permission)
		case "admin":
			families.Admin = append(families.Admin, permission)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if empty {
		return models.DefaultPermissionFamilies(), nil
	}
	return families, nil
}

func (r *permissionRepository) AssignRole(ctx context.Context, principalID, role string) error {
	if !models.IsValidRole(role) {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidRole, role)
	}

	query := `
		INSERT INTO engine_principal_roles (principal_id, role)
		VALUES ($1, $2)
		ON CONFLICT (principal_id, role) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, principalID, role); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}
