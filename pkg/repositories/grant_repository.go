package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/datalens-io/querygate/pkg/apperrors"
	"github.com/datalens-io/querygate/pkg/database"
	"github.com/datalens-io/querygate/pkg/models"
	enginesql "github.com/datalens-io/querygate/pkg/sql"
)

// GrantRepository provides data access for per-object data-access grants.
// CheckAccess implements the grant store the access validator delegates to.
type GrantRepository interface {
	// CheckAccess reports whether the principal holds a grant covering the
	// (database, table) pair for the access type. A nil table asks about
	// "any table in the database", which only database-wide grants satisfy.
	CheckAccess(ctx context.Context, principalID, databaseName string, table *string, access enginesql.AccessType, conn *models.ConnectionContext) (bool, error)

	// Create inserts a new grant.
	Create(ctx context.Context, grant *models.Grant) error

	// ListByPrincipal returns all grants held by a principal.
	ListByPrincipal(ctx context.Context, principalID string) ([]*models.Grant, error)

	// Delete removes a grant by id.
	Delete(ctx context.Context, id uuid.UUID) error
}

type grantRepository struct {
	db *database.DB
}

// NewGrantRepository creates a new GrantRepository backed by the engine
// database.
func NewGrantRepository(db *database.DB) GrantRepository {
	return &grantRepository{db: db}
}

var _ GrantRepository = (*grantRepository)(nil)

func (r *grantRepository) CheckAccess(ctx context.Context, principalID, databaseName string, table *string, access enginesql.AccessType, conn *models.ConnectionContext) (bool, error) {
	if principalID == "" {
		return false, apperrors.ErrMissingPrincipal
	}

	var (
		query string
		args  []any
	)
	if table == nil || *table == enginesql.Wildcard {
		// Database-wide request: only grants covering every table qualify.
		query = `
			SELECT EXISTS (
				SELECT 1 FROM engine_grants
				WHERE principal_id = $1
				  AND access_type = $2
				  AND (database_name = $3 OR database_name = '*')
				  AND table_name IS NULL
			)`
		args = []any{principalID, string(access), databaseName}
	} else {
		query = `
			SELECT EXISTS (
				SELECT 1 FROM engine_grants
				WHERE principal_id = $1
				  AND access_type = $2
				  AND (database_name = $3 OR database_name = '*')
				  AND (table_name IS NULL OR table_name = $4)
			)`
		args = []any{principalID, string(access), databaseName, *table}
	}

	var allowed bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&allowed); err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return allowed, nil
}

func (r *grantRepository) Create(ctx context.Context, grant *models.Grant) error {
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	now := time.Now()
	grant.CreatedAt = now
	grant.UpdatedAt = now

	query := `
		INSERT INTO engine_grants (id, principal_id, database_name, table_name, access_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		grant.ID,
		grant.PrincipalID,
		grant.Database,
		grant.Table,
		grant.AccessType,
		grant.CreatedAt,
		grant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

func (r *grantRepository) ListByPrincipal(ctx context.Context, principalID string) ([]*models.Grant, error) {
	query := `
		SELECT id, principal_id, database_name, table_name, access_type, created_at, updated_at
		FROM engine_grants
		WHERE principal_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.Grant
	for rows.Next() {
		grant := &models.Grant{}
		if err := rows.Scan(
			&grant.ID,
			&grant.PrincipalID,
			&grant.Database,
			&grant.Table,
			&grant.AccessType,
			&grant.CreatedAt,
			&grant.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (r *grantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM engine_grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
