package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datalens-io/querygate/pkg/apperrors"
	"github.com/datalens-io/querygate/pkg/audit"
	"github.com/datalens-io/querygate/pkg/logging"
	"github.com/datalens-io/querygate/pkg/models"
	enginesql "github.com/datalens-io/querygate/pkg/sql"
)

// PermissionSource answers role-level questions about a principal: which
// permission strings it holds, whether it is a super-user, and the catalog
// of permission families per access type.
type PermissionSource interface {
	PermissionsFor(ctx context.Context, principalID string) (*models.PrincipalPermissions, error)
	Families(ctx context.Context) (*models.PermissionFamilies, error)
}

// GrantStore answers per-object questions: may this principal touch this
// (database, table) with this access type over this connection. A nil table
// means "any table in the database".
type GrantStore interface {
	CheckAccess(ctx context.Context, principalID, database string, table *string, access enginesql.AccessType, conn *models.ConnectionContext) (bool, error)
}

// QueryAccessService decides whether a principal may run a (possibly
// multi-statement) SQL string. Denials are ordinary results, never errors;
// errors signal infrastructure failure and always come with a denial.
type QueryAccessService interface {
	// ValidateQueryAccess checks every statement in order and short-circuits
	// on the first denial so nothing about later objects leaks.
	ValidateQueryAccess(ctx context.Context, principalID, sqlText, defaultDatabase string, conn *models.ConnectionContext) (*enginesql.ValidationResult, error)

	// AnalyzeStatements returns the per-statement breakdown without making
	// any authorization decision. For tooling and UI display.
	AnalyzeStatements(ctx context.Context, sqlText string) []*enginesql.ParsedStatement
}

type queryAccessService struct {
	permissions PermissionSource
	grants      GrantStore
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewQueryAccessService creates the validator with its collaborators.
func NewQueryAccessService(permissions PermissionSource, grants GrantStore, auditor *audit.SecurityAuditor, logger *zap.Logger) QueryAccessService {
	return &queryAccessService{
		permissions: permissions,
		grants:      grants,
		auditor:     auditor,
		logger:      logger,
	}
}

var _ QueryAccessService = (*queryAccessService)(nil)

func (s *queryAccessService) ValidateQueryAccess(ctx context.Context, principalID, sqlText, defaultDatabase string, conn *models.ConnectionContext) (*enginesql.ValidationResult, error) {
	if principalID == "" {
		return enginesql.Denied("authentication required"), nil
	}

	perms, err := s.permissions.PermissionsFor(ctx, principalID)
	if err != nil {
		// Fail closed: an unanswered permission lookup is a denial.
		return enginesql.Denied("permission lookup failed"), fmt.Errorf("failed to load permissions for %s: %w", principalID, err)
	}

	if perms.IsAdmin {
		s.auditor.LogAdminBypass(ctx, principalID, conn)
		return enginesql.Allowed(), nil
	}

	statements := enginesql.SplitStatements(sqlText)
	if len(statements) == 0 {
		return enginesql.Denied("no valid statements found"), nil
	}

	families, err := s.permissions.Families(ctx)
	if err != nil || families == nil {
		families = models.DefaultPermissionFamilies()
	}

	for index, statementText := range statements {
		result, err := s.validateStatement(ctx, principalID, statementText, defaultDatabase, index, perms, families, conn)
		if err != nil {
			return result, err
		}
		if !result.Allowed {
			return result, nil
		}
	}

	return enginesql.Allowed(), nil
}

func (s *queryAccessService) validateStatement(
	ctx context.Context,
	principalID, statementText, defaultDatabase string,
	index int,
	perms *models.PrincipalPermissions,
	families *models.PermissionFamilies,
	conn *models.ConnectionContext,
) (*enginesql.ValidationResult, error) {
	stmt := enginesql.ParseStatement(statementText)
	for _, diag := range stmt.Diagnostics {
		s.logger.Debug("statement analyzed heuristically",
			zap.Int("statement_index", index),
			zap.String("detail", diag),
			zap.String("statement", logging.SanitizeQuery(statementText)),
		)
	}

	access := enginesql.ClassifyAccessType(stmt.OperationKind)

	family := familyFor(families, access)
	if family == nil || !perms.HasAny(family) {
		reason := fmt.Sprintf("statement %d requires %s access for %s operation", index, access, stmt.OperationKind)
		s.auditor.LogAccessDenied(ctx, principalID, audit.AccessDecisionDetails{
			StatementIndex: index,
			OperationKind:  string(stmt.OperationKind),
			AccessType:     string(access),
			Reason:         reason,
		}, conn)
		return enginesql.DeniedAt(index, reason), nil
	}

	reconciled := enginesql.ReconcileTableReferences(statementText, stmt.Tables, defaultDatabase)
	resolved := enginesql.ResolveTables(reconciled, defaultDatabase)

	// A statement touching no concrete object (SET, SHOW DATABASES, plain
	// SELECT expressions) cannot be object-checked; the role-permission
	// check above is its whole authorization. Known, intentional boundary.
	if len(resolved) == 0 {
		return enginesql.Allowed(), nil
	}

	for _, ref := range resolved {
		allowed, err := s.checkObjectAccess(ctx, principalID, ref, access, conn)
		if err != nil {
			return enginesql.DeniedAt(index, "object permission check failed"), err
		}
		if !allowed {
			reason := fmt.Sprintf("access to %s.%s denied for %s (statement %d)", ref.Database, ref.Table, access, index)
			s.auditor.LogAccessDenied(ctx, principalID, audit.AccessDecisionDetails{
				StatementIndex: index,
				OperationKind:  string(stmt.OperationKind),
				AccessType:     string(access),
				Database:       ref.Database,
				Table:          ref.Table,
				Reason:         reason,
			}, conn)
			return enginesql.DeniedAt(index, reason), nil
		}
	}

	return enginesql.Allowed(), nil
}

func (s *queryAccessService) checkObjectAccess(ctx context.Context, principalID string, ref enginesql.TableReference, access enginesql.AccessType, conn *models.ConnectionContext) (bool, error) {
	if principalID == "" {
		// Caller bug, not user input; fail loudly.
		return false, apperrors.ErrMissingPrincipal
	}

	var table *string
	if ref.Table != enginesql.Wildcard {
		table = &ref.Table
	}
	return s.grants.CheckAccess(ctx, principalID, ref.Database, table, access, conn)
}

func (s *queryAccessService) AnalyzeStatements(ctx context.Context, sqlText string) []*enginesql.ParsedStatement {
	statements := enginesql.SplitStatements(sqlText)
	parsed := make([]*enginesql.ParsedStatement, 0, len(statements))
	for _, statementText := range statements {
		parsed = append(parsed, enginesql.ParseStatement(statementText))
	}
	return parsed
}

// familyFor returns the permission family for an access type. Misc has no
// family: a non-admin principal can never satisfy it.
func familyFor(families *models.PermissionFamilies, access enginesql.AccessType) []string {
	switch access {
	case enginesql.AccessRead:
		return families.Read
	case enginesql.AccessWrite:
		return families.Write
	case enginesql.AccessAdmin:
		return families.Admin
	default:
		return nil
	}
}
