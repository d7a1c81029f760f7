package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datalens-io/querygate/pkg/apperrors"
	"github.com/datalens-io/querygate/pkg/auth"
	"github.com/datalens-io/querygate/pkg/models"
	"github.com/datalens-io/querygate/pkg/repositories"
	enginesql "github.com/datalens-io/querygate/pkg/sql"
)

// CreateGrantRequest is the body of POST /api/grants.
type CreateGrantRequest struct {
	PrincipalID string  `json:"principal_id"`
	Database    string  `json:"database"`
	Table       *string `json:"table,omitempty"`
	AccessType  string  `json:"access_type"`
}

// GrantsHandler manages per-object grants. All routes require an admin
// principal; ordinary principals cannot read or change the grant table.
type GrantsHandler struct {
	grants      repositories.GrantRepository
	permissions repositories.PermissionRepository
	logger      *zap.Logger
}

// NewGrantsHandler creates a new GrantsHandler.
func NewGrantsHandler(grants repositories.GrantRepository, permissions repositories.PermissionRepository, logger *zap.Logger) *GrantsHandler {
	return &GrantsHandler{
		grants:      grants,
		permissions: permissions,
		logger:      logger,
	}
}

// RegisterRoutes registers the grant management routes on the given mux,
// wrapped in the auth middleware.
func (h *GrantsHandler) RegisterRoutes(mux *http.ServeMux, mw *auth.Middleware) {
	mux.HandleFunc("POST /api/grants", mw.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/grants/{principalID}", mw.RequireAuth(h.ListByPrincipal))
	mux.HandleFunc("DELETE /api/grants/{id}", mw.RequireAuth(h.Delete))
}

// requireAdmin checks that the calling principal is a super-user.
func (h *GrantsHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	principalID := auth.GetPrincipalID(r.Context())
	perms, err := h.permissions.PermissionsFor(r.Context(), principalID)
	if err != nil {
		h.logger.Error("Failed to load permissions", zap.Error(err), zap.String("principal_id", principalID))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load permissions")
		return false
	}
	if !perms.IsAdmin {
		_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "Admin role required")
		return false
	}
	return true
}

// Create handles POST /api/grants.
func (h *GrantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req CreateGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.PrincipalID == "" || req.Database == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Missing principal_id or database")
		return
	}
	switch enginesql.AccessType(req.AccessType) {
	case enginesql.AccessRead, enginesql.AccessWrite, enginesql.AccessAdmin:
	default:
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "access_type must be read, write, or admin")
		return
	}

	grant := &models.Grant{
		PrincipalID: req.PrincipalID,
		Database:    req.Database,
		Table:       req.Table,
		AccessType:  req.AccessType,
	}
	if err := h.grants.Create(r.Context(), grant); err != nil {
		h.logger.Error("Failed to create grant", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create grant")
		return
	}

	_ = WriteJSON(w, http.StatusCreated, grant)
}

// ListByPrincipal handles GET /api/grants/{principalID}.
func (h *GrantsHandler) ListByPrincipal(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	principalID := r.PathValue("principalID")
	grants, err := h.grants.ListByPrincipal(r.Context(), principalID)
	if err != nil {
		h.logger.Error("Failed to list grants", zap.Error(err), zap.String("principal_id", principalID))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list grants")
		return
	}
	if grants == nil {
		grants = []*models.Grant{}
	}

	_ = WriteJSON(w, http.StatusOK, grants)
}

// Delete handles DELETE /api/grants/{id}.
func (h *GrantsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid grant id")
		return
	}

	if err := h.grants.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Grant not found")
			return
		}
		h.logger.Error("Failed to delete grant", zap.Error(err), zap.String("grant_id", id.String()))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to delete grant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
