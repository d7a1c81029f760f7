package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datalens-io/querygate/pkg/audit"
	"github.com/datalens-io/querygate/pkg/auth"
	"github.com/datalens-io/querygate/pkg/config"
	"github.com/datalens-io/querygate/pkg/logging"
	"github.com/datalens-io/querygate/pkg/models"
	"github.com/datalens-io/querygate/pkg/services"
	enginesql "github.com/datalens-io/querygate/pkg/sql"
)

// ValidateQueryRequest is the body of POST /api/queries/validate.
type ValidateQueryRequest struct {
	SQL string `json:"sql"`
	// Database overrides the engine's default database for unqualified
	// table references in this request.
	Database string `json:"database,omitempty"`
	// Parameters are the bind values the caller intends to run with. They
	// are screened for injection patterns before any grant check.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ValidateQueryResponse reports the decision for the whole batch.
type ValidateQueryResponse struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason,omitempty"`
	StatementIndex *int   `json:"statement_index,omitempty"`
}

// AnalyzeQueryRequest is the body of POST /api/queries/analyze.
type AnalyzeQueryRequest struct {
	SQL string `json:"sql"`
}

// StatementAnalysis is one statement's breakdown in an analyze response.
type StatementAnalysis struct {
	Statement     string                     `json:"statement"`
	OperationKind string                     `json:"operation_kind"`
	AccessType    string                     `json:"access_type"`
	Tables        []enginesql.TableReference `json:"tables"`
	Heuristic     bool                       `json:"heuristic"`
}

// AnalyzeQueryResponse lists the analysis of every statement in the batch.
type AnalyzeQueryResponse struct {
	Statements []StatementAnalysis `json:"statements"`
}

// QueryAccessHandler serves the statement validation and analysis endpoints.
type QueryAccessHandler struct {
	cfg     *config.Config
	service services.QueryAccessService
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewQueryAccessHandler creates a new QueryAccessHandler.
func NewQueryAccessHandler(cfg *config.Config, service services.QueryAccessService, auditor *audit.SecurityAuditor, logger *zap.Logger) *QueryAccessHandler {
	return &QueryAccessHandler{
		cfg:     cfg,
		service: service,
		auditor: auditor,
		logger:  logger,
	}
}

// RegisterRoutes registers the query access routes on the given mux,
// wrapped in the auth middleware.
func (h *QueryAccessHandler) RegisterRoutes(mux *http.ServeMux, mw *auth.Middleware) {
	mux.HandleFunc("POST /api/queries/validate", mw.RequireAuth(h.Validate))
	mux.HandleFunc("POST /api/queries/analyze", mw.RequireAuth(h.Analyze))
}

// Validate handles POST /api/queries/validate.
// The decision is always a 200 with an allowed flag; denials are results,
// not HTTP errors. 4xx is reserved for malformed requests.
func (h *QueryAccessHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.SQL == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Missing sql field")
		return
	}
	if max := h.cfg.Engine.MaxQueryLength; max > 0 && len(req.SQL) > max {
		_ = ErrorResponse(w, http.StatusRequestEntityTooLarge, "query_too_long", "SQL exceeds maximum length")
		return
	}

	principalID := auth.GetPrincipalID(r.Context())
	conn := h.connectionContext(r, req.Database)

	// Screen bind parameters before spending any time on the statement
	// itself. A dirty parameter fails the whole batch.
	if findings := enginesql.ScreenParameters(req.Parameters); len(findings) > 0 {
		for _, finding := range findings {
			h.auditor.LogInjectionAttempt(r.Context(), principalID, audit.InjectionDetails{
				ParamName:   finding.ParamName,
				Fingerprint: finding.Fingerprint,
			}, conn)
		}
		_ = WriteJSON(w, http.StatusOK, ValidateQueryResponse{
			Allowed: false,
			Reason:  "parameter value failed injection screening",
		})
		return
	}

	defaultDatabase := req.Database
	if defaultDatabase == "" {
		defaultDatabase = h.cfg.Engine.DefaultDatabase
	}

	result, err := h.service.ValidateQueryAccess(r.Context(), principalID, req.SQL, defaultDatabase, conn)
	if err != nil {
		h.logger.Error("Query validation failed",
			zap.Error(err),
			zap.String("principal_id", principalID),
			zap.String("sql", logging.SanitizeQuery(req.SQL)),
		)
		// The result still carries the fail-closed denial.
	}

	_ = WriteJSON(w, http.StatusOK, ValidateQueryResponse{
		Allowed:        result.Allowed,
		Reason:         result.Reason,
		StatementIndex: result.StatementIndex,
	})
}

// Analyze handles POST /api/queries/analyze.
// Returns the per-statement breakdown without making any access decision.
func (h *QueryAccessHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.SQL == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Missing sql field")
		return
	}
	if max := h.cfg.Engine.MaxQueryLength; max > 0 && len(req.SQL) > max {
		_ = ErrorResponse(w, http.StatusRequestEntityTooLarge, "query_too_long", "SQL exceeds maximum length")
		return
	}

	parsed := h.service.AnalyzeStatements(r.Context(), req.SQL)

	statements := make([]StatementAnalysis, 0, len(parsed))
	for _, stmt := range parsed {
		tables := stmt.Tables
		if tables == nil {
			tables = []enginesql.TableReference{}
		}
		statements = append(statements, StatementAnalysis{
			Statement:     stmt.Text,
			OperationKind: string(stmt.OperationKind),
			AccessType:    string(enginesql.ClassifyAccessType(stmt.OperationKind)),
			Tables:        tables,
			Heuristic:     len(stmt.Diagnostics) > 0,
		})
	}

	if err := WriteJSON(w, http.StatusOK, AnalyzeQueryResponse{Statements: statements}); err != nil {
		h.logger.Error("Failed to encode analyze response", zap.Error(err))
	}
}

// connectionContext builds the audit connection context from the request.
func (h *QueryAccessHandler) connectionContext(r *http.Request, database string) *models.ConnectionContext {
	if database == "" {
		database = h.cfg.Engine.DefaultDatabase
	}
	return &models.ConnectionContext{
		ID:              uuid.New(),
		DefaultDatabase: database,
		ClientAddr:      r.RemoteAddr,
	}
}
