package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datalens-io/querygate/pkg/audit"
	"github.com/datalens-io/querygate/pkg/auth"
	"github.com/datalens-io/querygate/pkg/config"
	"github.com/datalens-io/querygate/pkg/models"
	enginesql "github.com/datalens-io/querygate/pkg/sql"
)

type mockQueryAccessService struct {
	result        *enginesql.ValidationResult
	err           error
	lastPrincipal string
	lastSQL       string
	lastDatabase  string
}

func (m *mockQueryAccessService) ValidateQueryAccess(ctx context.Context, principalID, sqlText, defaultDatabase string, conn *models.ConnectionContext) (*enginesql.ValidationResult, error) {
	m.lastPrincipal = principalID
	m.lastSQL = sqlText
	m.lastDatabase = defaultDatabase
	return m.result, m.err
}

func (m *mockQueryAccessService) AnalyzeStatements(ctx context.Context, sqlText string) []*enginesql.ParsedStatement {
	statements := enginesql.SplitStatements(sqlText)
	parsed := make([]*enginesql.ParsedStatement, 0, len(statements))
	for _, stmt := range statements {
		parsed = append(parsed, enginesql.ParseStatement(stmt))
	}
	return parsed
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			DefaultDatabase: "default",
			MaxQueryLength:  1024,
		},
	}
}

func authedRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	ctx := context.WithValue(req.Context(), auth.ClaimsKey, claims)
	return req.WithContext(ctx)
}

func newTestHandler(service *mockQueryAccessService) *QueryAccessHandler {
	logger := zap.NewNop()
	return NewQueryAccessHandler(testConfig(), service, audit.NewSecurityAuditor(logger), logger)
}

func TestValidate(t *testing.T) {
	t.Run("allowed query", func(t *testing.T) {
		service := &mockQueryAccessService{result: enginesql.Allowed()}
		handler := newTestHandler(service)

		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{
			SQL: "SELECT * FROM events",
		})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ValidateQueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Allowed)
		assert.Equal(t, "user-1", service.lastPrincipal)
		assert.Equal(t, "default", service.lastDatabase)
	})

	t.Run("denied query carries reason and index", func(t *testing.T) {
		service := &mockQueryAccessService{result: enginesql.DeniedAt(1, "statement 1 requires admin access for drop operation")}
		handler := newTestHandler(service)

		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{
			SQL: "SELECT 1; DROP TABLE users",
		})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ValidateQueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Allowed)
		assert.Contains(t, resp.Reason, "admin access")
		require.NotNil(t, resp.StatementIndex)
		assert.Equal(t, 1, *resp.StatementIndex)
	})

	t.Run("database override is forwarded", func(t *testing.T) {
		service := &mockQueryAccessService{result: enginesql.Allowed()}
		handler := newTestHandler(service)

		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{
			SQL:      "SELECT * FROM events",
			Database: "telemetry",
		})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "telemetry", service.lastDatabase)
	})

	t.Run("injection in parameters denies without calling service", func(t *testing.T) {
		service := &mockQueryAccessService{result: enginesql.Allowed()}
		handler := newTestHandler(service)

		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{
			SQL: "SELECT * FROM events WHERE id = {id}",
			Parameters: map[string]any{
				"id": "1' OR '1'='1",
			},
		})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ValidateQueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Allowed)
		assert.Contains(t, resp.Reason, "injection")
		assert.Empty(t, service.lastSQL)
	})

	t.Run("numeric parameters pass the screen", func(t *testing.T) {
		service := &mockQueryAccessService{result: enginesql.Allowed()}
		handler := newTestHandler(service)

		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{
			SQL: "SELECT * FROM events WHERE id = {id}",
			Parameters: map[string]any{
				"id":    42,
				"limit": 100,
			},
		})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ValidateQueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Allowed)
	})

	t.Run("missing sql is 400", func(t *testing.T) {
		handler := newTestHandler(&mockQueryAccessService{result: enginesql.Allowed()})

		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized sql is 413", func(t *testing.T) {
		handler := newTestHandler(&mockQueryAccessService{result: enginesql.Allowed()})

		big := make([]byte, 2048)
		for i := range big {
			big[i] = 'a'
		}
		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{
			SQL: "SELECT '" + string(big) + "'",
		})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("service error still returns fail-closed denial", func(t *testing.T) {
		service := &mockQueryAccessService{
			result: enginesql.Denied("permission lookup failed"),
			err:    assert.AnError,
		}
		handler := newTestHandler(service)

		req := authedRequest(t, http.MethodPost, "/api/queries/validate", ValidateQueryRequest{
			SQL: "SELECT * FROM events",
		})
		rec := httptest.NewRecorder()
		handler.Validate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ValidateQueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Allowed)
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("multi-statement breakdown", func(t *testing.T) {
		handler := newTestHandler(&mockQueryAccessService{})

		req := authedRequest(t, http.MethodPost, "/api/queries/analyze", AnalyzeQueryRequest{
			SQL: "SELECT * FROM app.users; DROP TABLE app.sessions",
		})
		rec := httptest.NewRecorder()
		handler.Analyze(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp AnalyzeQueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Statements, 2)

		assert.Equal(t, "select", resp.Statements[0].OperationKind)
		assert.Equal(t, "read", resp.Statements[0].AccessType)
		assert.Contains(t, resp.Statements[0].Tables, enginesql.TableReference{Database: "app", Table: "users"})

		assert.Equal(t, "drop", resp.Statements[1].OperationKind)
		assert.Equal(t, "admin", resp.Statements[1].AccessType)
	})

	t.Run("tables is never null in JSON", func(t *testing.T) {
		handler := newTestHandler(&mockQueryAccessService{})

		req := authedRequest(t, http.MethodPost, "/api/queries/analyze", AnalyzeQueryRequest{
			SQL: "SELECT 1",
		})
		rec := httptest.NewRecorder()
		handler.Analyze(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"tables":[]`)
	})

	t.Run("missing sql is 400", func(t *testing.T) {
		handler := newTestHandler(&mockQueryAccessService{})

		req := authedRequest(t, http.MethodPost, "/api/queries/analyze", AnalyzeQueryRequest{})
		rec := httptest.NewRecorder()
		handler.Analyze(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
