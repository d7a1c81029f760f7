package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (s *stubValidator) ValidateToken(string) (*Claims, error) { return s.claims, s.err }
func (s *stubValidator) Close()                                {}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token passes claims to handler", func(t *testing.T) {
		validator := &stubValidator{claims: &Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
			Roles:            []string{"analyst"},
		}}
		mw := NewMiddleware(validator, logger)

		var gotID string
		handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			gotID = GetPrincipalID(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/api/queries/validate", nil)
		req.Header.Set("Authorization", "Bearer some.jwt.token")
		rec := httptest.NewRecorder()
		handler(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", gotID)
	})

	t.Run("missing header is 401", func(t *testing.T) {
		mw := NewMiddleware(&stubValidator{}, logger)
		handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/queries/validate", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("malformed header is 401", func(t *testing.T) {
		mw := NewMiddleware(&stubValidator{}, logger)
		handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/queries/validate", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		validator := &stubValidator{err: assert.AnError}
		mw := NewMiddleware(validator, logger)
		handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/queries/validate", nil)
		req.Header.Set("Authorization", "Bearer bad.token")
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without subject is 400", func(t *testing.T) {
		validator := &stubValidator{claims: &Claims{}}
		mw := NewMiddleware(validator, logger)
		handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/queries/validate", nil)
		req.Header.Set("Authorization", "Bearer some.jwt.token")
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExtractBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc123")

	token, err := extractBearerToken(req)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}
