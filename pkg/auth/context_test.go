package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPrincipalID(t *testing.T) {
	tests := []struct {
		name   string
		claims *Claims
		want   string
	}{
		{
			name: "subject present",
			claims: &Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
			},
			want: "user-123",
		},
		{
			name:   "empty subject",
			claims: &Claims{},
			want:   "",
		},
		{
			name:   "no claims in context",
			claims: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.claims != nil {
				ctx = context.WithValue(ctx, ClaimsKey, tt.claims)
			}
			assert.Equal(t, tt.want, GetPrincipalID(ctx))
		})
	}
}

func TestRequirePrincipalID(t *testing.T) {
	t.Run("returns id when present", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "svc-account"}}
		ctx := context.WithValue(context.Background(), ClaimsKey, claims)

		id, err := RequirePrincipalID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "svc-account", id)
	})

	t.Run("errors when missing", func(t *testing.T) {
		_, err := RequirePrincipalID(context.Background())
		assert.Error(t, err)
	})
}

func TestGetRoles(t *testing.T) {
	claims := &Claims{Roles: []string{"analyst", "viewer"}}
	ctx := context.WithValue(context.Background(), ClaimsKey, claims)

	assert.Equal(t, []string{"analyst", "viewer"}, GetRoles(ctx))
	assert.Nil(t, GetRoles(context.Background()))
}

func TestGetClaims(t *testing.T) {
	t.Run("wrong value type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), ClaimsKey, "not-claims")
		claims, ok := GetClaims(ctx)
		assert.False(t, ok)
		assert.Nil(t, claims)
	})
}
