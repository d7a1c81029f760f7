package auth

import (
	"context"
	"fmt"
)

// GetPrincipalID extracts the principal id (JWT subject) from the context.
// Returns empty string if not authenticated; callers that can treat empty as
// anonymous use this, everything on the decision path uses
// RequirePrincipalID.
func GetPrincipalID(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// RequirePrincipalID extracts the principal id and errors when missing.
func RequirePrincipalID(ctx context.Context) (string, error) {
	principalID := GetPrincipalID(ctx)
	if principalID == "" {
		return "", fmt.Errorf("principal id not found in context")
	}
	return principalID, nil
}

// GetRoles returns the role names carried by the token, or nil when not
// authenticated.
func GetRoles(ctx context.Context) []string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return nil
	}
	return claims.Roles
}
