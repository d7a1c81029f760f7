package models

// Principal identifies the authenticated caller of a validation request.
// IsAdmin short-circuits every further check, so it must only ever be set
// from the role-permission source, never from request input.
type Principal struct {
	ID      string   `json:"id"`
	IsAdmin bool     `json:"is_admin"`
	Roles   []string `json:"roles,omitempty"`
}

// PrincipalPermissions is what the role-permission source knows about a
// principal: its granted permission strings and whether it is a super-user.
type PrincipalPermissions struct {
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
}

// Has reports whether the principal holds the given permission string.
func (p *PrincipalPermissions) Has(permission string) bool {
	for _, granted := range p.Permissions {
		if granted == permission {
			return true
		}
	}
	return false
}

// HasAny reports whether the principal holds at least one permission from
// the family.
func (p *PrincipalPermissions) HasAny(family []string) bool {
	for _, permission := range family {
		if p.Has(permission) {
			return true
		}
	}
	return false
}

// Role constants for principals.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleAnalyst, RoleViewer}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
