package models

// Permission strings known to the engine. Grouped into the three families
// the access validator checks; misc operations have no family on purpose and
// can never be satisfied by a non-admin principal.
const (
	PermDataRead     = "data.read"
	PermQueryRun     = "query.run"
	PermDataWrite    = "data.write"
	PermSchemaManage = "schema.manage"
	PermServerAdmin  = "server.admin"
)

// PermissionFamilies enumerates, per access type, the permission strings any
// one of which satisfies the role-level check. Supplied by the
// role-permission catalog; the compiled-in defaults below are used when the
// catalog is empty.
type PermissionFamilies struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
	Admin []string `json:"admin"`
}

// DefaultPermissionFamilies returns the compiled-in permission catalog.
func DefaultPermissionFamilies() *PermissionFamilies {
	return &PermissionFamilies{
		Read:  []string{PermDataRead, PermQueryRun},
		Write: []string{PermDataWrite},
		Admin: []string{PermSchemaManage, PermServerAdmin},
	}
}
