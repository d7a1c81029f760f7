package models

import (
	"time"

	"github.com/google/uuid"
)

// Grant binds a principal to an allowed (database, table, accessType)
// tuple. A nil Table means "any table in this database"; a "*" database
// covers every database.
type Grant struct {
	ID          uuid.UUID `json:"id"`
	PrincipalID string    `json:"principal_id"`
	Database    string    `json:"database"`
	Table       *string   `json:"table,omitempty"`
	AccessType  string    `json:"access_type"` // read, write, admin
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Covers reports whether this grant covers the requested object. A nil or
// wildcard grant table covers any table; a concrete grant table covers only
// an exact (case-insensitive handled by the store) match.
func (g *Grant) Covers(database, table string) bool {
	if g.Database != "*" && g.Database != database {
		return false
	}
	if g.Table == nil || *g.Table == "*" {
		return true
	}
	return *g.Table == table
}
