package models

import "github.com/google/uuid"

// ConnectionContext carries the per-connection facts the grant store may
// condition on: which upstream connection the statement would run over, the
// database the session defaults to, and the client address for audit.
type ConnectionContext struct {
	ID              uuid.UUID `json:"id"`
	DefaultDatabase string    `json:"default_database,omitempty"`
	ClientAddr      string    `json:"client_addr,omitempty"`
}
