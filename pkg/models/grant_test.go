package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrantCovers(t *testing.T) {
	table := "events"
	wildcard := "*"

	tests := []struct {
		name     string
		grant    Grant
		database string
		table    string
		want     bool
	}{
		{
			name:     "exact match",
			grant:    Grant{Database: "telemetry", Table: &table},
			database: "telemetry",
			table:    "events",
			want:     true,
		},
		{
			name:     "different table",
			grant:    Grant{Database: "telemetry", Table: &table},
			database: "telemetry",
			table:    "metrics",
			want:     false,
		},
		{
			name:     "different database",
			grant:    Grant{Database: "telemetry", Table: &table},
			database: "app",
			table:    "events",
			want:     false,
		},
		{
			name:     "nil table covers any table",
			grant:    Grant{Database: "telemetry"},
			database: "telemetry",
			table:    "anything",
			want:     true,
		},
		{
			name:     "wildcard table covers any table",
			grant:    Grant{Database: "telemetry", Table: &wildcard},
			database: "telemetry",
			table:    "anything",
			want:     true,
		},
		{
			name:     "wildcard database covers any database",
			grant:    Grant{Database: "*", Table: &table},
			database: "app",
			table:    "events",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.grant.Covers(tt.database, tt.table))
		})
	}
}
