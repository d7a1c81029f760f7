package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileRecoversQualifiedPair(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		ref      TableReference
		expected TableReference
	}{
		{
			name:     "ddl pattern recovers database",
			sql:      "DROP TABLE app.users",
			ref:      TableReference{Table: "users"},
			expected: TableReference{Database: "app", Table: "users"},
		},
		{
			name:     "from clause recovers database",
			sql:      "SELECT * FROM app.orders WHERE id = 1",
			ref:      TableReference{Table: "orders"},
			expected: TableReference{Database: "app", Table: "orders"},
		},
		{
			name:     "join clause recovers database",
			sql:      "SELECT * FROM t JOIN metrics_db.samples s ON 1 = 1",
			ref:      TableReference{Table: "samples"},
			expected: TableReference{Database: "metrics_db", Table: "samples"},
		},
		{
			name:     "backticked pair recovers",
			sql:      "SELECT * FROM `app`.`invoices`",
			ref:      TableReference{Table: "invoices"},
			expected: TableReference{Database: "app", Table: "invoices"},
		},
		{
			name:     "no qualifier in text leaves reference alone",
			sql:      "SELECT * FROM users",
			ref:      TableReference{Table: "users"},
			expected: TableReference{Table: "users"},
		},
		{
			name:     "already qualified reference untouched",
			sql:      "SELECT * FROM app.users",
			ref:      TableReference{Database: "app", Table: "users"},
			expected: TableReference{Database: "app", Table: "users"},
		},
		{
			name:     "mismatched table name is not adopted",
			sql:      "SELECT * FROM other.different",
			ref:      TableReference{Table: "users"},
			expected: TableReference{Table: "users"},
		},
		{
			name:     "select-list column qualifier does not rewrite",
			sql:      "SELECT t.col FROM t",
			ref:      TableReference{Table: "t"},
			expected: TableReference{Table: "t"},
		},
		{
			name:     "where-clause column qualifier does not rewrite",
			sql:      "SELECT * FROM u WHERE u.id = 1",
			ref:      TableReference{Table: "u"},
			expected: TableReference{Table: "u"},
		},
		{
			name:     "wildcard reference skips pair recovery",
			sql:      "SELECT * FROM app.users",
			ref:      TableReference{Table: Wildcard},
			expected: TableReference{Table: Wildcard},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ReconcileTableReferences(tt.sql, []TableReference{tt.ref}, "default")
			assert.Equal(t, []TableReference{tt.expected}, out)
		})
	}
}

func TestReconcileTableNameIsActuallyDatabase(t *testing.T) {
	// The extractor sometimes reads `db.table` as just `db`; the reconciler
	// re-scans using the known name as the qualifier.
	out := ReconcileTableReferences(
		"SELECT count() FROM telemetry.raw_events",
		[]TableReference{{Table: "telemetry"}},
		"default",
	)
	assert.Equal(t, []TableReference{{Database: "telemetry", Table: "raw_events"}}, out)
}

func TestReconcileSystemHeuristics(t *testing.T) {
	t.Run("table literally system is rescanned", func(t *testing.T) {
		out := ReconcileTableReferences(
			"SELECT * FROM system.processes",
			[]TableReference{{Table: "system"}},
			"default",
		)
		assert.Equal(t, []TableReference{{Database: "system", Table: "processes"}}, out)
	})

	t.Run("well-known system table forced to system database", func(t *testing.T) {
		out := ReconcileTableReferences(
			"SELECT * FROM query_log LIMIT 10",
			[]TableReference{{Table: "query_log"}},
			"app",
		)
		assert.Equal(t, []TableReference{{Database: "system", Table: "query_log"}}, out)
	})

	t.Run("well-known system table overrides wrong qualifier", func(t *testing.T) {
		out := ReconcileTableReferences(
			"SELECT * FROM app.metric_log",
			[]TableReference{{Database: "app", Table: "metric_log"}},
			"default",
		)
		assert.Equal(t, []TableReference{{Database: "system", Table: "metric_log"}}, out)
	})

	t.Run("wildcard under system recovers real table", func(t *testing.T) {
		out := ReconcileTableReferences(
			"SELECT * FROM system.mutations WHERE is_done = 0",
			[]TableReference{{Database: "system", Table: Wildcard}},
			"default",
		)
		assert.Equal(t, []TableReference{{Database: "system", Table: "mutations"}}, out)
	})

	t.Run("ordinary user table is untouched", func(t *testing.T) {
		out := ReconcileTableReferences(
			"SELECT * FROM app.users",
			[]TableReference{{Database: "app", Table: "users"}},
			"default",
		)
		assert.Equal(t, []TableReference{{Database: "app", Table: "users"}}, out)
	})
}

func TestReconcileNeverDropsReferences(t *testing.T) {
	refs := []TableReference{
		{Table: "users"},
		{Database: "app", Table: "orders"},
		{Table: "query_log"},
		{Table: Wildcard},
	}
	out := ReconcileTableReferences("SELECT 1", refs, "default")
	assert.Len(t, out, len(refs))
}

func TestReconcileDeterministic(t *testing.T) {
	sql := "SELECT * FROM a.b JOIN c.d ON 1 = 1"
	refs := []TableReference{{Table: "b"}, {Table: "d"}}
	first := ReconcileTableReferences(sql, refs, "default")
	second := ReconcileTableReferences(sql, refs, "default")
	assert.Equal(t, first, second)
}

func TestResolveTables(t *testing.T) {
	out := ResolveTables([]TableReference{
		{Table: "users"},
		{Database: "app", Table: "orders"},
		{Table: ""},
	}, "analytics")
	assert.Equal(t, []TableReference{
		{Database: "analytics", Table: "users"},
		{Database: "app", Table: "orders"},
		{Database: "analytics", Table: Wildcard},
	}, out)

	out = ResolveTables([]TableReference{{Table: "t"}}, "")
	assert.Equal(t, []TableReference{{Database: FallbackDatabase, Table: "t"}}, out)
}
