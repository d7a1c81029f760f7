package sql

import (
	"regexp"
	"strings"
)

// The reconciler repairs systematic extraction mistakes before authorization
// runs: a `db.table` read as a bare `table`, a table name that is really a
// database name, and well-known server-internal objects attributed to the
// wrong database. It only corrects (database, table) attribution; it never
// adds or removes a reference. The heuristic ordering is a security-relevant
// tie-break and must stay exactly as written.

var (
	reconcileDDLPattern     = regexp.MustCompile(`(?i)\b(?:DROP|CREATE|ALTER|TRUNCATE)\s+TABLE\s+(?:IF\s+(?:NOT\s+)?EXISTS\s+)?` + "`?([A-Za-z_][A-Za-z0-9_]*)`?\\.`?([A-Za-z_][A-Za-z0-9_]*)`?")
	reconcileClausePattern  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|INTO|UPDATE)\s+` + "`?([A-Za-z_][A-Za-z0-9_]*)`?\\.`?([A-Za-z_][A-Za-z0-9_]*)`?")
	reconcileTablePattern   = regexp.MustCompile(`(?i)\bTABLE\s+` + "`?([A-Za-z_][A-Za-z0-9_]*)`?\\.`?([A-Za-z_][A-Za-z0-9_]*)`?")
	reconcileSelectPattern  = regexp.MustCompile(`(?i)\bSELECT\b.*?\bFROM\s+` + "`?([A-Za-z_][A-Za-z0-9_]*)`?\\.`?([A-Za-z_][A-Za-z0-9_]*)`?")
	reconcileSystemPattern  = regexp.MustCompile(`(?i)\bFROM\s+` + "`?system`?\\.`?([A-Za-z_][A-Za-z0-9_]*)`?")
	reconcileQualifierScan  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|INTO|UPDATE|TABLE)\s+` + "`?([A-Za-z_][A-Za-z0-9_]*)`?\\.`?([A-Za-z_][A-Za-z0-9_]*)`?")
)

// reconcileRecoveryPatterns is the priority order for heuristic 1.
var reconcileRecoveryPatterns = []*regexp.Regexp{
	reconcileDDLPattern,
	reconcileClausePattern,
	reconcileTablePattern,
	reconcileSelectPattern,
}

// wellKnownSystemTables are server-internal log, metric and introspection
// objects that only exist under the system database, whatever qualifier the
// statement text carried.
var wellKnownSystemTables = map[string]struct{}{
	"query_log":                {},
	"query_thread_log":         {},
	"part_log":                 {},
	"metric_log":               {},
	"asynchronous_metric_log":  {},
	"trace_log":                {},
	"text_log":                 {},
	"crash_log":                {},
	"session_log":              {},
	"opentelemetry_span_log":   {},
	"zookeeper_log":            {},
	"processes":                {},
	"metrics":                  {},
	"events":                   {},
	"asynchronous_metrics":     {},
	"merges":                   {},
	"mutations":                {},
	"replicas":                 {},
	"replication_queue":        {},
	"clusters":                 {},
	"macros":                   {},
	"disks":                    {},
	"storage_policies":         {},
	"dictionaries":             {},
	"row_policies":             {},
	"quotas":                   {},
	"settings_profiles":        {},
	"detached_parts":           {},
	"distribution_queue":       {},
	"asynchronous_inserts":     {},
}

// ReconcileTableReferences applies the repair heuristics to every reference
// of one statement, using the raw statement text as the repair source.
// Deterministic and side-effect-free for a given text.
func ReconcileTableReferences(statementText string, refs []TableReference, defaultDatabase string) []TableReference {
	if defaultDatabase == "" {
		defaultDatabase = FallbackDatabase
	}
	out := make([]TableReference, 0, len(refs))
	for _, ref := range refs {
		out = append(out, reconcileReference(statementText, ref, defaultDatabase))
	}
	return out
}

func reconcileReference(text string, ref TableReference, defaultDatabase string) TableReference {
	// Heuristic 1: a bare table that would resolve to the default database
	// may really be the table half of an unrecovered db.table pair.
	if ref.Database == "" && ref.Table != Wildcard {
		if db, table, ok := recoverQualifiedPair(text, ref.Table); ok {
			ref.Database, ref.Table = db, table
		} else if db, table, ok := recoverAsQualifier(text, ref.Table); ok {
			// Heuristic 2: the "table" name may actually be the database half.
			ref.Database, ref.Table = db, table
		}
	}

	// Heuristic 3: a table literally named "system" under another database is
	// almost always a misread of FROM system.<name>.
	if ref.Table == SystemDatabase && resolvedDatabase(ref, defaultDatabase) != SystemDatabase {
		if m := reconcileSystemPattern.FindStringSubmatch(text); m != nil {
			ref.Database = SystemDatabase
			ref.Table = m[1]
		}
	}

	// Heuristic 4: well-known system objects always live under system.
	if _, ok := wellKnownSystemTables[strings.ToLower(ref.Table)]; ok {
		ref.Database = SystemDatabase
	}

	// Heuristic 5: a system reference whose table is still unresolved gets
	// one more rescan for the real name.
	if ref.Database == SystemDatabase && (ref.Table == Wildcard || ref.Table == SystemDatabase) {
		if m := reconcileSystemPattern.FindStringSubmatch(text); m != nil {
			ref.Table = m[1]
		}
	}

	return ref
}

// recoverQualifiedPair tries the recovery patterns in priority order and
// accepts the first db.table match whose table half agrees with the known
// table name. Wildcard references never reach here; heuristic 5 owns those.
func recoverQualifiedPair(text, knownTable string) (string, string, bool) {
	for _, pattern := range reconcileRecoveryPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			if strings.EqualFold(m[2], knownTable) {
				return m[1], m[2], true
			}
		}
	}
	return "", "", false
}

// recoverAsQualifier re-scans treating the known table name as the expected
// database qualifier, recovering the true (database, table) split of a
// db.table read as just db. The scan is anchored to table positions
// (FROM/JOIN/INTO/UPDATE/TABLE); a free-floating dotted token is a column
// qualifier like t.col, not a table, and must not rewrite the reference.
func recoverAsQualifier(text, knownTable string) (string, string, bool) {
	for _, m := range reconcileQualifierScan.FindAllStringSubmatch(text, -1) {
		if strings.EqualFold(m[1], knownTable) {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

func resolvedDatabase(ref TableReference, defaultDatabase string) string {
	if ref.Database != "" {
		return ref.Database
	}
	return defaultDatabase
}
