// Package sql analyzes SQL statement batches ahead of execution: it splits
// multi-statement input, classifies each statement, extracts the
// (database, table) pairs it touches, and maps operations to coarse access
// types. It never executes anything; it only produces the facts the access
// validator needs for an allow/deny decision.
package sql

import "strings"

// OperationKind is the detected top-level operation of a single statement.
type OperationKind string

const (
	OpSelect   OperationKind = "select"
	OpInsert   OperationKind = "insert"
	OpUpdate   OperationKind = "update"
	OpDelete   OperationKind = "delete"
	OpCreate   OperationKind = "create"
	OpDrop     OperationKind = "drop"
	OpAlter    OperationKind = "alter"
	OpTruncate OperationKind = "truncate"
	OpShow     OperationKind = "show"
	OpDescribe OperationKind = "describe"
	OpUse      OperationKind = "use"
	OpSet      OperationKind = "set"
	OpExplain  OperationKind = "explain"
	OpExists   OperationKind = "exists"
	OpCheck    OperationKind = "check"
	OpKill     OperationKind = "kill"
	// OpUnknown is the safe default when neither the grammar parse nor the
	// keyword fallback can classify the text.
	OpUnknown OperationKind = "unknown"
)

// AccessType is the coarse authorization category of an operation.
type AccessType string

const (
	AccessRead  AccessType = "read"
	AccessWrite AccessType = "write"
	AccessAdmin AccessType = "admin"
	// AccessMisc covers server-side and unclassifiable statements. It has no
	// permission family, so non-admin principals can never satisfy it.
	AccessMisc AccessType = "misc"
)

const (
	// Wildcard marks an unresolvable table name ("any table").
	Wildcard = "*"
	// SystemDatabase is the fixed database that owns server-internal objects.
	SystemDatabase = "system"
	// FallbackDatabase is used when neither the statement nor the connection
	// names a database.
	FallbackDatabase = "default"
)

// TableReference is one object a statement reads or writes. An empty Database
// means "resolve against the statement's default database at validation
// time". Table is never empty; unresolvable names carry the Wildcard marker.
type TableReference struct {
	Database string `json:"database,omitempty"`
	Table    string `json:"table"`
}

// ParsedStatement is the structured form of a single statement. Diagnostics
// records why the fallback path ran; it is observability-only and carries no
// authorization weight.
type ParsedStatement struct {
	Text          string           `json:"text"`
	OperationKind OperationKind    `json:"operation_kind"`
	Tables        []TableReference `json:"tables"`
	Diagnostics   []string         `json:"diagnostics,omitempty"`
}

// ValidationResult is the verdict over a whole (possibly multi-statement)
// SQL string. StatementIndex locates the first failing statement and is nil
// when the batch is allowed.
type ValidationResult struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason,omitempty"`
	StatementIndex *int   `json:"statement_index,omitempty"`
}

// DeniedAt builds a denial locating the failing statement.
func DeniedAt(index int, reason string) *ValidationResult {
	return &ValidationResult{Allowed: false, Reason: reason, StatementIndex: &index}
}

// Denied builds a denial with no statement locator.
func Denied(reason string) *ValidationResult {
	return &ValidationResult{Allowed: false, Reason: reason}
}

// Allowed builds the affirmative verdict.
func Allowed() *ValidationResult {
	return &ValidationResult{Allowed: true}
}

// tableSet accumulates references in order, deduplicating by lower-cased
// (database, table) and preferring the variant that names a database
// explicitly over a bare table name.
type tableSet struct {
	refs  []TableReference
	index map[string]int
}

func newTableSet() *tableSet {
	return &tableSet{index: make(map[string]int)}
}

func (s *tableSet) add(ref TableReference) {
	if ref.Table == "" {
		return
	}
	table := strings.ToLower(ref.Table)
	if ref.Database == "" {
		// A variant of this name, bare or qualified, is already present.
		if _, ok := s.index[table]; ok {
			return
		}
		s.index[table] = len(s.refs)
		s.refs = append(s.refs, ref)
		return
	}

	qualified := strings.ToLower(ref.Database) + "." + table
	if _, ok := s.index[qualified]; ok {
		return
	}
	if i, ok := s.index[table]; ok && s.refs[i].Database == "" {
		// Upgrade the bare variant in place; qualified wins.
		s.refs[i] = ref
		s.index[qualified] = i
		return
	}
	s.index[qualified] = len(s.refs)
	if _, ok := s.index[table]; !ok {
		s.index[table] = len(s.refs)
	}
	s.refs = append(s.refs, ref)
}

func (s *tableSet) list() []TableReference {
	return s.refs
}

// ResolveTables defaults every reference against defaultDatabase (or the
// fixed fallback) and normalizes empty table names to the wildcard marker.
// Deduplication preferring database-qualified variants already happened at
// extraction time.
func ResolveTables(refs []TableReference, defaultDatabase string) []TableReference {
	if defaultDatabase == "" {
		defaultDatabase = FallbackDatabase
	}
	resolved := make([]TableReference, 0, len(refs))
	for _, ref := range refs {
		if ref.Database == "" {
			ref.Database = defaultDatabase
		}
		if ref.Table == "" {
			ref.Table = Wildcard
		}
		resolved = append(resolved, ref)
	}
	return resolved
}
