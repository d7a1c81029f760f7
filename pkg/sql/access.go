package sql

// ClassifyAccessType maps an operation kind to its authorization category.
// Pure and total: every kind has exactly one category, and OpUnknown maps to
// AccessMisc (the most restricted default), never to AccessRead.
func ClassifyAccessType(kind OperationKind) AccessType {
	switch kind {
	case OpSelect:
		return AccessRead
	case OpInsert, OpUpdate, OpDelete:
		return AccessWrite
	case OpCreate, OpDrop, OpAlter, OpTruncate:
		return AccessAdmin
	default:
		// show, describe, use, set, explain, exists, check, kill, unknown
		return AccessMisc
	}
}
