package sql

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"
)

// ParseStatement analyzes one statement: operation kind plus every
// (database, table) pair it touches. The primary path runs the text through
// a MySQL-compatible grammar (the target engine's SQL is close enough for
// classification and reference extraction); when the grammar rejects the
// text, the regex fallback takes over and the failure is recorded as a
// diagnostic. ParseStatement never returns an error: unclassifiable input
// comes back as OpUnknown, which the access layer treats as most restricted.
//
// A fresh parser instance is created per call; the grammar parser keeps
// internal state and is not safe for concurrent reuse.
func ParseStatement(statementText string) *ParsedStatement {
	text := strings.TrimSpace(statementText)
	stmt := &ParsedStatement{Text: text}
	if text == "" {
		stmt.OperationKind = OpUnknown
		return stmt
	}

	nodes, _, err := parser.New().Parse(text, "", "")
	if err != nil || len(nodes) == 0 {
		if err == nil {
			err = fmt.Errorf("grammar produced no statement")
		}
		return fallbackParse(text, err)
	}

	node := nodes[0]
	stmt.OperationKind = operationKindOf(node, text)

	set := newTableSet()
	collectStatementTables(node, newCTEScope(), set)
	stmt.Tables = set.list()
	return stmt
}

// operationKindOf derives the operation kind from the parsed node type.
// DESCRIBE arrives from the grammar as an EXPLAIN-shaped node, so the two
// are told apart by the leading keyword of the original text.
func operationKindOf(node ast.StmtNode, text string) OperationKind {
	switch node.(type) {
	case *ast.SelectStmt, *ast.SetOprStmt:
		return OpSelect
	case *ast.InsertStmt:
		return OpInsert
	case *ast.UpdateStmt:
		return OpUpdate
	case *ast.DeleteStmt:
		return OpDelete
	case *ast.CreateTableStmt, *ast.CreateDatabaseStmt, *ast.CreateIndexStmt, *ast.CreateViewStmt:
		return OpCreate
	case *ast.DropTableStmt, *ast.DropDatabaseStmt, *ast.DropIndexStmt:
		return OpDrop
	case *ast.AlterTableStmt, *ast.AlterDatabaseStmt:
		return OpAlter
	case *ast.TruncateTableStmt:
		return OpTruncate
	case *ast.ShowStmt:
		return OpShow
	case *ast.ExplainStmt:
		upper := strings.ToUpper(text)
		if strings.HasPrefix(upper, "DESC") {
			return OpDescribe
		}
		return OpExplain
	case *ast.UseStmt:
		return OpUse
	case *ast.SetStmt:
		return OpSet
	case *ast.KillStmt:
		return OpKill
	default:
		return OpUnknown
	}
}

// cteScope is the set of lower-cased CTE names visible at the current point
// of the walk. Scopes are copied, never shared, when descending into a
// nested body so a sibling CTE's name cannot leak into an unrelated branch.
type cteScope map[string]struct{}

func newCTEScope() cteScope {
	return make(cteScope)
}

func (s cteScope) clone() cteScope {
	out := make(cteScope, len(s))
	for name := range s {
		out[name] = struct{}{}
	}
	return out
}

func (s cteScope) add(name string) {
	s[strings.ToLower(name)] = struct{}{}
}

func (s cteScope) contains(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// applyWithClause walks every CTE body (those nested tables are
// authorization-relevant) and returns the scope in effect for the statement
// body. Each CTE body sees the names declared before it, plus its own name
// when the clause is recursive.
func applyWithClause(with *ast.WithClause, scope cteScope, set *tableSet) cteScope {
	if with == nil {
		return scope
	}
	outer := scope.clone()
	for _, cte := range with.CTEs {
		if cte == nil {
			continue
		}
		bodyScope := outer.clone()
		if with.IsRecursive {
			bodyScope.add(cte.Name.L)
		}
		if cte.Query != nil && cte.Query.Query != nil {
			collectResultSetTables(cte.Query.Query, bodyScope, set)
		}
		outer.add(cte.Name.L)
	}
	return outer
}

// collectStatementTables gathers table references from a top-level statement
// node. DML target clauses and DDL table clauses count alongside FROM/JOIN
// sources; CTE names in scope are dropped because they are not storage
// objects.
func collectStatementTables(node ast.StmtNode, scope cteScope, set *tableSet) {
	switch stmt := node.(type) {
	case *ast.SelectStmt, *ast.SetOprStmt:
		collectResultSetTables(stmt.(ast.ResultSetNode), scope, set)
	case *ast.InsertStmt:
		if stmt.Table != nil {
			collectJoinTables(stmt.Table.TableRefs, scope, set)
		}
		if stmt.Select != nil {
			collectResultSetTables(stmt.Select, scope, set)
		}
	case *ast.UpdateStmt:
		scope = applyWithClause(stmt.With, scope, set)
		if stmt.TableRefs != nil {
			collectJoinTables(stmt.TableRefs.TableRefs, scope, set)
		}
	case *ast.DeleteStmt:
		scope = applyWithClause(stmt.With, scope, set)
		if stmt.TableRefs != nil {
			collectJoinTables(stmt.TableRefs.TableRefs, scope, set)
		}
		if stmt.Tables != nil {
			for _, tbl := range stmt.Tables.Tables {
				addTableName(tbl, scope, set)
			}
		}
	case *ast.CreateTableStmt:
		addTableName(stmt.Table, scope, set)
		addTableName(stmt.ReferTable, scope, set)
		if stmt.Select != nil {
			collectResultSetTables(stmt.Select, scope, set)
		}
	case *ast.DropTableStmt:
		for _, tbl := range stmt.Tables {
			addTableName(tbl, scope, set)
		}
	case *ast.AlterTableStmt:
		addTableName(stmt.Table, scope, set)
	case *ast.TruncateTableStmt:
		addTableName(stmt.Table, scope, set)
	case *ast.CreateIndexStmt:
		addTableName(stmt.Table, scope, set)
	case *ast.DropIndexStmt:
		addTableName(stmt.Table, scope, set)
	case *ast.CreateViewStmt:
		addTableName(stmt.ViewName, scope, set)
		if stmt.Select != nil {
			collectStatementTables(stmt.Select, scope, set)
		}
	case *ast.ShowStmt:
		addTableName(stmt.Table, scope, set)
	case *ast.ExplainStmt:
		if stmt.Stmt != nil {
			collectStatementTables(stmt.Stmt, scope, set)
		}
	}
}

// collectResultSetTables recurses into SELECT-shaped nodes: plain selects,
// set operations (UNION and friends) and FROM-clause subqueries, flattening
// every real table into the same set.
func collectResultSetTables(node ast.ResultSetNode, scope cteScope, set *tableSet) {
	switch rs := node.(type) {
	case *ast.SelectStmt:
		scope = applyWithClause(rs.With, scope, set)
		if rs.From != nil {
			collectJoinTables(rs.From.TableRefs, scope, set)
		}
	case *ast.SetOprStmt:
		scope = applyWithClause(rs.With, scope, set)
		if rs.SelectList != nil {
			collectSetOprTables(rs.SelectList, scope, set)
		}
	case *ast.SubqueryExpr:
		if rs.Query != nil {
			collectResultSetTables(rs.Query, scope, set)
		}
	case *ast.Join:
		collectJoinTables(rs, scope, set)
	case *ast.TableSource:
		collectResultSetTables(rs.Source, scope, set)
	case *ast.TableName:
		addTableName(rs, scope, set)
	}
}

// collectSetOprTables flattens one branch list of a set operation. A
// parenthesized group arrives as a nested *ast.SetOprSelectList, which is not
// an ast.ResultSetNode at this parser version and must be recursed into
// explicitly; every branch must reach the set or the grant check misses it.
func collectSetOprTables(list *ast.SetOprSelectList, scope cteScope, set *tableSet) {
	scope = applyWithClause(list.With, scope, set)
	for _, sel := range list.Selects {
		switch branch := sel.(type) {
		case *ast.SetOprSelectList:
			collectSetOprTables(branch, scope.clone(), set)
		case ast.ResultSetNode:
			collectResultSetTables(branch, scope.clone(), set)
		}
	}
}

func collectJoinTables(join *ast.Join, scope cteScope, set *tableSet) {
	if join == nil {
		return
	}
	if join.Left != nil {
		collectResultSetTables(join.Left, scope, set)
	}
	if join.Right != nil {
		collectResultSetTables(join.Right, scope, set)
	}
}

// addTableName records a grammar-level table reference unless it names a CTE
// in scope. Quote stripping is unnecessary here: the grammar already yields
// bare identifiers.
func addTableName(name *ast.TableName, scope cteScope, set *tableSet) {
	if name == nil || name.Name.O == "" {
		return
	}
	if name.Schema.O == "" && scope.contains(name.Name.L) {
		return
	}
	set.add(TableReference{Database: name.Schema.O, Table: name.Name.O})
}
