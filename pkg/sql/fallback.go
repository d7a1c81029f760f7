package sql

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// The fallback path runs only when the grammar rejects a statement, which
// happens routinely for dialect-specific syntax (EXISTS TABLE, CHECK TABLE,
// KILL QUERY WHERE, engine-specific DDL clauses). It classifies by leading
// keyword and extracts table references with an ordered pattern chain. The
// ordering is deliberate and security-relevant; do not reorder.

// keywordKinds maps leading keywords to operation kinds, tested in order.
var keywordKinds = []struct {
	keyword string
	kind    OperationKind
}{
	{"SELECT", OpSelect},
	{"WITH", OpSelect},
	{"INSERT", OpInsert},
	{"UPDATE", OpUpdate},
	{"DELETE", OpDelete},
	{"CREATE", OpCreate},
	{"DROP", OpDrop},
	{"ALTER", OpAlter},
	{"TRUNCATE", OpTruncate},
	{"SHOW", OpShow},
	{"DESCRIBE", OpDescribe},
	{"DESC", OpDescribe},
	{"USE", OpUse},
	{"SET", OpSet},
	{"EXPLAIN", OpExplain},
	{"EXISTS", OpExists},
	{"CHECK", OpCheck},
	{"KILL", OpKill},
}

// identPattern matches `db`.`table` or a bare `table`, with optional
// backticks around either part.
const identPattern = "`?([A-Za-z_][A-Za-z0-9_]*)`?(?:\\.`?([A-Za-z_][A-Za-z0-9_]*)`?)?"

// fallbackTablePatterns is the ordered extraction chain. Every match over
// the whitespace-collapsed statement contributes one reference; the table
// set deduplicates overlaps between patterns.
var fallbackTablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:DROP|CREATE|ALTER|TRUNCATE)\s+TABLE\s+(?:IF\s+(?:NOT\s+)?EXISTS\s+)?` + identPattern),
	regexp.MustCompile(`(?i)\bFROM\s+` + identPattern),
	regexp.MustCompile(`(?i)\bINTO\s+` + identPattern),
	regexp.MustCompile(`(?i)\bUPDATE\s+` + identPattern),
	regexp.MustCompile(`(?i)\bTABLE\s+` + identPattern),
	regexp.MustCompile(`(?i)\bJOIN\s+` + identPattern),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// reservedAfterClause keeps clause keywords that follow FROM/JOIN in exotic
// statements from being read as table names.
var reservedAfterClause = map[string]struct{}{
	"select": {}, "where": {}, "values": {}, "set": {}, "join": {},
	"inner": {}, "left": {}, "right": {}, "full": {}, "cross": {},
	"group": {}, "order": {}, "limit": {}, "on": {}, "using": {},
	"table": {}, "if": {}, "not": {}, "exists": {},
}

// fallbackParse classifies and extracts references without the grammar.
// It records the grammar failure as a diagnostic and never fails itself.
func fallbackParse(text string, parseErr error) *ParsedStatement {
	stmt := &ParsedStatement{
		Text:          text,
		OperationKind: classifyByKeyword(text),
		Diagnostics: []string{
			fmt.Sprintf("grammar parse failed, used heuristic extraction: %v", parseErr),
		},
	}

	collapsed := whitespaceRun.ReplaceAllString(text, " ")
	scope := newCTEScope()
	scanCTENames(collapsed, scope)

	set := newTableSet()
	for _, pattern := range fallbackTablePatterns {
		for _, match := range pattern.FindAllStringSubmatch(collapsed, -1) {
			ref := referenceFromMatch(match)
			if ref.Table == "" {
				continue
			}
			if _, reserved := reservedAfterClause[strings.ToLower(ref.Table)]; reserved && ref.Database == "" {
				continue
			}
			if ref.Database == "" && scope.contains(ref.Table) {
				continue
			}
			set.add(ref)
		}
	}
	stmt.Tables = set.list()
	return stmt
}

func classifyByKeyword(text string) OperationKind {
	trimmed := strings.TrimSpace(text)
	upper := strings.ToUpper(trimmed)
	for _, entry := range keywordKinds {
		if strings.HasPrefix(upper, entry.keyword) {
			rest := upper[len(entry.keyword):]
			if rest == "" || !isIdentChar(rune(rest[0])) {
				return entry.kind
			}
		}
	}
	return OpUnknown
}

func referenceFromMatch(match []string) TableReference {
	if len(match) > 2 && match[2] != "" {
		return TableReference{Database: match[1], Table: match[2]}
	}
	return TableReference{Table: match[1]}
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// scanCTENames is the grammar-independent CTE resolver: a bracket-depth
// aware scan of the raw text that records every name declared between
// WITH/WITH RECURSIVE and its defining body, recursing into each body with a
// copy of the scope so nested WITH clauses are honored and sibling names do
// not leak across branches.
func scanCTENames(text string, scope cteScope) {
	upper := asciiUpper(text)
	offset := 0
	for {
		idx := indexOfKeyword(upper[offset:], "WITH")
		if idx < 0 {
			return
		}
		pos := offset + idx + len("WITH")
		pos = skipSpaces(text, pos)
		if hasKeywordAt(upper, pos, "RECURSIVE") {
			pos = skipSpaces(text, pos+len("RECURSIVE"))
		}

		for {
			name, next := readIdentifier(text, pos)
			if name == "" {
				break
			}
			next = skipSpaces(text, next)
			// Optional column list: name (a, b) AS (...)
			if next < len(text) && text[next] == '(' {
				next = skipBalanced(text, next)
				next = skipSpaces(text, next)
			}
			if !hasKeywordAt(upper, next, "AS") {
				break
			}
			next = skipSpaces(text, next+len("AS"))
			if next >= len(text) || text[next] != '(' {
				break
			}
			bodyEnd := skipBalanced(text, next)
			scope.add(name)

			// The body may declare its own CTEs; scan it with a copied
			// scope, then fold any names it found back for table exclusion.
			// The pattern chain that consumes this scope matches over the
			// whole statement with no positional information, so nested
			// names must be visible globally. Consequence: a real table
			// elsewhere in the statement sharing a nested CTE's name is
			// excluded too. The grammar path scopes precisely; this flat
			// scan only runs when the grammar has already rejected the text.
			bodyScope := scope.clone()
			if bodyEnd-1 > next+1 {
				scanCTENames(text[next+1:bodyEnd-1], bodyScope)
			}
			for nested := range bodyScope {
				scope.add(nested)
			}

			pos = skipSpaces(text, bodyEnd)
			if pos < len(text) && text[pos] == ',' {
				pos = skipSpaces(text, pos+1)
				continue
			}
			break
		}
		offset = pos
		if offset >= len(text) {
			return
		}
	}
}

// asciiUpper upper-cases a-z only, preserving byte offsets so positions in
// the upper-cased copy line up with the original text.
func asciiUpper(text string) string {
	buf := []byte(text)
	for i, b := range buf {
		if b >= 'a' && b <= 'z' {
			buf[i] = b - ('a' - 'A')
		}
	}
	return string(buf)
}

// indexOfKeyword finds a word-boundary occurrence of an upper-cased keyword.
func indexOfKeyword(upper, keyword string) int {
	searched := 0
	for {
		idx := strings.Index(upper[searched:], keyword)
		if idx < 0 {
			return -1
		}
		abs := searched + idx
		beforeOK := abs == 0 || !isIdentChar(rune(upper[abs-1]))
		afterOK := abs+len(keyword) >= len(upper) || !isIdentChar(rune(upper[abs+len(keyword)]))
		if beforeOK && afterOK {
			return abs
		}
		searched = abs + len(keyword)
	}
}

func hasKeywordAt(upper string, pos int, keyword string) bool {
	if pos+len(keyword) > len(upper) {
		return false
	}
	if upper[pos:pos+len(keyword)] != keyword {
		return false
	}
	end := pos + len(keyword)
	return end >= len(upper) || !isIdentChar(rune(upper[end]))
}

func skipSpaces(text string, pos int) int {
	for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t' || text[pos] == '\n' || text[pos] == '\r') {
		pos++
	}
	return pos
}

func readIdentifier(text string, pos int) (string, int) {
	start := pos
	if pos < len(text) && text[pos] == '`' {
		end := strings.IndexByte(text[pos+1:], '`')
		if end < 0 {
			return "", pos
		}
		return text[pos+1 : pos+1+end], pos + end + 2
	}
	for pos < len(text) && isIdentChar(rune(text[pos])) {
		pos++
	}
	if pos == start {
		return "", pos
	}
	return text[start:pos], pos
}

// skipBalanced advances past a parenthesized span starting at an opening
// paren, returning the index just after its matching close. Unbalanced text
// returns the end of the string.
func skipBalanced(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(text)
}
