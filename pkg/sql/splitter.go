package sql

import "strings"

// lexState tracks where the splitter is inside the statement text. The
// states are mutually exclusive; a semicolon terminates a statement only in
// stateNormal.
type lexState int

const (
	stateNormal lexState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateLineComment
	stateBlockComment
)

// SplitStatements splits a raw multi-statement SQL string into trimmed,
// non-empty single-statement strings. Semicolons inside quoted spans
// (single, double, backtick) and inside line or block comments never split.
// Backslash-escaped quotes do not close their span. Empty fragments (for
// example consecutive ";;") are dropped, and the final statement does not
// need a terminator. The function never fails; worst case it returns the
// whole input as one statement.
func SplitStatements(sqlText string) []string {
	var statements []string
	var current strings.Builder

	state := stateNormal
	runes := []rune(sqlText)

	flush := func() {
		stmt := strings.Trim(current.String(), " \t\r\n;")
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case ch == ';':
				flush()
				continue
			case ch == '\'':
				state = stateSingleQuote
			case ch == '"':
				state = stateDoubleQuote
			case ch == '`':
				state = stateBacktick
			case ch == '-' && next == '-':
				state = stateLineComment
			case ch == '/' && next == '*':
				state = stateBlockComment
				current.WriteRune(ch)
				current.WriteRune(next)
				i++
				continue
			}
		case stateSingleQuote:
			if ch == '\\' && next == '\'' {
				current.WriteRune(ch)
				current.WriteRune(next)
				i++
				continue
			}
			if ch == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '\\' && next == '"' {
				current.WriteRune(ch)
				current.WriteRune(next)
				i++
				continue
			}
			if ch == '"' {
				state = stateNormal
			}
		case stateBacktick:
			if ch == '\\' && next == '`' {
				current.WriteRune(ch)
				current.WriteRune(next)
				i++
				continue
			}
			if ch == '`' {
				state = stateNormal
			}
		case stateLineComment:
			if ch == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if ch == '*' && next == '/' {
				state = stateNormal
				current.WriteRune(ch)
				current.WriteRune(next)
				i++
				continue
			}
		}

		current.WriteRune(ch)
	}
	flush()

	return statements
}
