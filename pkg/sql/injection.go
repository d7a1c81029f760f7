package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding records a query parameter whose value carries a SQL
// injection fingerprint. The analysis engine treats findings as grounds for
// refusing the whole batch before any grant check runs.
type InjectionFinding struct {
	ParamName   string // parameter that failed the screen
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       any    // the offending value
}

// ScreenParameter checks one user-supplied parameter value for SQL injection
// patterns. Only strings are screened; numbers and booleans cannot smuggle
// SQL and return nil.
func ScreenParameter(name string, value any) *InjectionFinding {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{
		ParamName:   name,
		Fingerprint: string(fingerprint),
		Value:       value,
	}
}

// ScreenParameters screens every parameter of a validation request and
// returns one finding per dirty value. An empty result means all values are
// clean.
func ScreenParameters(params map[string]any) []*InjectionFinding {
	var findings []*InjectionFinding
	for name, value := range params {
		if finding := ScreenParameter(name, value); finding != nil {
			findings = append(findings, finding)
		}
	}
	return findings
}
