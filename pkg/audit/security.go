// Package audit provides security audit logging for SIEM consumption.
// Every access decision the engine makes — denials, admin bypasses,
// injection findings — is logged as structured JSON so downstream tooling
// can alert on it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datalens-io/querygate/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventAccessDenied is logged whenever the validator refuses a statement.
	EventAccessDenied SecurityEventType = "access_denied"
	// EventAccessGranted is logged for allowed batches (optional, high volume).
	EventAccessGranted SecurityEventType = "access_granted"
	// EventAdminBypass is logged when a super-user skips the grant checks.
	EventAdminBypass SecurityEventType = "admin_bypass"
	// EventSQLInjectionAttempt is logged when libinjection flags a parameter value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
)

// SecurityEvent is one auditable event with the context a SIEM needs.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	PrincipalID  string            `json:"principal_id,omitempty"`
	ConnectionID uuid.UUID         `json:"connection_id,omitempty"`
	ClientIP     string            `json:"client_ip,omitempty"`
	Details      any               `json:"details,omitempty"`
	Severity     string            `json:"severity"` // info, warning, critical
}

// AccessDecisionDetails locates a denial precisely: which statement, which
// operation, which object, and why.
type AccessDecisionDetails struct {
	StatementIndex int    `json:"statement_index"`
	OperationKind  string `json:"operation_kind"`
	AccessType     string `json:"access_type"`
	Database       string `json:"database,omitempty"`
	Table          string `json:"table,omitempty"`
	Reason         string `json:"reason"`
}

// InjectionDetails describes a parameter value flagged by libinjection.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	Fingerprint string `json:"fingerprint"`
}

// SecurityAuditor logs security events in structured JSON form.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor under a dedicated logger namespace
// so SIEM pipelines can filter on it.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogAccessDenied records a refused statement at WARN with "warning"
// severity; denials are expected behavior, not incidents.
func (a *SecurityAuditor) LogAccessDenied(ctx context.Context, principalID string, details AccessDecisionDetails, conn *models.ConnectionContext) {
	event := a.newEvent(EventAccessDenied, principalID, details, conn, "warning")
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Query access denied",
		zap.String("event_json", string(eventJSON)),
		zap.String("principal_id", principalID),
		zap.Int("statement_index", details.StatementIndex),
		zap.String("operation_kind", details.OperationKind),
		zap.String("access_type", details.AccessType),
		zap.String("database", details.Database),
		zap.String("table", details.Table),
	)
}

// LogAccessGranted records an allowed batch at INFO. Can be high volume;
// callers may choose not to emit it.
func (a *SecurityAuditor) LogAccessGranted(ctx context.Context, principalID string, statementCount int, conn *models.ConnectionContext) {
	event := a.newEvent(EventAccessGranted, principalID, map[string]int{"statement_count": statementCount}, conn, "info")
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Query access granted",
		zap.String("event_json", string(eventJSON)),
		zap.String("principal_id", principalID),
		zap.Int("statement_count", statementCount),
	)
}

// LogAdminBypass records a super-user skipping grant checks at INFO. The
// trail matters because admin traffic is otherwise invisible to the grant
// store.
func (a *SecurityAuditor) LogAdminBypass(ctx context.Context, principalID string, conn *models.ConnectionContext) {
	event := a.newEvent(EventAdminBypass, principalID, nil, conn, "info")
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Admin bypassed access checks",
		zap.String("event_json", string(eventJSON)),
		zap.String("principal_id", principalID),
	)
}

// LogInjectionAttempt records a flagged parameter value at ERROR with
// "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, principalID string, details InjectionDetails, conn *models.ConnectionContext) {
	event := a.newEvent(EventSQLInjectionAttempt, principalID, details, conn, "critical")
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("principal_id", principalID),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
	)
}

func (a *SecurityAuditor) newEvent(eventType SecurityEventType, principalID string, details any, conn *models.ConnectionContext, severity string) SecurityEvent {
	event := SecurityEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		Details:     details,
		Severity:    severity,
	}
	if conn != nil {
		event.ConnectionID = conn.ID
		event.ClientIP = conn.ClientAddr
	}
	return event
}
