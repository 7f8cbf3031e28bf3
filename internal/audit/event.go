// Package audit provides structured, hash-chained audit logging for
// policy mediation decisions (spec.md §4.5).
package audit

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of audit record.
type EventType string

const (
	// EventTypeDecision is the one record spec.md §4.5 requires "per
	// request-final-outcome".
	EventTypeDecision EventType = "request_decision"

	// EventTypeGovernanceViolation records a fix-mode/enforcing-mode
	// governance gate failure (config.EnforceOperatingMode).
	EventTypeGovernanceViolation EventType = "governance_violation"
)

// Verdict mirrors policy.Verdict as a plain string so this package does
// not need to import internal/policy — the audit record is a sink, not a
// participant in rule evaluation.
type Verdict string

const (
	VerdictAllow    Verdict = "allow"
	VerdictDeny     Verdict = "deny"
	VerdictEscalate Verdict = "escalate"
)

// Outcome tags the downstream disposition of a request (spec.md §4.6).
type Outcome string

const (
	OutcomeForwarded      Outcome = "forwarded"
	OutcomeDenied         Outcome = "denied"
	OutcomeApprovedByHuman Outcome = "approved-by-human"
	OutcomeToolError      Outcome = "tool-error"
	OutcomeTimeout        Outcome = "timeout"

	// OutcomeBrokerError tags a request denied because the escalation
	// broker itself failed (a malformed response file, an unreadable
	// escalation directory, ...) rather than because nobody answered in
	// time. spec.md §7: "treat as equivalent to denied with reason
	// broker-error. Never treat as approved." Kept distinct from
	// OutcomeTimeout so an operator can tell "nobody answered" from "the
	// broker is broken" in the audit trail.
	OutcomeBrokerError Outcome = "broker-error"
)

// EscalationResolution records how an escalated request was resolved
// (spec.md §3 "Escalation Record"), embedded in the final audit entry for
// that request rather than logged as a separate record.
type EscalationResolution struct {
	EscalationID string `json:"escalation_id"`
	State        string `json:"state"` // approved, denied, expired, broker-error
}

// GovernanceViolation records a fix-mode/enforcing-mode compliance
// failure, adapted from the teacher's agentutil.CheckFixModeViolations.
type GovernanceViolation struct {
	OperatingMode string `json:"operating_mode"`
	Module        string `json:"module"`
	Severity      string `json:"severity"` // fatal or warning
	Description   string `json:"description"`
	Remediation   string `json:"remediation,omitempty"`
}

// Event is a single audit record: spec.md §4.5's "Audit Entry"
// (`{timestamp, request-id, server-name, tool-name, arguments, verdict,
// escalation-resolution, duration-milliseconds, downstream-outcome}`),
// extended with the teacher's hash-chain fields for tamper evidence.
type Event struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`

	TraceID  string `json:"trace_id,omitempty"`
	ParentID string `json:"parent_id,omitempty"`

	// Hash chain for tamper evidence.
	PrevHash  string `json:"prev_hash,omitempty"`
	EventHash string `json:"event_hash,omitempty"`

	RequestID string `json:"request_id"`
	Server    string `json:"server_name"`
	Tool      string `json:"tool_name"`
	// Arguments is the sanitized, already-classified argument set,
	// marshalled by the caller so this package does not depend on
	// internal/roles.
	Arguments json.RawMessage `json:"arguments,omitempty"`

	Verdict  Verdict `json:"verdict,omitempty"`
	RuleName string  `json:"rule_name,omitempty"`
	Reason   string  `json:"reason,omitempty"`

	Escalation *EscalationResolution `json:"escalation,omitempty"`

	DurationMillis int64   `json:"duration_ms"`
	Outcome        Outcome `json:"downstream_outcome,omitempty"`
	ToolError      string  `json:"tool_error,omitempty"`

	GovernanceViolation *GovernanceViolation `json:"governance_violation,omitempty"`
}

// MarshalJSON formats Timestamp with nanosecond precision, matching the
// teacher's Event.MarshalJSON convention.
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(e),
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	})
}

// String returns a JSON string representation of the event.
func (e *Event) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}
