// Package mediator implements the Mediation Driver (spec.md §4.6): the
// outer loop that takes a request from the agent, runs it through
// classification, the structural invariant layer, and the rule evaluator,
// then either forwards it to a tool server, denies it, or escalates it to
// a human approver before doing one of the first two.
//
// It is grounded in the teacher's audit.GatewayAuditor (classification →
// policy decision → audit event) and the Sentinel-Gate example's
// PolicyActionInterceptor (evaluate → branch on verdict → forward-or-deny
// → log), fused into the single loop spec.md §4.6 describes.
package mediator

import (
	"context"
	"time"

	"ironcurtain/internal/policy"
	"ironcurtain/internal/roles"
)

// Request is the mediator's view of spec.md §3's Request: immutable once
// created by the caller.
type Request struct {
	RequestID string
	Server    string
	Tool      string
	Arguments map[string]roles.Value
	Timestamp time.Time
}

// ToolResult is whatever the downstream tool server returned for an
// allowed (or approved-by-human) request. Its shape is the caller's
// concern; the mediator only passes it through to the returned Outcome.
// It is not written to the audit record.
type ToolResult struct {
	Value any
}

// ToolForwarder is the narrow interface to the downstream tool server
// (spec.md §4.6: "the downstream 'tool server' ... is a narrow interface,
// implementations are the caller's concern").
type ToolForwarder interface {
	Forward(ctx context.Context, req Request) (ToolResult, error)
}

// ToolForwarderFunc adapts a plain function to ToolForwarder.
type ToolForwarderFunc func(ctx context.Context, req Request) (ToolResult, error)

func (f ToolForwarderFunc) Forward(ctx context.Context, req Request) (ToolResult, error) {
	return f(ctx, req)
}

// Outcome is what Handle returns to the agent: the final verdict plus,
// when allowed, the downstream result, or, on a tool error, the error
// text (spec.md §4.6: "the verdict itself does not change retroactively").
type Outcome struct {
	RequestID string
	Verdict   policy.Verdict
	RuleName  string
	Reason    string

	// EscalationID is set only when the request was escalated.
	EscalationID string

	// Result is the downstream tool's response, present only when Verdict
	// is allow and the tool call succeeded.
	Result ToolResult

	// ToolError is the downstream tool server's error text, present only
	// when the request was allowed (directly or via approval) but the
	// forward call itself failed.
	ToolError string
}

// Denied reports whether the agent must not receive a downstream result:
// true for deny, and for escalate resolved to denied or expired.
func (o Outcome) Denied() bool {
	return o.Verdict == policy.Deny
}
