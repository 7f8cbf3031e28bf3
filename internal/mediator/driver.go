package mediator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ironcurtain/internal/annotation"
	"ironcurtain/internal/audit"
	"ironcurtain/internal/classify"
	"ironcurtain/internal/escalation"
	"ironcurtain/internal/policy"
	"ironcurtain/internal/roles"
	"ironcurtain/internal/structural"
)

// Config assembles a Driver's dependencies. Every field is a process-wide,
// read-only shared resource except Forwarder, which is per-deployment
// (spec.md §5 "Shared resources").
type Config struct {
	Roles       *roles.Registry
	Annotations *annotation.Set
	Structural  structural.Config
	Engine      *policy.Engine
	Broker      *escalation.Broker
	Auditor     audit.Auditor
	Forwarder   ToolForwarder

	// EscalationTimeout bounds how long Handle waits for an escalation to
	// resolve before treating it as expired (spec.md §4.4).
	EscalationTimeout time.Duration
}

// Driver serves one logical session: request handling is cooperative and
// single-goroutine, suspending only while awaiting an escalation response
// or the downstream tool server (spec.md §5 "Scheduling model"). A new
// Driver is constructed per session; the dependencies it holds are shared
// read-only across sessions.
type Driver struct {
	roles       *roles.Registry
	annotations *annotation.Set
	structural  structural.Config
	engine      *policy.Engine
	broker      *escalation.Broker
	auditor     audit.Auditor
	forwarder   ToolForwarder

	escalationTimeout time.Duration
}

// New builds a Driver from cfg.
func New(cfg Config) *Driver {
	return &Driver{
		roles:             cfg.Roles,
		annotations:       cfg.Annotations,
		structural:        cfg.Structural,
		engine:            cfg.Engine,
		broker:            cfg.Broker,
		auditor:           cfg.Auditor,
		forwarder:         cfg.Forwarder,
		escalationTimeout: cfg.EscalationTimeout,
	}
}

// Handle runs req through the full classify → structural → rule-evaluate
// → {forward|deny|escalate} loop of spec.md §4.6, auditing exactly once
// per request-final-outcome (spec.md §3 invariant (i)).
func (d *Driver) Handle(ctx context.Context, req Request) Outcome {
	start := time.Now()

	classified := classify.Classify(ctx, d.roles, d.annotations, classify.Request{
		Server:    req.Server,
		Tool:      req.Tool,
		Arguments: req.Arguments,
	})

	sideEffects := false
	if tool, ok := d.annotations.Lookup(req.Server, req.Tool); ok {
		sideEffects = tool.SideEffects
	}

	structResult, concluded, unresolved := structural.Evaluate(structural.EvalContext{
		Config:      d.structural,
		Server:      req.Server,
		Tool:        req.Tool,
		SideEffects: sideEffects,
		Classified:  classified,
	})

	var decision policy.Decision
	if concluded {
		decision = policy.Decision{
			Verdict:  policy.Verdict(structResult.Decision),
			RuleName: structResult.RuleName,
			Reason:   structResult.Reason,
		}
	} else {
		decision = d.engine.Evaluate(policy.EvalInput{
			Server:      req.Server,
			Tool:        req.Tool,
			SideEffects: sideEffects,
			Unresolved:  unresolved,
		})
	}

	return d.resolve(ctx, req, decision, start)
}

// resolve branches on decision.Verdict exactly as spec.md §4.6 prescribes,
// then audits the final outcome once.
func (d *Driver) resolve(ctx context.Context, req Request, decision policy.Decision, start time.Time) Outcome {
	switch decision.Verdict {
	case policy.Allow:
		return d.forwardAndAudit(ctx, req, decision, start, nil)

	case policy.Deny:
		d.audit(ctx, req, decision, start, audit.OutcomeDenied, nil, "")
		return Outcome{RequestID: req.RequestID, Verdict: decision.Verdict, RuleName: decision.RuleName, Reason: decision.Reason}

	case policy.Escalate:
		return d.escalateAndResolve(ctx, req, decision, start)

	default:
		// Unreachable: Verdict is a closed enum produced only by
		// structural.Evaluate or policy.Engine.Evaluate.
		deny := policy.Decision{Verdict: policy.Deny, RuleName: "default-deny", Reason: "unrecognized verdict"}
		d.audit(ctx, req, deny, start, audit.OutcomeDenied, nil, "")
		return Outcome{RequestID: req.RequestID, Verdict: deny.Verdict, RuleName: deny.RuleName, Reason: deny.Reason}
	}
}

// escalateAndResolve publishes req to the broker and awaits its
// resolution, forwarding on approval and denying on denial or expiry
// (spec.md §4.6). No retry: the original decision's rule name is preserved
// on the Outcome regardless of the escalation's resolution; its reason is
// preserved on approval and denial, and replaced on expiry and on a broker
// error.
func (d *Driver) escalateAndResolve(ctx context.Context, req Request, decision policy.Decision, start time.Time) Outcome {
	if d.broker == nil {
		// No broker configured: an escalate verdict that can never be
		// resolved is equivalent to denied (spec.md §7 "broker I/O error").
		d.audit(ctx, req, decision, start, audit.OutcomeDenied, nil, "")
		return Outcome{RequestID: req.RequestID, Verdict: policy.Deny, RuleName: decision.RuleName, Reason: decision.Reason}
	}

	escalationID, err := d.broker.Publish(escalation.Request{
		RequestID: req.RequestID,
		Server:    req.Server,
		Tool:      req.Tool,
		Arguments: req.Arguments,
		RuleName:  decision.RuleName,
		Reason:    decision.Reason,
	})
	if err != nil {
		slog.Error("escalation publish failed", "request_id", req.RequestID, "err", err)
		d.audit(ctx, req, decision, start, audit.OutcomeBrokerError, nil, "")
		return Outcome{RequestID: req.RequestID, Verdict: policy.Deny, RuleName: decision.RuleName, Reason: "broker-error"}
	}

	state, err := d.broker.Await(ctx, escalationID, d.escalationTimeout)

	// A broker I/O error (a malformed response file, an unreadable
	// directory, ...) is distinct from an ordinary unattended expiry:
	// spec.md §7 requires it be treated as denied with reason
	// broker-error, never approved, and be distinguishable in the audit
	// trail from "nobody answered in time".
	if errors.Is(err, escalation.ErrBrokerIO) {
		slog.Error("escalation broker error", "request_id", req.RequestID, "escalation_id", escalationID, "err", err)
		resolution := &audit.EscalationResolution{EscalationID: escalationID, State: "broker-error"}
		d.audit(ctx, req, policy.Decision{Verdict: policy.Deny, RuleName: decision.RuleName, Reason: decision.Reason}, start, audit.OutcomeBrokerError, resolution, "")
		return Outcome{RequestID: req.RequestID, Verdict: policy.Deny, RuleName: decision.RuleName, Reason: "broker-error", EscalationID: escalationID}
	}
	if err != nil && state == "" {
		// Defensive fallback: Await should only pair a zero state with a
		// non-nil error for ErrBrokerIO, handled above.
		state = escalation.Expired
	}

	resolution := &audit.EscalationResolution{EscalationID: escalationID, State: string(state)}

	switch state {
	case escalation.Approved:
		out := d.forwardAndAudit(ctx, req, policy.Decision{Verdict: policy.Allow, RuleName: decision.RuleName, Reason: decision.Reason}, start, resolution)
		out.EscalationID = escalationID
		return out

	default: // Denied or Expired
		outcome := audit.OutcomeDenied
		reason := decision.Reason
		if state == escalation.Expired {
			outcome = audit.OutcomeTimeout
			reason = "escalation timed out awaiting approval"
		}
		d.audit(ctx, req, policy.Decision{Verdict: policy.Deny, RuleName: decision.RuleName, Reason: decision.Reason}, start, outcome, resolution, "")
		return Outcome{RequestID: req.RequestID, Verdict: policy.Deny, RuleName: decision.RuleName, Reason: reason, EscalationID: escalationID}
	}
}

// forwardAndAudit forwards an allowed (direct or approved-by-human)
// request to the downstream tool server and audits the result. A
// downstream error is tagged tool-error and does not retroactively change
// the verdict (spec.md §4.6 "No retry").
func (d *Driver) forwardAndAudit(ctx context.Context, req Request, decision policy.Decision, start time.Time, resolution *audit.EscalationResolution) Outcome {
	outcomeTag := audit.OutcomeForwarded
	if resolution != nil {
		outcomeTag = audit.OutcomeApprovedByHuman
	}

	if d.forwarder == nil {
		d.audit(ctx, req, decision, start, outcomeTag, resolution, "")
		return Outcome{RequestID: req.RequestID, Verdict: policy.Allow, RuleName: decision.RuleName, Reason: decision.Reason}
	}

	result, err := d.forwarder.Forward(ctx, req)
	if err != nil {
		d.audit(ctx, req, decision, start, audit.OutcomeToolError, resolution, err.Error())
		return Outcome{RequestID: req.RequestID, Verdict: policy.Allow, RuleName: decision.RuleName, Reason: decision.Reason, ToolError: err.Error()}
	}

	d.audit(ctx, req, decision, start, outcomeTag, resolution, "")
	return Outcome{RequestID: req.RequestID, Verdict: policy.Allow, RuleName: decision.RuleName, Reason: decision.Reason, Result: result}
}

// audit writes exactly one audit.Event for a request-final-outcome,
// per spec.md §3 invariant (i). A marshal failure falls back to nil
// arguments rather than failing the request (spec.md §4.5: the writer
// must not fail the request on an audit problem).
func (d *Driver) audit(ctx context.Context, req Request, decision policy.Decision, start time.Time, outcome audit.Outcome, resolution *audit.EscalationResolution, toolErr string) {
	if d.auditor == nil {
		return
	}

	var args json.RawMessage
	if b, err := json.Marshal(req.Arguments); err == nil {
		args = b
	}

	event := &audit.Event{
		EventType:      audit.EventTypeDecision,
		TraceID:        audit.TraceIDFromContext(ctx),
		RequestID:      req.RequestID,
		Server:         req.Server,
		Tool:           req.Tool,
		Arguments:      args,
		Verdict:        audit.Verdict(decision.Verdict),
		RuleName:       decision.RuleName,
		Reason:         decision.Reason,
		Escalation:     resolution,
		DurationMillis: time.Since(start).Milliseconds(),
		Outcome:        outcome,
		ToolError:      toolErr,
	}

	if err := d.auditor.Record(ctx, event); err != nil {
		slog.Warn("failed to record audit event", "request_id", req.RequestID, "err", err)
	}
}
