package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ironcurtain/internal/audit"
	"ironcurtain/internal/mediator"
	"ironcurtain/internal/roles"
)

// wireRequest is the line-delimited JSON shape a caller (the agent loop)
// sends on stdin for one mediation request.
type wireRequest struct {
	RequestID string                  `json:"request_id"`
	Server    string                  `json:"server_name"`
	Tool      string                  `json:"tool_name"`
	Arguments map[string]roles.Value  `json:"arguments"`
}

// wireOutcome is the line-delimited JSON shape written back on stdout.
type wireOutcome struct {
	RequestID    string `json:"request_id"`
	Verdict      string `json:"verdict"`
	RuleName     string `json:"rule_name"`
	Reason       string `json:"reason"`
	EscalationID string `json:"escalation_id,omitempty"`
	Result       any    `json:"result,omitempty"`
	ToolError    string `json:"tool_error,omitempty"`
}

// Server adapts the mediator.Driver to the line-delimited JSON protocol
// cmd/ironcurtaind speaks on stdio — a thin stand-in for "the agent loop
// calls the kernel" (SPEC_FULL.md §4.6), since the loop itself is out of
// scope. Kept separate from main() so it is unit-testable without a
// process boundary, matching the teacher's Gateway/NewGateway split.
type Server struct {
	driver         *mediator.Driver
	sessionBudget  time.Duration
}

// NewServer builds a Server around driver.
func NewServer(driver *mediator.Driver, sessionBudget time.Duration) *Server {
	return &Server{driver: driver, sessionBudget: sessionBudget}
}

// HandleLine decodes one wireRequest, runs it through the driver bounded
// by the per-session wall-clock budget (spec.md §5 "Cancellation and
// timeouts"), and returns the encoded wireOutcome.
func (s *Server) HandleLine(ctx context.Context, line []byte) ([]byte, error) {
	var wreq wireRequest
	if err := json.Unmarshal(line, &wreq); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.sessionBudget)
	defer cancel()
	reqCtx = audit.WithTraceContext(reqCtx, audit.NewTraceContext("stdio", ""))

	out := s.driver.Handle(reqCtx, mediator.Request{
		RequestID: wreq.RequestID,
		Server:    wreq.Server,
		Tool:      wreq.Tool,
		Arguments: wreq.Arguments,
		Timestamp: time.Now(),
	})

	wout := wireOutcome{
		RequestID:    out.RequestID,
		Verdict:      string(out.Verdict),
		RuleName:     out.RuleName,
		Reason:       out.Reason,
		EscalationID: out.EscalationID,
		ToolError:    out.ToolError,
	}
	if out.Verdict == "allow" {
		wout.Result = out.Result.Value
	}

	return json.Marshal(wout)
}
