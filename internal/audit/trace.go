package audit

import (
	"context"

	"github.com/google/uuid"
)

// traceContextKey is the context key for trace information.
type traceContextKey struct{}

// TraceContext correlates every audit.Event a single mediation request
// produces (spec.md §4.5's TraceID field) back to the transport that
// admitted it.
type TraceContext struct {
	// TraceID is the mediation request's identifier, carried onto the
	// decision audit.Event so a request can be found in the log without
	// relying on the caller-supplied RequestID alone.
	TraceID string `json:"trace_id"`

	// ParentID is reserved for a future causality chain (e.g. the
	// escalation round trip as its own traced step); unused until a
	// component other than the top-level decision needs one.
	ParentID string `json:"parent_id,omitempty"`

	// Origin identifies which cmd/ironcurtaind transport admitted the
	// request (today, only "stdio").
	Origin string `json:"origin"`

	// Principal is reserved for a caller identity once the kernel grows
	// an authentication layer; this kernel has none (spec.md's Non-goals
	// exclude authn), so it is always empty today.
	Principal string `json:"principal,omitempty"`
}

// NewTraceID generates a new trace ID.
func NewTraceID() string {
	return "tr_" + uuid.New().String()[:12]
}

// NewTraceContext creates a new trace context for a request entering at
// origin, optionally tagged with a caller principal.
func NewTraceContext(origin, principal string) *TraceContext {
	return &TraceContext{
		TraceID:   NewTraceID(),
		Origin:    origin,
		Principal: principal,
	}
}

// WithTraceContext attaches tc to ctx so the mediation driver's audit
// write can recover it via TraceIDFromContext.
func WithTraceContext(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// TraceContextFromContext extracts trace context from a context.Context.
// Returns nil if no trace context is present.
func TraceContextFromContext(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return tc
}

// TraceIDFromContext extracts just the trace ID from context.
// Returns empty string if no trace context is present.
func TraceIDFromContext(ctx context.Context) string {
	if tc := TraceContextFromContext(ctx); tc != nil {
		return tc.TraceID
	}
	return ""
}
