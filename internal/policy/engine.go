package policy

import (
	"log/slog"

	"ironcurtain/internal/classify"
	"ironcurtain/internal/lists"
	"ironcurtain/internal/roles"
	"ironcurtain/internal/structural"
)

// EvalInput is everything the rule evaluator needs for one request,
// restricted to the roles the structural layer did not already resolve
// (spec.md §4.3 "Input").
type EvalInput struct {
	Server      string
	Tool        string
	SideEffects bool
	Unresolved  []classify.Observation
}

// Engine evaluates a RuleSet against requests. It holds no per-request
// state; a single Engine is shared read-only across sessions, matching
// spec.md §5's "read-only after startup" shared-resource model.
type Engine struct {
	rules   RuleSet
	lists   *lists.Store
	dryRun  bool
}

// Config configures the engine.
type Config struct {
	Rules RuleSet
	Lists *lists.Store
	// DryRun computes and audits decisions normally but downgrades an
	// escalate/deny to allow with a "[DRY RUN]"-prefixed reason, per the
	// teacher's policy.Engine.dryRun.
	DryRun bool
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{rules: cfg.Rules, lists: cfg.Lists, dryRun: cfg.DryRun}
}

// Decision is the per-request outcome of rule evaluation.
type Decision struct {
	Verdict  Verdict
	RuleName string
	Reason   string
}

// Evaluate runs the per-role precedence algorithm of spec.md §4.3 and
// returns the aggregated request-level decision. It is a thin wrapper
// around Explain that discards the trace, matching the teacher's
// Engine.Evaluate/Explain split.
func (e *Engine) Evaluate(in EvalInput) Decision {
	return e.Explain(in).Decision
}

// Explain evaluates in and returns both the decision and a full trace
// suitable for operator-facing explanation, per the teacher's
// explain.go/DecisionTrace machinery adapted to the per-role model.
func (e *Engine) Explain(in EvalInput) Trace {
	roleSet := distinctRoles(in.Unresolved)

	trace := Trace{}
	var dominant perRoleResult
	for i, role := range roleSet {
		result := e.evaluateRole(in, role)
		trace.PerRole = append(trace.PerRole, result)
		if i == 0 || result.Decision.Verdict.Dominates(dominant.Decision.Verdict) {
			dominant = result
		}
	}

	trace.Decision = dominant.Decision
	trace.Explanation = Explain(in, trace)
	logDecision(in, trace.Decision, e.dryRun)

	if e.dryRun && trace.Decision.Verdict != Allow {
		trace.Decision.Reason = "[DRY RUN] " + trace.Decision.Reason
		trace.Decision.Verdict = Allow
	}
	return trace
}

type perRoleResult struct {
	Role     roles.Name
	Decision Decision
}

// evaluateRole scans the rule list top-to-bottom for role and records the
// first matching rule's verdict, defaulting to deny with rule name
// "default-deny" if none match (spec.md §4.3 "Per-role precedence rule").
func (e *Engine) evaluateRole(in EvalInput, role roles.Name) perRoleResult {
	for _, rule := range e.rules.Rules {
		if rule.If.Matches(role, in, e.lists) {
			return perRoleResult{Role: role, Decision: Decision{
				Verdict:  rule.Then,
				RuleName: rule.Name,
				Reason:   rule.Reason,
			}}
		}
	}
	return perRoleResult{Role: role, Decision: Decision{
		Verdict:  Deny,
		RuleName: "default-deny",
		Reason:   "no rule matched role " + string(role),
	}}
}

// distinctRoles returns every role observed in the request, or
// {roles.None} if there are none — the latter lets a zero-argument
// request (spec.md §8's "zero annotated arguments" boundary case) still
// run one evaluation pass against request-level clauses (server/tool/
// side-effects), since an unarmed roles clause matches regardless of
// currentRole.
func distinctRoles(observations []classify.Observation) []roles.Name {
	seen := make(map[roles.Name]bool)
	var out []roles.Name
	for _, obs := range observations {
		if !seen[obs.Role] {
			seen[obs.Role] = true
			out = append(out, obs.Role)
		}
	}
	if len(out) == 0 {
		return []roles.Name{roles.None}
	}
	return out
}

// Matches reports whether every clause of c matches, for the role
// currently under per-role evaluation. Only the roles clause depends on
// currentRole; the rest are request-level (spec.md §4.3 "Condition
// matching").
func (c Condition) Matches(currentRole roles.Name, in EvalInput, store *lists.Store) bool {
	if len(c.Server) > 0 && !contains(c.Server, in.Server) {
		return false
	}
	if len(c.Tool) > 0 && !contains(c.Tool, in.Tool) {
		return false
	}
	if c.SideEffects != nil && *c.SideEffects != in.SideEffects {
		return false
	}
	if len(c.Roles) > 0 && !rolesClauseMatches(c.Roles, currentRole, in.Unresolved) {
		return false
	}
	if c.Paths != nil && !pathsClauseMatches(*c.Paths, in.Unresolved) {
		return false
	}
	if c.Domains != nil && !domainsClauseMatches(*c.Domains, in.Unresolved, store) {
		return false
	}
	if c.List != nil && !listClauseMatches(*c.List, in.Unresolved, store) {
		return false
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsRole(set []roles.Name, v roles.Name) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// rolesClauseMatches implements "roles ⊇ R matches iff the current role
// belongs to R or another argument with a different role also bears
// every role in R" — pragmatically, R is a subset of every role observed
// on the request (spec.md §4.3's own simplification).
func rolesClauseMatches(required []roles.Name, currentRole roles.Name, observed []classify.Observation) bool {
	if containsRole(required, currentRole) {
		return true
	}
	observedSet := make(map[roles.Name]bool)
	for _, obs := range observed {
		observedSet[obs.Role] = true
	}
	for _, r := range required {
		if !observedSet[r] {
			return false
		}
	}
	return true
}

func pathsClauseMatches(clause PathsClause, observed []classify.Observation) bool {
	var evidence []classify.Observation
	for _, obs := range observed {
		if containsRole(clause.Roles, obs.Role) {
			evidence = append(evidence, obs)
		}
	}
	if len(evidence) == 0 {
		return true // clause not armed
	}
	for _, obs := range evidence {
		if !structural.Contains(clause.Within, obs.Canonical) {
			return false
		}
	}
	return true
}

// domainsClauseMatches implements the "domains" clause. Allowed is either
// a set of literal patterns (exact, "*.suffix", "*") or a single
// "@list-reference", per spec.md §3 — the two forms are not mixed.
func domainsClauseMatches(clause DomainsClause, observed []classify.Observation, store *lists.Store) bool {
	var evidence []classify.Observation
	for _, obs := range observed {
		if containsRole(clause.Roles, obs.Role) && obs.HasPolicyValue {
			evidence = append(evidence, obs)
		}
	}
	if len(evidence) == 0 {
		return true // clause not armed
	}

	if listRef, ok := singleListReference(clause.Allowed); ok {
		if store == nil {
			return false
		}
		l, ok := store.Lookup(lists.TrimReference(listRef))
		if !ok {
			return false
		}
		for _, obs := range evidence {
			if !l.Contains(obs.PolicyValue) {
				return false
			}
		}
		return true
	}

	for _, obs := range evidence {
		if !structural.MatchesAnyDomainPattern(obs.PolicyValue, clause.Allowed) {
			return false
		}
	}
	return true
}

// singleListReference reports whether allowed is exactly one
// "@list-reference" entry.
func singleListReference(allowed []string) (string, bool) {
	if len(allowed) == 1 && len(allowed[0]) > 0 && allowed[0][0] == '@' {
		return allowed[0], true
	}
	return "", false
}

func listClauseMatches(clause ListClause, observed []classify.Observation, store *lists.Store) bool {
	if store == nil {
		return false
	}
	l, ok := store.Lookup(lists.TrimReference(clause.Allowed))
	if !ok {
		return false
	}
	var evidence []classify.Observation
	for _, obs := range observed {
		if obs.Role == clause.Role && obs.HasPolicyValue {
			evidence = append(evidence, obs)
		}
	}
	if len(evidence) == 0 {
		return true
	}
	for _, obs := range evidence {
		if !l.Contains(obs.PolicyValue) {
			return false
		}
	}
	return true
}

func logDecision(in EvalInput, d Decision, dryRun bool) {
	attrs := []any{
		"server", in.Server,
		"tool", in.Tool,
		"verdict", d.Verdict,
		"rule", d.RuleName,
	}
	if d.Reason != "" {
		attrs = append(attrs, "reason", d.Reason)
	}
	if dryRun {
		attrs = append(attrs, "dry_run", true)
	}
	switch d.Verdict {
	case Deny:
		slog.Warn("policy decision: DENY", attrs...)
	case Escalate:
		slog.Info("policy decision: ESCALATE", attrs...)
	default:
		slog.Debug("policy decision: ALLOW", attrs...)
	}
}
