// Package policy implements the rule evaluator: an ordered sequence of
// declarative rules compiled from a human-authored constitution, each
// with an `if` predicate and a verdict in {allow, deny, escalate}, per
// spec.md §3 (Compiled Rule) and §4.3 (Rule Evaluator).
package policy

import "ironcurtain/internal/roles"

// Verdict is the outcome a rule (or the structural layer, or the
// aggregated per-request decision) can produce.
type Verdict string

const (
	Allow    Verdict = "allow"
	Deny     Verdict = "deny"
	Escalate Verdict = "escalate"
)

// Dominates reports whether v is strictly more restrictive than other under
// the precedence order deny > escalate > allow (spec.md §4.3
// "Aggregation across roles").
func (v Verdict) Dominates(other Verdict) bool {
	return rank(v) > rank(other)
}

func rank(v Verdict) int {
	switch v {
	case Deny:
		return 2
	case Escalate:
		return 1
	default:
		return 0
	}
}

// PathsClause requires every canonical path produced for any argument
// whose role is in Roles to be contained within Within. Empty evidence
// (no observation carries any role in Roles) trivially matches — the
// clause is "not armed" (spec.md §4.3).
type PathsClause struct {
	Roles  []roles.Name `yaml:"roles"`
	Within string       `yaml:"within"`
}

// DomainsClause requires every extracted hostname for an argument whose
// role is in Roles to match at least one entry in Allowed. Allowed is
// either a set of literal patterns (exact, "*.suffix", or "*") or exactly
// one "@list-reference" resolved against the dynamic list store; a
// reference mixed with other entries is matched as a literal pattern.
type DomainsClause struct {
	Roles   []roles.Name `yaml:"roles"`
	Allowed []string     `yaml:"allowed"`
}

// ListClause requires every policy-value extracted for Role to be a
// member of the dynamic list referenced by Allowed (an "@list-reference").
type ListClause struct {
	Role    roles.Name `yaml:"role"`
	Allowed string     `yaml:"allowed"`
}

// Condition is the logical AND of zero or more clauses (spec.md §3). A
// zero-value field means that clause is absent and trivially matches.
type Condition struct {
	Server      []string       `yaml:"server,omitempty"`
	Tool        []string       `yaml:"tool,omitempty"`
	SideEffects *bool          `yaml:"side_effects,omitempty"`
	Roles       []roles.Name   `yaml:"roles,omitempty"`
	Paths       *PathsClause   `yaml:"paths,omitempty"`
	Domains     *DomainsClause `yaml:"domains,omitempty"`
	List        *ListClause    `yaml:"list,omitempty"`
}

// CompiledRule is one entry of the ordered rule list (spec.md §3).
type CompiledRule struct {
	Name      string    `yaml:"name"`
	Principle string    `yaml:"principle"`
	If        Condition `yaml:"if"`
	Then      Verdict   `yaml:"then"`
	Reason    string    `yaml:"reason"`
}

// RuleSet is the compiled policy artefact (spec.md §6): provenance plus
// the ordered rule list, loaded once at startup and treated as immutable.
type RuleSet struct {
	GeneratedAt      string `yaml:"generated_at"`
	ConstitutionHash string `yaml:"constitution_hash"`
	InputHash        string `yaml:"input_hash"`
	Rules            []CompiledRule `yaml:"rules"`
}
