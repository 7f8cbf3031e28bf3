// Package classify implements the argument classifier: given a request and
// its tool annotation, it produces a stream of (argument-name, role,
// canonical-value) observations per spec.md §4.1.
package classify

import (
	"context"

	"ironcurtain/internal/annotation"
	"ironcurtain/internal/roles"
)

// Observation is one (argument-name, role, canonical-value) triple.
type Observation struct {
	Argument  string
	Role      roles.Name
	Canonical string
	// PolicyValue is the role's extracted policy value (e.g. a hostname),
	// present only when the role defines ExtractPolicyValue and extraction
	// succeeded.
	PolicyValue string
	HasPolicyValue bool
}

// Request is the minimal view of spec.md §3's Request the classifier
// needs: the argument tree plus enough identity to look up the
// annotation.
type Request struct {
	Server    string
	Tool      string
	Arguments map[string]roles.Value
}

// Result is the classifier's output for one request.
type Result struct {
	// Unknown is true when the tool has no annotation; the structural
	// layer denies unconditionally on this.
	Unknown      bool
	Observations []Observation
}

// Classify walks req's arguments against ann's declared roles, resolving
// indirection and canonicalizing each value. A missing annotation yields
// Result{Unknown: true} with no observations, per spec.md §4.1's
// "annotation lookup miss" failure semantics.
func Classify(ctx context.Context, reg *roles.Registry, annotations *annotation.Set, req Request) Result {
	tool, ok := annotations.Lookup(req.Server, req.Tool)
	if !ok {
		return Result{Unknown: true}
	}

	siblings := make(roles.Siblings, len(req.Arguments))
	for name, v := range req.Arguments {
		siblings[name] = v
	}

	var out []Observation
	for argName, roleNames := range tool.Arguments {
		raw, present := req.Arguments[argName]
		if !present {
			continue // missing arguments are absent, not empty (spec.md §4.1)
		}
		for _, roleName := range roleNames {
			def, ok := reg.Lookup(roleName)
			if !ok {
				continue // registry is the single source of truth; unreachable if annotations were validated
			}
			out = append(out, classifyValue(ctx, def, roleName, argName, raw, siblings)...)
		}
	}
	return Result{Observations: out}
}

// classifyValue canonicalizes raw for role, repeating per element when raw
// is a sequence (spec.md §4.1 step (iii)).
func classifyValue(ctx context.Context, def roles.Def, roleName roles.Name, argName string, raw roles.Value, siblings roles.Siblings) []Observation {
	if raw.IsSequence() {
		var out []Observation
		for _, elem := range raw.Elements() {
			out = append(out, classifyScalar(ctx, def, roleName, argName, elem, siblings))
		}
		return out
	}
	return []Observation{classifyScalar(ctx, def, roleName, argName, raw, siblings)}
}

func classifyScalar(ctx context.Context, def roles.Def, roleName roles.Name, argName string, raw roles.Value, siblings roles.Siblings) Observation {
	resolved := raw
	if def.ResolveIndirection != nil {
		resolved = def.ResolveIndirection(ctx, raw, siblings)
	}
	canonical := resolved.AsString()
	if def.Canonicalize != nil {
		canonical = def.Canonicalize(resolved)
	}

	obs := Observation{Argument: argName, Role: roleName, Canonical: canonical}
	if def.ExtractPolicyValue != nil {
		if pv, ok := def.ExtractPolicyValue(canonical); ok {
			obs.PolicyValue = pv
			obs.HasPolicyValue = true
		}
	}
	return obs
}
