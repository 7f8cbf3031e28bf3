package structural

import (
	"ironcurtain/internal/classify"
	"ironcurtain/internal/roles"
)

// Evaluate runs the fixed ordered pipeline described in spec.md §4.2. It
// returns (result, true) the moment an invariant concludes; otherwise
// (Result{}, false) along with ctx.Classified.Observations minus the roles
// sandbox containment resolved, so the rule evaluator sees only roles the
// structural layer did not already resolve. ctx.Unresolved is not read.
func Evaluate(ctx EvalContext) (Result, bool, []classify.Observation) {
	if ctx.Classified.Unknown {
		return Result{
			Decision: Deny,
			RuleName: "structural-unknown-tool",
			Reason:   "tool has no annotation",
		}, true, nil
	}

	if IntrospectionTools[ToolKey{Server: ctx.Server, Tool: ctx.Tool}] {
		return Result{
			Decision: Allow,
			RuleName: "structural-introspection-always-allowed",
			Reason:   "introspection tool is unconditionally allowed",
		}, true, nil
	}

	if res, ok := protectedPath(ctx); ok {
		return res, true, nil
	}

	unresolved := sandboxContained(ctx)

	// SSRF guard (invariant 5) does not itself conclude; it only amends
	// how '*' domain patterns are matched downstream (see roles.IsIPLiteral
	// and the policy package's domain-clause matcher).

	if res, ok := perServerDomainGate(ctx, unresolved); ok {
		return res, true, nil
	}

	return Result{}, false, unresolved
}

// protectedPath denies any argument carrying a path role other than
// read-path whose canonical path equals or descends from a protected
// path.
func protectedPath(ctx EvalContext) (Result, bool) {
	for _, obs := range ctx.Classified.Observations {
		if obs.Role == roles.ReadPath {
			continue
		}
		if !isPathRole(obs.Role) {
			continue
		}
		for _, protected := range ctx.Config.ProtectedPaths {
			if Contains(protected, obs.Canonical) {
				return Result{
					Decision: Deny,
					RuleName: "structural-protected-path",
					Reason:   "argument " + obs.Argument + " targets a protected path",
				}, true
			}
		}
	}
	return Result{}, false
}

func isPathRole(r roles.Name) bool {
	switch r {
	case roles.ReadPath, roles.WritePath, roles.DeletePath, roles.WriteHistory, roles.DeleteHistory:
		return true
	default:
		return false
	}
}

// sandboxContained marks sandbox-safe roles (read-path, write-path,
// delete-path) whose every canonical value is contained within the
// sandbox directory as resolved, removing them from further evaluation.
// write-history and delete-history are never sandbox-safe and always
// pass through unresolved.
func sandboxContained(ctx EvalContext) []classify.Observation {
	if ctx.Config.SandboxDirectory == "" {
		return ctx.Classified.Observations
	}

	byRole := make(map[roles.Name][]classify.Observation)
	var order []roles.Name
	for _, obs := range ctx.Classified.Observations {
		if _, seen := byRole[obs.Role]; !seen {
			order = append(order, obs.Role)
		}
		byRole[obs.Role] = append(byRole[obs.Role], obs)
	}

	resolved := make(map[roles.Name]bool)
	for _, roleName := range order {
		if !roles.SandboxSafe[roleName] {
			continue
		}
		allContained := true
		for _, obs := range byRole[roleName] {
			if !Contains(ctx.Config.SandboxDirectory, obs.Canonical) {
				allContained = false
				break
			}
		}
		if allContained {
			resolved[roleName] = true
		}
	}

	var out []classify.Observation
	for _, obs := range ctx.Classified.Observations {
		if resolved[obs.Role] {
			continue
		}
		out = append(out, obs)
	}
	return out
}

// perServerDomainGate denies a request carrying a url-role argument whose
// extracted hostname does not match the configured domain allowlist for
// the tool's server. A server with no configured allowlist defers
// entirely to rule evaluation.
func perServerDomainGate(ctx EvalContext, unresolved []classify.Observation) (Result, bool) {
	patterns, ok := ctx.Config.ServerDomainAllowlists[ctx.Server]
	if !ok || len(patterns) == 0 {
		return Result{}, false
	}

	for _, obs := range unresolved {
		if !obs.HasPolicyValue {
			continue
		}
		if !isURLRole(obs.Role) {
			continue
		}
		if !MatchesAnyDomainPattern(obs.PolicyValue, patterns) {
			return Result{
				Decision: Deny,
				RuleName: "structural-per-server-domain-gate",
				Reason:   "hostname " + obs.PolicyValue + " not in allowlist for server " + ctx.Server,
			}, true
		}
	}
	return Result{}, false
}

func isURLRole(r roles.Name) bool {
	return r == roles.FetchURL || r == roles.GitRemoteURL
}

// MatchesAnyDomainPattern implements spec.md §4.3's domain pattern
// semantics: exact match, "*.suffix" (suffix wildcard, also matches the
// bare suffix), or "*" (matches any hostname that is not an IP literal —
// the SSRF guard's amendment from invariant 5).
func MatchesAnyDomainPattern(host string, patterns []string) bool {
	for _, p := range patterns {
		if matchesDomainPattern(host, p) {
			return true
		}
	}
	return false
}

func matchesDomainPattern(host, pattern string) bool {
	if pattern == "*" {
		return !roles.IsIPLiteral(host)
	}
	if len(pattern) > 2 && pattern[0] == '*' && pattern[1] == '.' {
		suffix := pattern[2:]
		return host == suffix || (len(host) > len(suffix) && host[len(host)-len(suffix)-1] == '.' && host[len(host)-len(suffix):] == suffix)
	}
	return host == pattern
}
