package policy

import (
	"fmt"
	"strings"
)

// Trace is a full evaluation record suitable for human-readable
// explanation and audit storage, adapted from the teacher's
// DecisionTrace to the per-role evaluation model.
type Trace struct {
	PerRole     []perRoleResult
	Decision    Decision
	Explanation string
}

// Explain renders trace as a human-readable narrative of which rule (or
// default-deny) fired for each role and which one dominated, matching the
// register of the teacher's buildExplanation.
func Explain(in EvalInput, trace Trace) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Request %s.%s: %s\n", in.Server, in.Tool, verdictLabel(trace.Decision.Verdict))

	for _, pr := range trace.PerRole {
		fmt.Fprintf(&b, "\nrole %-16s → %-8s (rule: %s)", pr.Role, pr.Decision.Verdict, pr.Decision.RuleName)
		if pr.Decision.Reason != "" {
			fmt.Fprintf(&b, "  %s", pr.Decision.Reason)
		}
	}
	b.WriteString("\n\n")

	switch trace.Decision.Verdict {
	case Deny:
		fmt.Fprintf(&b, "Dominant verdict DENY via rule %q: %s\n", trace.Decision.RuleName, trace.Decision.Reason)
	case Escalate:
		fmt.Fprintf(&b, "Dominant verdict ESCALATE via rule %q: %s\n", trace.Decision.RuleName, trace.Decision.Reason)
	default:
		b.WriteString("All roles resolved to ALLOW.\n")
	}

	return b.String()
}

func verdictLabel(v Verdict) string {
	switch v {
	case Deny:
		return "DENIED"
	case Escalate:
		return "ESCALATED"
	case Allow:
		return "ALLOWED"
	default:
		return strings.ToUpper(string(v))
	}
}
