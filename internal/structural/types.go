// Package structural implements the structural invariant layer: a fixed,
// ordered pipeline of hardcoded checks evaluated before the declarative
// rule set, per spec.md §4.2.
package structural

import (
	"path/filepath"
	"strings"

	"ironcurtain/internal/classify"
)

// Config is the Structural Configuration of spec.md §3: process-wide,
// immutable, built once at startup by internal/config.
type Config struct {
	SandboxDirectory       string
	ProtectedPaths         []string
	ServerDomainAllowlists map[string][]string
}

// Contains reports whether path is equal to, or a descendant of, dir,
// after both are assumed already canonical. The directory itself counts
// as contained (spec.md §8 boundary behavior); the parent does not.
func Contains(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// ToolKey identifies a tool by its owning server.
type ToolKey struct {
	Server string
	Tool   string
}

// IntrospectionTools is the small, hardcoded, non-configurable set of
// (server, tool) pairs that are always allowed without argument
// inspection — e.g. the tool that lists a filesystem server's allowed
// directories.
var IntrospectionTools = map[ToolKey]bool{
	{Server: "filesystem", Tool: "list_allowed_directories"}: true,
}

// Decision is the verdict kind a structural invariant (or the rule
// evaluator) can produce.
type Decision string

const (
	Allow    Decision = "allow"
	Deny     Decision = "deny"
	Escalate Decision = "escalate"
)

// Result is what a concluding invariant returns: a verdict plus the
// structural rule name (prefixed per spec.md §4.2) and reason.
type Result struct {
	Decision Decision
	RuleName string
	Reason   string
}

// EvalContext is everything an invariant needs to decide. Invariants never
// mutate the context or the request; sandbox-contained resolution builds a
// new slice of unresolved observations, which Evaluate returns.
type EvalContext struct {
	Config       Config
	Server       string
	Tool         string
	SideEffects  bool
	Classified   classify.Result
	// Unresolved is not read or set by Evaluate; the observations left
	// unresolved by sandbox containment are Evaluate's third result.
	Unresolved []classify.Observation
}
