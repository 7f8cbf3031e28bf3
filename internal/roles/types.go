// Package roles implements the IronCurtain role registry: the static table
// mapping argument-role names to the semantics the rest of the kernel uses
// to canonicalize, extract, and resolve argument values.
package roles

import "context"

// Category classifies the kind of value a role carries.
type Category string

const (
	CategoryPath   Category = "path"
	CategoryURL    Category = "url"
	CategoryOpaque Category = "opaque"
)

// Name identifies a role. The set of valid names is closed and defined by
// the registry below; it is not extensible at runtime.
type Name string

const (
	ReadPath       Name = "read-path"
	WritePath      Name = "write-path"
	DeletePath     Name = "delete-path"
	WriteHistory   Name = "write-history"
	DeleteHistory  Name = "delete-history"
	FetchURL       Name = "fetch-url"
	GitRemoteURL   Name = "git-remote-url"
	BranchName     Name = "branch-name"
	CommitMessage  Name = "commit-message"
	None           Name = "none"
)

// SandboxSafe is the set of path roles whose sandbox containment resolves
// the request structurally, per spec.md §4.2 invariant 4. write-history and
// delete-history are deliberately excluded.
var SandboxSafe = map[Name]bool{
	ReadPath:   true,
	WritePath:  true,
	DeletePath: true,
}

// Siblings is the raw value of every other argument on the same request,
// keyed by argument name, passed to ResolveIndirection so it can use
// context from sibling arguments (e.g. a repository path sibling to a
// remote name).
type Siblings map[string]Value

// Def is the semantic metadata the registry associates with a role name.
type Def struct {
	Category             Category
	IsResourceIdentifier  bool
	// Canonicalize is total: on failure it returns a defined fallback
	// rather than an error (spec: best-effort parent-real-path+basename for
	// paths, raw value for URLs).
	Canonicalize       func(raw Value) string
	ExtractPolicyValue func(canonical string) (string, bool)
	// ResolveIndirection may run a bounded local subprocess. On failure or
	// timeout it returns raw unchanged.
	ResolveIndirection func(ctx context.Context, raw Value, siblings Siblings) Value
}

// Registry is a read-only, process-wide map from role name to definition.
// Built once at startup by New(); never mutated afterward.
type Registry struct {
	defs map[Name]Def
}

// Lookup returns the definition for a role name.
func (r *Registry) Lookup(name Name) (Def, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// IsKnown reports whether name is a registered role.
func (r *Registry) IsKnown(name Name) bool {
	_, ok := r.defs[name]
	return ok
}

// IsKnownName is the string-keyed form of IsKnown, used by loaders that
// decode role names off the wire (e.g. internal/annotation) before they
// have a typed Name value to compare.
func (r *Registry) IsKnownName(name string) bool {
	return r.IsKnown(Name(name))
}
