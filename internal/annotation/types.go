// Package annotation loads tool-annotation artefacts: per (server-name,
// tool-name) metadata produced by the offline compilation pipeline and
// consumed here as a read-only input, factored out of internal/classify so
// the offline tooling that produces annotations can share the same types.
package annotation

import (
	"fmt"

	"ironcurtain/internal/roles"
)

// Tool is the annotation for a single tool on a single server: a human
// comment, whether invoking it has side effects, and the non-empty ordered
// role sequence assigned to each declared argument.
type Tool struct {
	Comment     string              `json:"comment"`
	SideEffects bool                `json:"side_effects"`
	Arguments   map[string][]roles.Name `json:"arguments"`
}

// Key identifies a tool by its owning server.
type Key struct {
	Server string
	Tool   string
}

// ArtifactMeta tags every read-only startup artefact with provenance,
// per spec.md §6.
type ArtifactMeta struct {
	GeneratedAt string `json:"generated_at"`
	InputHash   string `json:"input_hash"`
}

// Set is the process-wide, immutable table of every tool annotation across
// every server, built once at startup.
type Set struct {
	Meta  ArtifactMeta
	tools map[Key]Tool
}

// Lookup returns the annotation for (server, tool), and whether it exists.
// A miss is the "unknown tool" condition the structural layer denies on.
func (s *Set) Lookup(server, tool string) (Tool, bool) {
	t, ok := s.tools[Key{Server: server, Tool: tool}]
	return t, ok
}

// validate enforces spec.md §3's invariant that the Set's construction
// never introduces a tool with an empty role sequence for a declared
// argument — an annotation artefact violating this is a load-time error,
// not a runtime structural deny.
func validate(tools map[Key]Tool) error {
	for key, tool := range tools {
		for arg, rs := range tool.Arguments {
			if len(rs) == 0 {
				return fmt.Errorf("annotation %s/%s: argument %q has an empty role list", key.Server, key.Tool, arg)
			}
		}
	}
	return nil
}
