// Package lists implements the dynamic list store: a read-only mapping
// from symbolic list names (e.g. "@major-news") to concrete value sets,
// loaded at startup per spec.md §3.
package lists

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Type identifies a dynamic list's value domain; only "emails" gets
// case-insensitive matching.
type Type string

const (
	TypeDomains     Type = "domains"
	TypeEmails      Type = "emails"
	TypeIdentifiers Type = "identifiers"
)

// List is one dynamic list's resolved state. The effective member set is
// (Values ∪ ManualAdditions) \ ManualRemovals, computed once at load time.
type List struct {
	Name             string
	Type             Type
	InputHash        string
	effective        map[string]bool
	caseInsensitive  bool
}

// Contains reports whether value is a member of the list's effective set,
// applying case-insensitive matching for emails lists per spec.md §3's
// "list" clause semantics.
func (l *List) Contains(value string) bool {
	key := value
	if l.caseInsensitive {
		key = strings.ToLower(key)
	}
	return l.effective[key]
}

// Store is the process-wide, immutable table of every dynamic list,
// keyed by symbolic name (without the leading '@').
type Store struct {
	lists map[string]*List
}

// Lookup returns the named list. name is given without its leading '@';
// callers strip that sigil before calling.
func (s *Store) Lookup(name string) (*List, bool) {
	l, ok := s.lists[name]
	return l, ok
}

// document is the on-disk shape of the dynamic-lists artefact (spec.md §6):
// per-list values, resolved-at, input-hash.
type document map[string]struct {
	Type            Type     `json:"type"`
	Values          []string `json:"values"`
	ManualAdditions []string `json:"manual_additions"`
	ManualRemovals  []string `json:"manual_removals"`
	ResolvedAt      string   `json:"resolved_at"`
	InputHash       string   `json:"input_hash"`
}

// Load reads a dynamic-lists artefact from path via encoding/json,
// matching internal/infra.Load's convention for machine-generated
// inventory documents.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dynamic lists %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse dynamic lists %s: %w", path, err)
	}

	lists := make(map[string]*List, len(doc))
	for name, entry := range doc {
		if entry.InputHash == "" {
			return nil, fmt.Errorf("dynamic list %q in %s: missing input_hash", name, path)
		}
		caseInsensitive := entry.Type == TypeEmails
		effective := make(map[string]bool)
		add := func(vs []string) {
			for _, v := range vs {
				if caseInsensitive {
					v = strings.ToLower(v)
				}
				effective[v] = true
			}
		}
		add(entry.Values)
		add(entry.ManualAdditions)
		remove := func(vs []string) {
			for _, v := range vs {
				if caseInsensitive {
					v = strings.ToLower(v)
				}
				delete(effective, v)
			}
		}
		remove(entry.ManualRemovals)

		lists[name] = &List{
			Name:            name,
			Type:            entry.Type,
			InputHash:       entry.InputHash,
			effective:       effective,
			caseInsensitive: caseInsensitive,
		}
	}

	return &Store{lists: lists}, nil
}

// TrimReference strips the leading '@' sigil from a list reference as used
// in compiled rules (e.g. "@major-news" -> "major-news").
func TrimReference(ref string) string {
	return strings.TrimPrefix(ref, "@")
}
