package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile loads the compiled policy artefact from a YAML file, matching
// the teacher's policy.LoadFile/os.ExpandEnv convention so operators can
// reference environment-provided secrets/paths inside rule definitions.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}
	return Load(data)
}

// Load parses a compiled policy artefact from YAML data.
func Load(data []byte) (*RuleSet, error) {
	expanded := os.ExpandEnv(string(data))

	var rs RuleSet
	if err := yaml.Unmarshal([]byte(expanded), &rs); err != nil {
		return nil, fmt.Errorf("parse policy YAML: %w", err)
	}
	if err := validate(&rs); err != nil {
		return nil, fmt.Errorf("validate policy: %w", err)
	}
	return &rs, nil
}

func validate(rs *RuleSet) error {
	if rs.InputHash == "" {
		return fmt.Errorf("missing input_hash")
	}
	seen := make(map[string]bool)
	for i, r := range rs.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("rule %d: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true

		switch r.Then {
		case Allow, Deny, Escalate:
		default:
			return fmt.Errorf("rule %q: invalid verdict %q", r.Name, r.Then)
		}
	}
	return nil
}
