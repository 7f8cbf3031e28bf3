package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// structuralDocument is the optional JSON artefact naming protected paths
// and per-server domain allowlists, following internal/annotation and
// internal/lists's convention for machine-generated inventory documents
// (spec.md §6 "Structural configuration").
type structuralDocument struct {
	ProtectedPaths         []string            `json:"protected_paths"`
	ServerDomainAllowlists map[string][]string `json:"server_domain_allowlists"`
}

func loadStructuralDocument(path string) ([]string, map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read structural config %s: %w", path, err)
	}
	var doc structuralDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse structural config %s: %w", path, err)
	}
	return doc.ProtectedPaths, doc.ServerDomainAllowlists, nil
}
