package sourcetree

import (
	"fmt"
	"os"

	"asset-sync/core/reconcile"

	"gopkg.in/yaml.v3"
)

// Snapshot is the file representation of a project tree.
type Snapshot struct {
	Project    string                          `yaml:"project"`
	Attributes []reconcile.AttributeDefinition `yaml:"attributes,omitempty"`
	Entities   []reconcile.SourceNode          `yaml:"entities"`
}

// LoadFile reads a YAML snapshot.
func LoadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	if s.Project == "" {
		return nil, fmt.Errorf("snapshot %s has no project", path)
	}
	return &s, nil
}

// SaveFile writes a YAML snapshot, replacing the file.
func SaveFile(path string, s Snapshot) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
