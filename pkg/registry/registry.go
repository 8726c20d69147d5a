// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func LoadRegistry(path string) (*BranchRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg BranchRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Enabled returns the branches not marked disabled, in file order.
func (r *BranchRegistry) Enabled() []Branch {
	out := make([]Branch, 0, len(r.Branches))
	for _, b := range r.Branches {
		if !b.Disabled {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks names are present and unique and that each branch names at most one source.
func (r *BranchRegistry) Validate() error {
	if len(r.Branches) == 0 {
		return fmt.Errorf("registry contains no branches")
	}
	names := make(map[string]bool, len(r.Branches))
	for _, b := range r.Branches {
		if b.Name == "" {
			return fmt.Errorf("branch missing required field: name")
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate branch: %s", b.Name)
		}
		names[b.Name] = true
		if b.URL != "" && b.Index != "" {
			return fmt.Errorf("branch %s: url and index are mutually exclusive", b.Name)
		}
	}
	return nil
}

// Find returns a pointer to the named branch, or nil.
func (r *BranchRegistry) Find(name string) *Branch {
	for i := range r.Branches {
		if r.Branches[i].Name == name {
			return &r.Branches[i]
		}
	}
	return nil
}

// SaveRegistry writes reg as indented JSON, stamping LastUpdated.
func SaveRegistry(reg *BranchRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
