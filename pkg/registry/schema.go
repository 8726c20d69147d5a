// pkg/registry/schema.go
package registry

// BranchRegistry is a versioned catalogue of branch dataset sources, kept as a JSON file
// so the branch list can change without editing the main config.
type BranchRegistry struct {
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
	Branches    []Branch `json:"branches"`
}

type Branch struct {
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Index    string `json:"index,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}
