package models

import "fmt"

// PermissionRecord is one operator's entry in the permission directory.
type PermissionRecord struct {
	OperatorID  int64  `json:"operatorId"`
	BranchScope string `json:"branchScope"`
	RegionScope string `json:"regionScope"`
	DisplayName string `json:"displayName"`
}

// Validate checks the nesting invariant: a restricted region requires a restricted branch.
func (p PermissionRecord) Validate(unrestricted string) error {
	if p.BranchScope == "" {
		return fmt.Errorf("operator %d: empty branch scope", p.OperatorID)
	}
	if p.RegionScope == "" {
		return fmt.Errorf("operator %d: empty region scope", p.OperatorID)
	}
	if p.BranchScope == unrestricted && p.RegionScope != unrestricted {
		return fmt.Errorf("operator %d: region %q restricted under unrestricted branch", p.OperatorID, p.RegionScope)
	}
	return nil
}
