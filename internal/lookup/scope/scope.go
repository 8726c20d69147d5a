// Package scope classifies operators into authorization tiers and filters datasets to them.
package scope

import (
	"strings"

	"asset-lookup-bot/internal/models"
)

// Tier is an operator's authorization level.
type Tier int

const (
	// TierGlobal operators pick a branch before querying.
	TierGlobal Tier = iota
	// TierBranch operators see every region of one fixed branch.
	TierBranch
	// TierRegion operators see one region of one fixed branch.
	TierRegion
)

func (t Tier) String() string {
	switch t {
	case TierGlobal:
		return "global"
	case TierBranch:
		return "branch"
	case TierRegion:
		return "region"
	default:
		return "unknown"
	}
}

type Resolver struct {
	unrestricted string
}

// NewResolver builds a resolver that treats the given sentinel as "unrestricted".
func NewResolver(unrestricted string) *Resolver {
	return &Resolver{unrestricted: unrestricted}
}

// Unrestricted returns the sentinel value.
func (r *Resolver) Unrestricted() string {
	return r.unrestricted
}

// Resolve classifies a record. Records are validated at load time, so a restricted
// region always comes with a restricted branch.
func (r *Resolver) Resolve(record models.PermissionRecord) Tier {
	switch {
	case record.BranchScope == r.unrestricted:
		return TierGlobal
	case record.RegionScope == r.unrestricted:
		return TierBranch
	default:
		return TierRegion
	}
}

// FixedBranch returns the branch a Tier B/C operator is bound to.
func (r *Resolver) FixedBranch(record models.PermissionRecord) (string, bool) {
	if r.Resolve(record) == TierGlobal {
		return "", false
	}
	return record.BranchScope, true
}

// Filter returns the rows of a branch dataset visible to the operator. For Tier C only
// rows tagged with the operator's region survive; other tiers see the whole dataset.
func (r *Resolver) Filter(record models.PermissionRecord, rows []models.AssetRow) []models.AssetRow {
	if r.Resolve(record) != TierRegion {
		return rows
	}
	region := strings.TrimSpace(record.RegionScope)
	visible := make([]models.AssetRow, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.RegionTag) == region {
			visible = append(visible, row)
		}
	}
	return visible
}
