package conversation

import (
	"context"

	"asset-lookup-bot/internal/models"
)

// Inbound is one operator message, already authenticated by the transport.
type Inbound struct {
	OperatorID int64  `json:"operatorId"`
	Text       string `json:"text"`
}

// Outcome classifies a turn for logging, metrics and tests.
type Outcome string

const (
	OutcomeMenu                Outcome = "menu"
	OutcomeResult              Outcome = "result"
	OutcomeNoMatch             Outcome = "no_match"
	OutcomeAmbiguous           Outcome = "ambiguous"
	OutcomeScopeViolation      Outcome = "scope_violation"
	OutcomeSourceUnavailable   Outcome = "source_unavailable"
	OutcomeSchemaMismatch      Outcome = "schema_mismatch"
	OutcomeUnauthorized        Outcome = "unauthorized"
	OutcomeBranchNotConfigured Outcome = "branch_not_configured"
	OutcomeInternal            Outcome = "internal"
)

// Reply is what the transport renders: text plus suggested reply options.
// Navigation holds menu tokens shown after the options, kept apart so Options lists
// only selectable values. Rows carries the matched rows when Outcome is OutcomeResult.
type Reply struct {
	Text       string            `json:"text"`
	Options    []string          `json:"options,omitempty"`
	Navigation []string          `json:"navigation,omitempty"`
	Outcome    Outcome           `json:"outcome"`
	Rows       []models.AssetRow `json:"rows,omitempty"`
}

// Directory resolves an operator to a permission record.
type Directory interface {
	Lookup(ctx context.Context, operatorID int64) (models.PermissionRecord, error)
}

// Datasets serves branch datasets.
type Datasets interface {
	Branches() []string
	Known(branch string) bool
	Fetch(ctx context.Context, branch string) ([]models.AssetRow, error)
}

// Alerter is told about operators missing from the directory.
type Alerter interface {
	ReportUnauthorized(ctx context.Context, operatorID int64, text string) error
}
