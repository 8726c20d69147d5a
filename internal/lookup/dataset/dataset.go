// Package dataset turns raw branch tables into asset rows.
package dataset

import (
	"context"
	"fmt"
	"strings"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/metrics"
	"asset-lookup-bot/internal/models"
)

// Source yields one branch's raw table.
type Source interface {
	FetchTable(ctx context.Context, branch string) (*models.Table, error)
}

// Columns names the header cells that carry the asset name and region tag.
type Columns struct {
	Asset  string
	Region string
}

// Provider resolves a branch name to its source and parses the result.
type Provider struct {
	columns  Columns
	branches []string
	sources  map[string]Source
	logger   logger.Logger
}

func NewProvider(columns Columns, log logger.Logger) *Provider {
	return &Provider{
		columns: columns,
		sources: make(map[string]Source),
		logger:  log.WithFields(map[string]interface{}{"component": "dataset"}),
	}
}

// Register adds a branch to the menu. A nil source keeps the branch selectable but unqueryable.
func (p *Provider) Register(branch string, src Source) {
	if _, exists := p.sources[branch]; !exists {
		p.branches = append(p.branches, branch)
	}
	p.sources[branch] = src
}

// Branches returns branch names in registration order.
func (p *Provider) Branches() []string {
	out := make([]string, len(p.branches))
	copy(out, p.branches)
	return out
}

// Known reports whether branch was registered.
func (p *Provider) Known(branch string) bool {
	_, ok := p.sources[branch]
	return ok
}

// Fetch loads and parses the branch dataset.
func (p *Provider) Fetch(ctx context.Context, branch string) ([]models.AssetRow, error) {
	src := p.sources[branch]
	if src == nil {
		return nil, apperrors.NewBranchNotConfiguredError(branch)
	}

	table, err := src.FetchTable(ctx, branch)
	if err != nil {
		metrics.SourceFetches.WithLabelValues("dataset", metrics.ResultError).Inc()
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewSourceUnavailableError(branch, err)
	}
	metrics.SourceFetches.WithLabelValues("dataset", metrics.ResultOK).Inc()

	rows, err := Parse(table, p.columns, branch)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("dataset loaded", map[string]interface{}{"branch": branch, "rows": len(rows)})
	return rows, nil
}

// Parse maps a table to asset rows. Every column other than the asset and region columns
// becomes an attribute, in header order. Blank rows are dropped. A table without data rows
// is an empty dataset whatever its header, since an empty index has no fields to report.
func Parse(table *models.Table, columns Columns, source string) ([]models.AssetRow, error) {
	if len(table.Rows) == 0 {
		return []models.AssetRow{}, nil
	}
	if missing := table.MissingColumns(columns.Asset, columns.Region); len(missing) > 0 {
		return nil, apperrors.NewSchemaMismatchError(source,
			fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")))
	}
	assetIdx := table.ColumnIndex(columns.Asset)
	regionIdx := table.ColumnIndex(columns.Region)

	rows := make([]models.AssetRow, 0, len(table.Rows))
	for _, raw := range table.Rows {
		row := models.AssetRow{
			AssetName: models.Cell(raw, assetIdx),
			RegionTag: models.Cell(raw, regionIdx),
		}
		if row.AssetName == "" {
			continue
		}
		for i, h := range table.Header {
			key := strings.TrimSpace(h)
			if i == assetIdx || i == regionIdx || key == "" {
				continue
			}
			row.Attributes = append(row.Attributes, models.Attribute{Key: key, Value: models.Cell(raw, i)})
		}
		rows = append(rows, row)
	}
	return rows, nil
}
