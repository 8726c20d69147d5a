// Package directory loads the operator permission directory from a tabular source.
package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/metrics"
	"asset-lookup-bot/internal/models"
)

const sourceName = "permissions"

// Source yields the raw permission table. Implementations return a *StandardError
// (SourceUnavailable or SchemaMismatch) on failure.
type Source interface {
	FetchTable(ctx context.Context) (*models.Table, error)
}

// Directory maps operator ids to permission records. With a zero CacheTTL it re-fetches
// on every Load; otherwise it serves the last successful load until the TTL expires.
type Directory struct {
	config *Config
	source Source
	logger logger.Logger
	now    func() time.Time

	sf singleflight.Group

	mu        sync.RWMutex
	records   map[int64]models.PermissionRecord
	fetchedAt time.Time
}

func New(config *Config, source Source, log logger.Logger) *Directory {
	return &Directory{
		config: config,
		source: source,
		logger: log.WithFields(map[string]interface{}{"component": "directory"}),
		now:    time.Now,
	}
}

// Load returns the current operator → record mapping.
func (d *Directory) Load(ctx context.Context) (map[int64]models.PermissionRecord, error) {
	if d.config.CacheTTL > 0 {
		d.mu.RLock()
		records, fetchedAt := d.records, d.fetchedAt
		d.mu.RUnlock()
		if records != nil && d.now().Sub(fetchedAt) < d.config.CacheTTL {
			metrics.DirectoryCacheHits.Inc()
			return records, nil
		}
	}

	// The fetch is shared by every joined caller and is detached from any one caller's cancellation.
	result, err, _ := d.sf.Do(sourceName, func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if d.config.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, d.config.FetchTimeout)
			defer cancel()
		}
		table, err := d.source.FetchTable(fetchCtx)
		if err != nil {
			metrics.SourceFetches.WithLabelValues(sourceName, metrics.ResultError).Inc()
			if _, ok := apperrors.As(err); ok {
				return nil, err
			}
			return nil, apperrors.NewSourceUnavailableError(sourceName, err)
		}
		metrics.SourceFetches.WithLabelValues(sourceName, metrics.ResultOK).Inc()

		records, err := Parse(table, d.config, d.logger)
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		d.records = records
		d.fetchedAt = d.now()
		d.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[int64]models.PermissionRecord), nil
}

// Lookup returns one operator's record, or an Unauthorized error when absent.
func (d *Directory) Lookup(ctx context.Context, operatorID int64) (models.PermissionRecord, error) {
	records, err := d.Load(ctx)
	if err != nil {
		return models.PermissionRecord{}, err
	}
	record, ok := records[operatorID]
	if !ok {
		return models.PermissionRecord{}, apperrors.NewUnauthorizedError(operatorID)
	}
	return record, nil
}

// Invalidate drops the cached mapping so the next Load fetches.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.records = nil
	d.fetchedAt = time.Time{}
	d.mu.Unlock()
}

// Parse maps a raw table to permission records. Rows with an unparsable operator id,
// an empty branch, or a region scope nested under an unrestricted branch are skipped.
func Parse(table *models.Table, config *Config, log logger.Logger) (map[int64]models.PermissionRecord, error) {
	cols := config.Columns
	if missing := table.MissingColumns(cols.Operator, cols.Branch, cols.Region, cols.Name); len(missing) > 0 {
		return nil, apperrors.NewSchemaMismatchError(sourceName,
			fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")))
	}

	idIdx := table.ColumnIndex(cols.Operator)
	branchIdx := table.ColumnIndex(cols.Branch)
	regionIdx := table.ColumnIndex(cols.Region)
	nameIdx := table.ColumnIndex(cols.Name)

	records := make(map[int64]models.PermissionRecord, len(table.Rows))
	for i, row := range table.Rows {
		rawID := models.Cell(row, idIdx)
		id, err := parseOperatorID(rawID)
		if err != nil {
			skip(log, i, "unparsable operator id", map[string]interface{}{"value": rawID})
			continue
		}

		record := models.PermissionRecord{
			OperatorID:  id,
			BranchScope: models.Cell(row, branchIdx),
			RegionScope: models.Cell(row, regionIdx),
			DisplayName: models.Cell(row, nameIdx),
		}
		if record.RegionScope == "" {
			record.RegionScope = config.Unrestricted
		}
		if err := record.Validate(config.Unrestricted); err != nil {
			skip(log, i, err.Error(), nil)
			continue
		}
		records[id] = record
	}
	return records, nil
}

// parseOperatorID accepts integer ids, tolerating a float rendering such as "42.0" that spreadsheet exports produce.
func parseOperatorID(raw string) (int64, error) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("non-integer operator id %q", raw)
	}
	return int64(f), nil
}

func skip(log logger.Logger, row int, reason string, extra map[string]interface{}) {
	metrics.SkippedPermissionRows.Inc()
	fields := map[string]interface{}{"row": row + 1, "reason": reason}
	for k, v := range extra {
		fields[k] = v
	}
	log.Warn("skipping permission row", fields)
}
