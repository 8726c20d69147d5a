// Package postgres serves the permission directory from a database table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/models"
)

const sourceName = "permissions"

// PermissionSource selects the directory columns from one table. Column and table names
// are quoted, so they may be Cyrillic or mixed case.
type PermissionSource struct {
	db    *sql.DB
	query string
}

func NewPermissionSource(db *sql.DB, table string, columns ...string) *PermissionSource {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return &PermissionSource{
		db:    db,
		query: fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), pq.QuoteIdentifier(table)),
	}
}

func (s *PermissionSource) FetchTable(ctx context.Context) (*models.Table, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(sourceName, err)
	}

	table := &models.Table{Header: header}
	for rows.Next() {
		values := make([]sql.NullString, len(header))
		dest := make([]interface{}, len(header))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewSourceUnavailableError(sourceName, fmt.Errorf("scan row: %w", err))
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = v.String
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return table, nil
}

// classify maps missing-table and missing-column errors to a schema mismatch; anything
// else is treated as the database being unreachable.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "undefined_column", "undefined_table":
			return apperrors.NewSchemaMismatchError(sourceName, pqErr.Message)
		}
	}
	return apperrors.NewSourceUnavailableError(sourceName, err)
}
