// Package sheet reads published spreadsheets as CSV over HTTP.
package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	apperrors "asset-lookup-bot/internal/common/errors"
	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/models"
)

var (
	publishedPattern = regexp.MustCompile(`/d/e/([\w-]+)/`)
	filePattern      = regexp.MustCompile(`/file/d/([\w-]+)`)
	docPattern       = regexp.MustCompile(`/d/([\w-]+)`)
)

// NormalizeSheetURL rewrites a spreadsheet or drive link into a direct CSV export link.
// Links that already point at an export are returned unchanged.
func NormalizeSheetURL(url string) string {
	url = strings.TrimSpace(url)
	if strings.Contains(url, "output=csv") || strings.Contains(url, "/export") || strings.HasSuffix(url, ".csv") {
		return url
	}
	if m := publishedPattern.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("https://docs.google.com/spreadsheets/d/e/%s/export?format=csv&gid=0", m[1])
	}
	if m := filePattern.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", m[1])
	}
	if m := docPattern.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=0", m[1])
	}
	return url
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a CSV document into a table. The first record is the header.
// With maxRows > 0 a document holding more data rows is rejected rather than truncated;
// 0 means no limit.
func ParseCSV(body []byte, maxRows int, source string) (*models.Table, error) {
	body = bytes.TrimPrefix(body, utf8BOM)

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.NewSchemaMismatchError(source, fmt.Sprintf("malformed csv: %v", err))
	}
	if len(records) == 0 {
		return nil, apperrors.NewSchemaMismatchError(source, "empty document, no header row")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	rows := records[1:]
	if maxRows > 0 && len(rows) > maxRows {
		return nil, apperrors.NewSchemaMismatchError(source,
			fmt.Sprintf("dataset exceeds %d rows (got %d)", maxRows, len(rows)))
	}
	return &models.Table{Header: header, Rows: rows}, nil
}

// Fetcher downloads and parses sheets.
type Fetcher struct {
	client  *commonhttp.Client
	maxRows int
	logger  logger.Logger
}

func NewFetcher(client *commonhttp.Client, maxRows int, log logger.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		maxRows: maxRows,
		logger:  log.WithFields(map[string]interface{}{"component": "sheet"}),
	}
}

func (f *Fetcher) fetch(ctx context.Context, source, url string) (*models.Table, error) {
	body, err := f.client.GetBody(ctx, NormalizeSheetURL(url))
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(source, err)
	}
	table, err := ParseCSV(body, f.maxRows, source)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("sheet fetched", map[string]interface{}{
		"source": source,
		"rows":   len(table.Rows),
	})
	return table, nil
}

// PermissionSource serves the operator directory from one sheet.
type PermissionSource struct {
	fetcher *Fetcher
	url     string
}

func NewPermissionSource(fetcher *Fetcher, url string) *PermissionSource {
	return &PermissionSource{fetcher: fetcher, url: url}
}

func (s *PermissionSource) FetchTable(ctx context.Context) (*models.Table, error) {
	return s.fetcher.fetch(ctx, "permissions", s.url)
}

// DatasetSource serves branch datasets, one sheet per branch.
type DatasetSource struct {
	fetcher *Fetcher
	urls    map[string]string
}

func NewDatasetSource(fetcher *Fetcher) *DatasetSource {
	return &DatasetSource{fetcher: fetcher, urls: make(map[string]string)}
}

// Add binds a branch to its sheet URL.
func (s *DatasetSource) Add(branch, url string) {
	s.urls[branch] = url
}

func (s *DatasetSource) FetchTable(ctx context.Context, branch string) (*models.Table, error) {
	url, ok := s.urls[branch]
	if !ok || url == "" {
		return nil, apperrors.NewBranchNotConfiguredError(branch)
	}
	return s.fetcher.fetch(ctx, branch, url)
}
