// Package elasticsearch serves branch datasets from search indices.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/models"
)

// pageSize is the number of hits requested per search_after page.
const pageSize = 1000

type searchHit struct {
	Source map[string]interface{} `json:"_source"`
	Sort   []interface{}          `json:"sort"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// DatasetSource maps each branch to one index and returns every document as a row.
// maxRows > 0 rejects an index holding more documents; 0 means no limit.
type DatasetSource struct {
	client   *elasticsearch.Client
	maxRows  int
	pageSize int
	indices  map[string]string
}

func NewDatasetSource(client *elasticsearch.Client, maxRows int) *DatasetSource {
	return &DatasetSource{
		client:   client,
		maxRows:  maxRows,
		pageSize: pageSize,
		indices:  make(map[string]string),
	}
}

// Add binds a branch to its index.
func (s *DatasetSource) Add(branch, index string) {
	s.indices[branch] = index
}

// FetchTable pages through the whole index in _doc order.
func (s *DatasetSource) FetchTable(ctx context.Context, branch string) (*models.Table, error) {
	index, ok := s.indices[branch]
	if !ok || index == "" {
		return nil, apperrors.NewBranchNotConfiguredError(branch)
	}

	var docs []map[string]interface{}
	var after []interface{}
	for {
		hits, err := s.page(ctx, branch, index, after)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			docs = append(docs, h.Source)
		}
		if s.maxRows > 0 && len(docs) > s.maxRows {
			return nil, apperrors.NewSchemaMismatchError(branch,
				fmt.Sprintf("dataset exceeds %d rows", s.maxRows))
		}
		if len(hits) < s.pageSize {
			break
		}
		after = hits[len(hits)-1].Sort
		if len(after) == 0 {
			return nil, apperrors.NewSourceUnavailableError(branch, fmt.Errorf("search %s: hits carry no sort values", index))
		}
	}
	return Flatten(docs), nil
}

func (s *DatasetSource) page(ctx context.Context, branch, index string, after []interface{}) ([]searchHit, error) {
	query := map[string]interface{}{
		"size":  s.pageSize,
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []interface{}{map[string]string{"_doc": "asc"}},
	}
	if after != nil {
		query["search_after"] = after
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(branch, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return nil, apperrors.NewSchemaMismatchError(branch, fmt.Sprintf("index %q not found", index))
		}
		return nil, apperrors.NewSourceUnavailableError(branch, fmt.Errorf("search %s: %s", index, res.Status()))
	}

	var out searchResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, apperrors.NewSourceUnavailableError(branch, fmt.Errorf("decode search response: %w", err))
	}
	return out.Hits.Hits, nil
}

// Flatten turns documents into a table whose header is the sorted union of top-level
// field names. Missing fields become empty cells.
func Flatten(docs []map[string]interface{}) *models.Table {
	keys := make(map[string]bool)
	for _, d := range docs {
		for k := range d {
			keys[k] = true
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	table := &models.Table{Header: header, Rows: make([][]string, 0, len(docs))}
	for _, d := range docs {
		row := make([]string, len(header))
		for i, k := range header {
			if v, ok := d[k]; ok && v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
