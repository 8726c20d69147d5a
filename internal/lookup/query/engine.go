// Package query matches free-text asset identifiers against a dataset.
package query

import (
	"strings"

	"asset-lookup-bot/internal/models"
)

// Group is one logical asset: every matched row sharing a canonical name.
type Group struct {
	Key  string            `json:"key"`  // normalized canonical name
	Name string            `json:"name"` // asset name as written in the first row
	Rows []models.AssetRow `json:"rows"`
}

// MatchResult is the outcome of one query. Groups are in first-appearance order.
type MatchResult struct {
	NormalizedQuery string  `json:"normalizedQuery"`
	Groups          []Group `json:"groups"`
}

func (m *MatchResult) Empty() bool {
	return len(m.Groups) == 0
}

// Ambiguous reports more than one distinct canonical name. Several rows under one name are not ambiguous.
func (m *MatchResult) Ambiguous() bool {
	return len(m.Groups) > 1
}

// Names returns the display names of all groups.
func (m *MatchResult) Names() []string {
	names := make([]string, 0, len(m.Groups))
	for _, g := range m.Groups {
		names = append(names, g.Name)
	}
	return names
}

type Engine struct {
	prefix string
}

// NewEngine builds an engine that strips prefix (e.g. a facility-type token) during normalization.
func NewEngine(prefix string) *Engine {
	return &Engine{prefix: strings.ToUpper(prefix)}
}

// Normalize uppercases s, removes the prefix token and trims whitespace.
func (e *Engine) Normalize(s string) string {
	n := strings.ToUpper(s)
	if e.prefix != "" {
		n = strings.ReplaceAll(n, e.prefix, "")
	}
	return strings.TrimSpace(n)
}

// Match returns every row whose normalized name contains the normalized query, grouped by canonical name.
// An empty query or dataset yields an empty result.
func (e *Engine) Match(query string, rows []models.AssetRow) *MatchResult {
	result := &MatchResult{NormalizedQuery: e.Normalize(query)}
	if result.NormalizedQuery == "" {
		return result
	}

	index := make(map[string]int)
	for _, row := range rows {
		key := e.Normalize(row.AssetName)
		if !strings.Contains(key, result.NormalizedQuery) {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(result.Groups)
			index[key] = i
			result.Groups = append(result.Groups, Group{Key: key, Name: strings.TrimSpace(row.AssetName)})
		}
		result.Groups[i].Rows = append(result.Groups[i].Rows, row)
	}
	return result
}

// Select finds the group whose canonical name equals the normalized input.
func (e *Engine) Select(input string, groups []Group) (Group, bool) {
	key := e.Normalize(input)
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}
