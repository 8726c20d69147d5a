package models

import "strings"

// Table is the raw tabular payload every source adapter produces.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ColumnIndex returns the position of the named column, ignoring surrounding whitespace, or -1.
func (t *Table) ColumnIndex(name string) int {
	want := strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == want {
			return i
		}
	}
	return -1
}

// MissingColumns lists the names from required that are absent from the header.
func (t *Table) MissingColumns(required ...string) []string {
	var missing []string
	for _, name := range required {
		if t.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// Cell returns row[i] trimmed, or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
