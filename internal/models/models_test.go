package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  PermissionRecord
		wantErr bool
	}{
		{"global", PermissionRecord{OperatorID: 1, BranchScope: "All", RegionScope: "All"}, false},
		{"branch restricted", PermissionRecord{OperatorID: 2, BranchScope: "BranchX", RegionScope: "All"}, false},
		{"region restricted", PermissionRecord{OperatorID: 3, BranchScope: "BranchX", RegionScope: "North"}, false},
		{"region under global branch", PermissionRecord{OperatorID: 4, BranchScope: "All", RegionScope: "North"}, true},
		{"empty branch", PermissionRecord{OperatorID: 5, RegionScope: "All"}, true},
		{"empty region", PermissionRecord{OperatorID: 6, BranchScope: "BranchX"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate("All")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTable_Columns(t *testing.T) {
	table := &Table{Header: []string{" ID ", "Филиал", "РЭС"}}

	assert.Equal(t, 0, table.ColumnIndex("ID"))
	assert.Equal(t, 2, table.ColumnIndex("РЭС"))
	assert.Equal(t, -1, table.ColumnIndex("ФИО"))
	assert.Equal(t, []string{"ФИО"}, table.MissingColumns("ID", "ФИО"))
	assert.Empty(t, table.MissingColumns("ID", "Филиал"))
}

func TestCell(t *testing.T) {
	row := []string{" a ", "b"}
	assert.Equal(t, "a", Cell(row, 0))
	assert.Equal(t, "", Cell(row, 5))
	assert.Equal(t, "", Cell(row, -1))
}

func TestAssetRow_Attr(t *testing.T) {
	row := AssetRow{AssetName: "ТП-1", Attributes: []Attribute{{Key: "Опоры", Value: "1-5"}}}
	v, ok := row.Attr("Опоры")
	assert.True(t, ok)
	assert.Equal(t, "1-5", v)
	_, ok = row.Attr("missing")
	assert.False(t, ok)
}
