package sheet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "asset-lookup-bot/internal/common/errors"
	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/common/logger"
)

// ==========================
// URL Normalization
// ==========================

func TestNormalizeSheetURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "published sheet",
			in:   "https://docs.google.com/spreadsheets/d/e/2PACX-abc_1/pubhtml",
			want: "https://docs.google.com/spreadsheets/d/e/2PACX-abc_1/export?format=csv&gid=0",
		},
		{
			name: "edit link",
			in:   "https://docs.google.com/spreadsheets/d/1AbC-xyz/edit#gid=0",
			want: "https://docs.google.com/spreadsheets/d/1AbC-xyz/export?format=csv&gid=0",
		},
		{
			name: "drive file",
			in:   "https://drive.google.com/file/d/0Bz-file/view",
			want: "https://drive.google.com/uc?export=download&id=0Bz-file",
		},
		{
			name: "already csv output",
			in:   "https://docs.google.com/spreadsheets/d/e/X/pub?output=csv",
			want: "https://docs.google.com/spreadsheets/d/e/X/pub?output=csv",
		},
		{
			name: "plain csv file",
			in:   "  https://example.com/zones.csv ",
			want: "https://example.com/zones.csv",
		},
		{
			name: "unrecognized passes through",
			in:   "https://example.com/data",
			want: "https://example.com/data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSheetURL(tt.in))
		})
	}
}

// ==========================
// CSV Parsing
// ==========================

func TestParseCSV(t *testing.T) {
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Филиал, РЭС ,ID\nAll,All,42\nBranchY,North\n")...)

	table, err := ParseCSV(body, 0, "permissions")
	require.NoError(t, err)

	assert.Equal(t, []string{"Филиал", "РЭС", "ID"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"BranchY", "North"}, table.Rows[1], "short rows are kept")
}

func TestParseCSV_RowLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("Наименование ТП,РЭС\n")
	for i := 0; i < 10000; i++ {
		fmt.Fprintf(&b, "ТП-%05d,East\n", i)
	}
	b.WriteString("ТП-ZZ777,East\n")
	body := []byte(b.String())

	tests := []struct {
		name     string
		maxRows  int
		wantRows int
		wantCode apperrors.ErrorCode
	}{
		{name: "zero means unlimited", maxRows: 0, wantRows: 10001},
		{name: "limit not reached", maxRows: 10001, wantRows: 10001},
		{name: "limit exceeded", maxRows: 10000, wantCode: apperrors.ErrCodeSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseCSV(body, tt.maxRows, "BranchX")
			if tt.wantCode != "" {
				require.Error(t, err)
				stdErr, ok := apperrors.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, stdErr.Code)
				assert.Contains(t, stdErr.Details, "exceeds 10000 rows")
				return
			}
			require.NoError(t, err)
			require.Len(t, table.Rows, tt.wantRows)
			assert.Equal(t, []string{"ТП-ZZ777", "East"}, table.Rows[len(table.Rows)-1], "last row is never dropped")
		})
	}
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(nil, 0, "permissions")
	assert.Equal(t, apperrors.ErrCodeSchemaMismatch, apperrors.CodeOf(err))
}

// ==========================
// Sources
// ==========================

func createTestFetcher(t *testing.T) *Fetcher {
	return NewFetcher(commonhttp.NewClient(time.Second), 0, logger.NewTestLogger(t))
}

func TestPermissionSource_FetchTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("ID,Филиал,РЭС,ФИО\n42,All,All,Иванов\n"))
	}))
	defer server.Close()

	src := NewPermissionSource(createTestFetcher(t), server.URL+"/zones.csv")
	table, err := src.FetchTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"42", "All", "All", "Иванов"}}, table.Rows)
}

func TestPermissionSource_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewPermissionSource(createTestFetcher(t), server.URL+"/zones.csv")
	_, err := src.FetchTable(context.Background())

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeSourceUnavailable, stdErr.Code)
	assert.Equal(t, "permissions", stdErr.Metadata["source"])
}

func TestDatasetSource_FetchTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Наименование ТП,РЭС\n" + r.URL.Path + ",North\n"))
	}))
	defer server.Close()

	src := NewDatasetSource(createTestFetcher(t))
	src.Add("BranchX", server.URL+"/x.csv")
	src.Add("BranchEmpty", "")

	table, err := src.FetchTable(context.Background(), "BranchX")
	require.NoError(t, err)
	assert.Equal(t, "/x.csv", table.Rows[0][0])

	_, err = src.FetchTable(context.Background(), "BranchEmpty")
	assert.Equal(t, apperrors.ErrCodeBranchNotConfigured, apperrors.CodeOf(err))

	_, err = src.FetchTable(context.Background(), "Unknown")
	assert.Equal(t, apperrors.ErrCodeBranchNotConfigured, apperrors.CodeOf(err))
}
