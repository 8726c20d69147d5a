package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type countingSource struct {
	table *models.Table
	err   error
	calls int
}

func (s *countingSource) FetchTable(context.Context, string) (*models.Table, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.table, nil
}

func createTestTable() *models.Table {
	return &models.Table{
		Header: []string{"Наименование ТП", "РЭС"},
		Rows:   [][]string{{"ТП-AB1", "East"}},
	}
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// ==========================
// Core Functionality Tests
// ==========================

func TestFetchTable_ReadThrough(t *testing.T) {
	mr, client := setupMiniredis(t)
	src := &countingSource{table: createTestTable()}
	c := New(client, src, time.Minute, logger.NewTestLogger(t))

	first, err := c.FetchTable(context.Background(), "BranchX")
	require.NoError(t, err)
	second, err := c.FetchTable(context.Background(), "BranchX")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(Key("BranchX")))

	mr.FastForward(2 * time.Minute)
	_, err = c.FetchTable(context.Background(), "BranchX")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "expired entry is refilled")
}

func TestFetchTable_ErrorsAreNotCached(t *testing.T) {
	mr, client := setupMiniredis(t)
	src := &countingSource{err: apperrors.NewSourceUnavailableError("BranchX", errors.New("timeout"))}
	c := New(client, src, time.Minute, logger.NewNoOpLogger())

	_, err := c.FetchTable(context.Background(), "BranchX")
	assert.Equal(t, apperrors.ErrCodeSourceUnavailable, apperrors.CodeOf(err))
	assert.False(t, mr.Exists(Key("BranchX")))
}

func TestFetchTable_CorruptEntryIsReplaced(t *testing.T) {
	mr, client := setupMiniredis(t)
	require.NoError(t, mr.Set(Key("BranchX"), "{not json"))
	src := &countingSource{table: createTestTable()}
	c := New(client, src, time.Minute, logger.NewNoOpLogger())

	table, err := c.FetchTable(context.Background(), "BranchX")
	require.NoError(t, err)
	assert.Equal(t, createTestTable(), table)

	stored, err := mr.Get(Key("BranchX"))
	require.NoError(t, err)
	var decoded models.Table
	require.NoError(t, json.Unmarshal([]byte(stored), &decoded))
	assert.Equal(t, *createTestTable(), decoded)
}

func TestFetchTable_RedisDownFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	src := &countingSource{table: createTestTable()}
	c := New(client, src, time.Minute, logger.NewNoOpLogger())

	payload, err := json.Marshal(createTestTable())
	require.NoError(t, err)

	mock.ExpectGet(Key("BranchX")).SetErr(errors.New("connection refused"))
	mock.ExpectSet(Key("BranchX"), payload, time.Minute).SetErr(errors.New("connection refused"))

	table, err := c.FetchTable(context.Background(), "BranchX")
	require.NoError(t, err)
	assert.Equal(t, createTestTable(), table)
	assert.Equal(t, 1, src.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvict(t *testing.T) {
	mr, client := setupMiniredis(t)
	src := &countingSource{table: createTestTable()}
	c := New(client, src, time.Minute, logger.NewNoOpLogger())

	_, err := c.FetchTable(context.Background(), "BranchX")
	require.NoError(t, err)
	require.NoError(t, c.Evict(context.Background(), "BranchX"))
	assert.False(t, mr.Exists(Key("BranchX")))
}
