package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	warns  []map[string]interface{}
	errors []map[string]interface{}
}

func (r *recordingLogger) Warn(_ string, fields map[string]interface{}) {
	r.warns = append(r.warns, fields)
}

func (r *recordingLogger) Error(_ string, fields map[string]interface{}) {
	r.errors = append(r.errors, fields)
}

func TestAs_FindsWrappedStandardError(t *testing.T) {
	cause := stderrors.New("dial tcp: timeout")
	wrapped := fmt.Errorf("fetch permissions: %w", NewSourceUnavailableError("permissions", cause))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeSourceUnavailable, stdErr.Code)
	assert.True(t, stderrors.Is(wrapped, cause))
	assert.Equal(t, ErrCodeSourceUnavailable, CodeOf(wrapped))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeSourceUnavailable, true},
		{ErrCodeScopeViolation, true},
		{ErrCodeNoMatch, true},
		{ErrCodeAmbiguous, true},
		{ErrCodeBranchNotConfigured, true},
		{ErrCodeUnauthorized, false},
		{ErrCodeSchemaMismatch, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATA_SOURCE", GetErrorCategory(ErrCodeSourceUnavailable))
	assert.Equal(t, "DATA_SOURCE", GetErrorCategory(ErrCodeSchemaMismatch))
	assert.Equal(t, "AUTHORIZATION", GetErrorCategory(ErrCodeUnauthorized))
	assert.Equal(t, "AUTHORIZATION", GetErrorCategory(ErrCodeScopeViolation))
	assert.Equal(t, "QUERY", GetErrorCategory(ErrCodeAmbiguous))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidPayload))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestErrorHandler_Handle(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	got := h.Handle(NewSourceUnavailableError("BranchX", stderrors.New("timeout")), map[string]interface{}{"operatorId": int64(7)})
	assert.Equal(t, ErrCodeSourceUnavailable, got.Code)
	require.Len(t, log.warns, 1)
	assert.Equal(t, "BranchX", log.warns[0]["source"])
	assert.Equal(t, int64(7), log.warns[0]["operatorId"])

	got = h.Handle(stderrors.New("boom"), nil)
	assert.Equal(t, ErrCodeInternal, got.Code)

	got = h.Handle(NewSchemaMismatchError("permissions", "missing column ID"), nil)
	assert.Equal(t, ErrCodeSchemaMismatch, got.Code)
	assert.Len(t, log.errors, 1)
	assert.Len(t, log.warns, 2)
}
