package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	rrerrors "github.com/Aman-CERP/rubricrank/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "no corpus", err: rrerrors.New(rrerrors.ErrCodeNoCorpus, "missing", nil), code: ErrCodeCorpusNotFound},
		{name: "not ready", err: rrerrors.New(rrerrors.ErrCodeNotReady, "loading", nil), code: ErrCodeCorpusNotFound},
		{name: "rubric not found", err: rrerrors.New(rrerrors.ErrCodeRubricNotFound, "missing", nil), code: ErrCodeRubricNotFound},
		{name: "already indexing", err: rrerrors.New(rrerrors.ErrCodeIndexingFailed, "busy", nil), code: ErrCodeBusy},
		{name: "scorer timeout", err: rrerrors.New(rrerrors.ErrCodeScorerTimeout, "slow", nil), code: ErrCodeTimeout},
		{name: "scorer unavailable", err: rrerrors.New(rrerrors.ErrCodeScorerUnavailable, "down", nil), code: ErrCodeScorerFailed},
		{name: "invalid mode", err: rrerrors.New(rrerrors.ErrCodeInvalidMode, "bad", nil), code: ErrCodeInvalidParams},
		{name: "internal", err: rrerrors.New(rrerrors.ErrCodeInternal, "boom", nil), code: ErrCodeInternalError},
		{name: "wrapped rank error", err: fmt.Errorf("search: %w", rrerrors.New(rrerrors.ErrCodeQueryEmpty, "empty", nil)), code: ErrCodeInvalidParams},
		{name: "deadline", err: context.DeadlineExceeded, code: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, code: ErrCodeTimeout},
		{name: "plain error", err: errors.New("boom"), code: ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_PassesMCPErrorThrough(t *testing.T) {
	orig := NewInvalidParamsError("limit must be positive")

	got := MapError(orig)

	assert.Same(t, orig, got)
}

func TestMapError_AppendsSuggestion(t *testing.T) {
	err := rrerrors.New(rrerrors.ErrCodeInvalidMode, "unknown search mode", nil).
		WithSuggestion("Use one of: keyword, semantic, hybrid")

	got := MapError(err)

	assert.Equal(t, "unknown search mode Use one of: keyword, semantic, hybrid", got.Message)
}

func TestMapError_HidesPlainErrorText(t *testing.T) {
	got := MapError(errors.New("dial tcp 10.0.0.1: refused"))

	assert.NotContains(t, got.Message, "10.0.0.1")
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("nope")

	assert.Equal(t, "MCP error -32601: Tool 'nope' not found.", err.Error())
}
