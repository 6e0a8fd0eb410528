package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("connection reset")

	// When: wrapping with RankError
	rankErr := New(ErrCodeScorerUnavailable, "scorer unreachable", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, rankErr)
	assert.Equal(t, originalErr, errors.Unwrap(rankErr))
	assert.True(t, errors.Is(rankErr, originalErr))
}

func TestRankError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "bad weight",
			expected: "[ERR_102_CONFIG_INVALID] bad weight",
		},
		{
			name:     "not ready",
			code:     ErrCodeNotReady,
			message:  "no lexical index",
			expected: "[ERR_406_NOT_READY] no lexical index",
		},
		{
			name:     "scorer timeout",
			code:     ErrCodeScorerTimeout,
			message:  "deadline exceeded",
			expected: "[ERR_301_SCORER_TIMEOUT] deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestRankError_Is_MatchesByCode(t *testing.T) {
	// Given: a wrapped not-ready error
	inner := NotReadyError("docs", "vector")
	wrapped := fmt.Errorf("search failed: %w", inner)

	// Then: errors.Is matches on code through the chain
	assert.True(t, errors.Is(wrapped, &RankError{Code: ErrCodeNotReady}))
	assert.False(t, errors.Is(wrapped, &RankError{Code: ErrCodeNoCorpus}))
	assert.True(t, HasCode(wrapped, ErrCodeNotReady))
	assert.Equal(t, ErrCodeNotReady, GetCode(wrapped))
}

func TestNotReadyError_CarriesDetails(t *testing.T) {
	err := NotReadyError("docs", "lexical")

	assert.Equal(t, "docs", err.Details["corpus_id"])
	assert.Equal(t, "lexical", err.Details["engine"])
	assert.NotEmpty(t, err.Suggestion)
	assert.Equal(t, CategoryValidation, err.Category)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeCorpusInvalid, CategoryIO},
		{ErrCodeScorerRejected, CategoryNetwork},
		{ErrCodeInvalidWeight, CategoryValidation},
		{ErrCodeIndexingFailed, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, categoryFromCode(tt.code))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	// Given: scorer errors of different kinds
	timeout := New(ErrCodeScorerTimeout, "slow", nil)
	rejected := New(ErrCodeScorerRejected, "401", nil)

	// Then: only transient codes are retryable, including through wrapping
	assert.True(t, IsRetryable(timeout))
	assert.True(t, IsRetryable(fmt.Errorf("attempt: %w", timeout)))
	assert.False(t, IsRetryable(rejected))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestSeverityFromCode(t *testing.T) {
	assert.Equal(t, SeverityFatal, severityFromCode(ErrCodeSnapshotCorrupt))
	assert.Equal(t, SeverityWarning, severityFromCode(ErrCodeScorerUnavailable))
	assert.Equal(t, SeverityError, severityFromCode(ErrCodeInvalidMode))
	assert.True(t, IsFatal(New(ErrCodeSnapshotCorrupt, "x", nil)))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
