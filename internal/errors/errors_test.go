package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("zip: not a valid zip file")

	// When: wrapping it as an extraction error
	err := ExtractionError("data/qdd/a.docx", originalErr)

	// Then: unwrapping returns the original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
	assert.Equal(t, "data/qdd/a.docx", err.Details["path"])
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigNotFound, "config file not found", "[ERR_101_CONFIG_NOT_FOUND] config file not found"},
		{"document", ErrCodeDocumentCorrupt, "bad docx", "[ERR_202_DOCUMENT_CORRUPT] bad docx"},
		{"provider", ErrCodeProviderTimeout, "timed out", "[ERR_301_PROVIDER_TIMEOUT] timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestError_CategoryAndSeverityFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, false},
		{ErrCodeArtifactLoad, CategoryIO, false},
		{ErrCodeProviderRateLimited, CategoryProvider, true},
		{ErrCodeProviderRejected, CategoryProvider, false},
		{ErrCodeDimensionMismatch, CategoryValidation, false},
		{ErrCodeEmbeddingFailed, CategoryInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "x", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}

	assert.Equal(t, SeverityFatal, New(ErrCodeArtifactWrite, "x", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeDocumentCorrupt, "x", nil).Severity)
}

func TestError_Is_MatchesByCode(t *testing.T) {
	// Given: a provider error wrapped twice
	inner := New(ErrCodeEmbeddingFailed, "embedding provider call failed", nil)
	wrapped := fmt.Errorf("rebuild: %w", inner)

	// Then: code helpers see through the wrapping
	assert.True(t, HasCode(wrapped, ErrCodeEmbeddingFailed))
	assert.False(t, HasCode(wrapped, ErrCodeCompletionFailed))
	assert.Equal(t, ErrCodeEmbeddingFailed, GetCode(wrapped))
	assert.Equal(t, CategoryInternal, GetCategory(wrapped))
}

func TestIsRetryable_UsesOutermostError(t *testing.T) {
	// Given: a retryable cause wrapped in a terminal provider error
	cause := New(ErrCodeProviderUnavailable, "503", nil)
	final := EmbeddingError("embedding call failed", cause)

	// Then: the outer code decides
	assert.True(t, IsRetryable(cause))
	assert.False(t, IsRetryable(final))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestFromHTTPStatus(t *testing.T) {
	assert.Equal(t, ErrCodeProviderRateLimited, FromHTTPStatus(http.StatusTooManyRequests, "", nil).Code)
	assert.Equal(t, ErrCodeProviderUnavailable, FromHTTPStatus(http.StatusBadGateway, "", nil).Code)
	assert.Equal(t, ErrCodeProviderTimeout, FromHTTPStatus(http.StatusGatewayTimeout, "", nil).Code)
	assert.Equal(t, ErrCodeProviderRejected, FromHTTPStatus(http.StatusBadRequest, "bad input", nil).Code)
	assert.Equal(t, "Unauthorized", FromHTTPStatus(http.StatusUnauthorized, "", nil).Message)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrCodeProviderTimeout, GetCode(Classify(context.DeadlineExceeded)))
	assert.ErrorIs(t, Classify(context.Canceled), context.Canceled)
	assert.Equal(t, "", GetCode(Classify(context.Canceled)))
	assert.Equal(t, ErrCodeProviderRejected, GetCode(Classify(errors.New("boom"))))
	assert.Nil(t, Classify(nil))
}

func TestFormatForCLI(t *testing.T) {
	// Given: an index load error
	err := IndexLoadError("vector.index", errors.New("no such file"))

	// When: formatting for the terminal
	out := FormatForCLI(err)

	// Then: message, cause, hint and code are all present
	assert.Contains(t, out, "cannot load vector index vector.index")
	assert.Contains(t, out, "Cause: no such file")
	assert.Contains(t, out, "Hint:")
	assert.Contains(t, out, ErrCodeArtifactLoad)
}

func TestFormatJSON(t *testing.T) {
	data, err := FormatJSON(fmt.Errorf("outer: %w", CompletionError("completion call failed", nil)))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeCompletionFailed, decoded["code"])
	assert.Equal(t, string(CategoryInternal), decoded["category"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(errors.New("plain"))
	assert.Equal(t, []any{"error", "plain"}, attrs)
	assert.Nil(t, FormatForLog(nil))
}
