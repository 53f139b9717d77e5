package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeraboxError_Error(t *testing.T) {
	err := NewTeraboxError(404, "File not found", ErrShareNotFound)

	result := err.Error()

	if !strings.Contains(result, "terabox error") {
		t.Error("Error message should contain 'terabox error'")
	}
	if !strings.Contains(result, "404") {
		t.Error("Error message should contain error code")
	}
	if !strings.Contains(result, "ShareNotFound") {
		t.Error("Error message should contain error type")
	}
	if !strings.Contains(result, "File not found") {
		t.Error("Error message should contain the message")
	}
}

func TestTeraboxError_DetailedError(t *testing.T) {
	err := NewTeraboxError(429, "Rate limit exceeded", ErrRateLimit).
		WithURL("https://www.terabox.com/share/list?jsToken=abc").
		WithRetryAfter(60).
		WithContext("attempts", 3)

	result := err.DetailedError()

	assert.Contains(t, result, "WARNING")
	assert.Contains(t, result, "RateLimit Error")
	assert.Contains(t, result, "Code: 429")
	assert.Contains(t, result, "Rate limit exceeded")
	assert.Contains(t, result, "Retry after: 60 seconds")
	assert.Contains(t, result, "attempts=3")
	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "www.terabox.com/share/list?[REDACTED]")
	assert.NotContains(t, result, "jsToken=abc")
}

func TestTeraboxError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewUpstreamUnavailableError("share list", 3, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "share list failed after 3 attempts")

	wrapped := fmt.Errorf("resolving: %w", err)
	te, ok := AsTeraboxError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrUpstreamUnavailable, te.Type)
	assert.True(t, IsType(wrapped, ErrUpstreamUnavailable))
	assert.False(t, IsType(wrapped, ErrRateLimit))
	assert.False(t, IsType(cause, ErrUpstreamUnavailable))
}

func TestTeraboxError_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *TeraboxError
		retryable bool
	}{
		{"rate_limit", NewRateLimitError(0), true},
		{"network_timeout", NewNetworkTimeoutError("share page"), true},
		{"invalid_response_5xx", NewTeraboxError(502, "bad gateway page", ErrInvalidResponse), true},
		{"invalid_response_200", NewTeraboxError(200, "not json", ErrInvalidResponse), false},
		{"auth_required", NewAuthRequiredError("need login"), false},
		{"share_not_found", NewShareNotFoundError(105, ""), false},
		{"upstream_unavailable", NewUpstreamUnavailableError("op", 3, nil), false},
		{"no_files", NewNoFilesFoundError("abc"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
		})
	}
}

func TestTeraboxError_IsCritical(t *testing.T) {
	assert.True(t, NewAuthRequiredError("expired").IsCritical())
	assert.False(t, NewRateLimitError(10).IsCritical())
}

func TestTeraboxError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name           string
		err            *TeraboxError
		notFoundStatus int
		expected       int
	}{
		{"invalid_url", NewInvalidURLError("x", "bad"), 404, http.StatusBadRequest},
		{"invalid_share", NewInvalidShareError("x"), 404, http.StatusBadRequest},
		{"no_files_default", NewNoFilesFoundError("abc"), 404, http.StatusNotFound},
		{"no_files_configured_500", NewNoFilesFoundError("abc"), 500, http.StatusInternalServerError},
		{"no_files_unset", NewNoFilesFoundError("abc"), 0, http.StatusNotFound},
		{"share_not_found", NewShareNotFoundError(-9, "share expired"), 404, http.StatusInternalServerError},
		{"token_extraction", NewTokenExtractionError("jsToken"), 404, http.StatusInternalServerError},
		{"upstream_unavailable", NewUpstreamUnavailableError("op", 3, nil), 404, http.StatusInternalServerError},
		{"auth_required", NewAuthRequiredError("x"), 404, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.HTTPStatus(tt.notFoundStatus))
		})
	}
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		expected  ErrorType
	}{
		{"too_many_requests", http.StatusTooManyRequests, true, ErrRateLimit},
		{"too_many_requests_unlisted", http.StatusTooManyRequests, false, ErrRateLimit},
		{"forbidden_transient", http.StatusForbidden, true, ErrRateLimit},
		{"bad_gateway", http.StatusBadGateway, true, ErrRateLimit},
		{"not_found", http.StatusNotFound, false, ErrShareNotFound},
		{"unauthorized", http.StatusUnauthorized, false, ErrAuthRequired},
		{"bad_request", http.StatusBadRequest, false, ErrUpstreamRejected},
		{"forbidden_not_listed", http.StatusForbidden, false, ErrUpstreamRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStatusError(tt.status, tt.transient)
			assert.Equal(t, tt.expected, err.Type)
		})
	}
}

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrInvalidURL, "InvalidUrl"},
		{ErrInvalidShare, "InvalidShare"},
		{ErrTokenExtractionFailed, "TokenExtractionFailed"},
		{ErrUpstreamUnavailable, "UpstreamUnavailable"},
		{ErrNoFilesFound, "NoFilesFound"},
		{ErrPartialResolution, "PartialResolution"},
		{ErrRateLimit, "RateLimit"},
		{ErrShareNotFound, "ShareNotFound"},
		{ErrorType(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.errorType.String(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("max_retries", "must be between 1 and 10").
		WithSuggestion("Use 3")

	assert.Equal(t, "validation error for max_retries: must be between 1 and 10 - Suggestion: Use 3", err.Error())
}

func TestValidationError_DetailedError(t *testing.T) {
	err := NewValidationErrorWithValue("log_level", "unknown log level", "loud").
		WithContext("source", "env")

	result := err.DetailedError()

	assert.Contains(t, result, "Validation Error for field 'log_level'")
	assert.Contains(t, result, "Provided value: loud")
	assert.Contains(t, result, "source=env")
}

func TestCommonErrorConstructors(t *testing.T) {
	t.Run("invalid_url", func(t *testing.T) {
		err := NewInvalidURLError("https://example.com/s/1", "unsupported domain: example.com")
		assert.Equal(t, ErrInvalidURL, err.Type)
		assert.Equal(t, "https://example.com/s/1", err.URL)
		assert.Contains(t, err.Message, "unsupported domain")
	})

	t.Run("token_extraction", func(t *testing.T) {
		err := NewTokenExtractionError("jsToken", "logid")
		assert.Equal(t, ErrTokenExtractionFailed, err.Type)
		assert.Equal(t, "jsToken,logid", err.Context["missing"])
	})

	t.Run("no_files", func(t *testing.T) {
		err := NewNoFilesFoundError("AbCd")
		assert.Equal(t, ErrNoFilesFound, err.Type)
		assert.Equal(t, "No files found in response", err.Message)
	})

	t.Run("rate_limit", func(t *testing.T) {
		err := NewRateLimitError(30)
		assert.Equal(t, 429, err.Code)
		assert.Equal(t, 30, err.RetryAfter)
	})
}

func TestGetDefaultSeverity(t *testing.T) {
	assert.Equal(t, SeverityInfo, getDefaultSeverity(ErrInvalidURL))
	assert.Equal(t, SeverityWarning, getDefaultSeverity(ErrRateLimit))
	assert.Equal(t, SeverityCritical, getDefaultSeverity(ErrAuthRequired))
	assert.Equal(t, SeverityError, getDefaultSeverity(ErrUpstreamUnavailable))
}

func TestRedactSensitiveURL(t *testing.T) {
	assert.Equal(t, "https://terabox.com/s/1abc", redactSensitiveURL("https://terabox.com/s/1abc"))
	assert.Equal(t, "https://terabox.com/sharing/link?[REDACTED]", redactSensitiveURL("https://terabox.com/sharing/link?surl=abc"))
}
