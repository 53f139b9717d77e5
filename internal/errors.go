package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the kind of failure a resolution request ended with
type ErrorType int

const (
	ErrInvalidURL ErrorType = iota
	ErrInvalidShare
	ErrTokenExtractionFailed
	ErrUpstreamUnavailable
	ErrNoFilesFound
	ErrPartialResolution

	// Classification kinds raised by the upstream layer
	ErrRateLimit
	ErrNetworkTimeout
	ErrUpstreamRejected
	ErrAuthRequired
	ErrShareNotFound
	ErrInvalidResponse
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// TeraboxError represents a resolution error with a stable kind and detail for callers
type TeraboxError struct {
	Code       int                    `json:"errno"`
	Message    string                 `json:"errmsg"`
	Type       ErrorType              `json:"type"`
	Severity   ErrorSeverity          `json:"severity"`
	URL        string                 `json:"url,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"` // seconds
	Context    map[string]interface{} `json:"context,omitempty"`

	cause error
}

// Error implements the error interface
func (e *TeraboxError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("terabox error (code: %d, type: %s)", e.Code, e.Type.String()))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.cause != nil {
		parts = append(parts, e.cause.Error())
	}

	return strings.Join(parts, " - ")
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As
func (e *TeraboxError) Unwrap() error {
	return e.cause
}

// DetailedError returns a detailed error message with all available information
func (e *TeraboxError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s Error", e.Severity.String(), e.Type.String()))

	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("Code: %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}
	if e.cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %s", e.cause.Error()))
	}

	// URL is logged without its query string
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", redactSensitiveURL(e.URL)))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("Retry after: %d seconds", e.RetryAfter))
	}

	return strings.Join(parts, "\n")
}

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrInvalidURL:
		return "InvalidUrl"
	case ErrInvalidShare:
		return "InvalidShare"
	case ErrTokenExtractionFailed:
		return "TokenExtractionFailed"
	case ErrUpstreamUnavailable:
		return "UpstreamUnavailable"
	case ErrNoFilesFound:
		return "NoFilesFound"
	case ErrPartialResolution:
		return "PartialResolution"
	case ErrRateLimit:
		return "RateLimit"
	case ErrNetworkTimeout:
		return "NetworkTimeout"
	case ErrUpstreamRejected:
		return "UpstreamRejected"
	case ErrAuthRequired:
		return "AuthRequired"
	case ErrShareNotFound:
		return "ShareNotFound"
	case ErrInvalidResponse:
		return "InvalidResponse"
	default:
		return "Unknown"
	}
}

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// NewTeraboxError creates a new TeraboxError with the default suggestion and severity for its kind
func NewTeraboxError(code int, message string, errorType ErrorType) *TeraboxError {
	return &TeraboxError{
		Code:       code,
		Message:    message,
		Type:       errorType,
		Severity:   getDefaultSeverity(errorType),
		Suggestion: getDefaultSuggestion(errorType, code),
		Context:    make(map[string]interface{}),
	}
}

// WithSuggestion adds a custom suggestion to the error
func (e *TeraboxError) WithSuggestion(suggestion string) *TeraboxError {
	e.Suggestion = suggestion
	return e
}

// WithURL adds URL context to the error (will be redacted in logs)
func (e *TeraboxError) WithURL(url string) *TeraboxError {
	e.URL = url
	return e
}

// WithRetryAfter sets the retry delay for rate limit errors
func (e *TeraboxError) WithRetryAfter(seconds int) *TeraboxError {
	e.RetryAfter = seconds
	return e
}

// WithContext adds context information to the error
func (e *TeraboxError) WithContext(key string, value interface{}) *TeraboxError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause records the underlying error
func (e *TeraboxError) WithCause(err error) *TeraboxError {
	e.cause = err
	return e
}

// IsRetryable returns true if the error is a transient upstream condition
func (e *TeraboxError) IsRetryable() bool {
	switch e.Type {
	case ErrNetworkTimeout, ErrRateLimit:
		return true
	case ErrInvalidResponse:
		// 5xx bodies that failed to parse are usually maintenance pages
		return e.Code >= 500
	default:
		return false
	}
}

// IsCritical returns true if the error is critical and should stop execution
func (e *TeraboxError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// HTTPStatus maps the error kind onto the status code returned by the API.
// notFoundStatus is the configured status for NoFilesFound.
func (e *TeraboxError) HTTPStatus(notFoundStatus int) int {
	switch e.Type {
	case ErrInvalidURL, ErrInvalidShare:
		return http.StatusBadRequest
	case ErrNoFilesFound:
		if notFoundStatus == 0 {
			return http.StatusNotFound
		}
		return notFoundStatus
	default:
		return http.StatusInternalServerError
	}
}

// AsTeraboxError returns the first TeraboxError in err's chain
func AsTeraboxError(err error) (*TeraboxError, bool) {
	var te *TeraboxError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsType reports whether err carries a TeraboxError of the given kind
func IsType(err error, errorType ErrorType) bool {
	te, ok := AsTeraboxError(err)
	return ok && te.Type == errorType
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed validation error message
func (e *ValidationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Validation Error for field '%s'", e.Field))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))

	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("Provided value: %v", e.Value))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError with the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context to the validation error
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func getDefaultSuggestion(errorType ErrorType, code int) string {
	switch errorType {
	case ErrInvalidURL:
		return "Please ensure the URL is a valid TeraBox share link (e.g., https://terabox.com/s/...)"
	case ErrInvalidShare:
		return "The share identifier could not be found in the link or its redirect target"
	case ErrTokenExtractionFailed:
		return "The share page layout may have changed or the cookies were rejected. Refresh the cookie set"
	case ErrUpstreamUnavailable:
		return "Try again later or check your cookies"
	case ErrNoFilesFound:
		return "The share is empty or contains only nested folders"
	case ErrRateLimit:
		return "Please wait before retrying. Consider lowering requests_per_second"
	case ErrNetworkTimeout:
		return "Check your internet connection and try again. Consider using a proxy if needed"
	case ErrAuthRequired:
		return "Provide fresh cookies using --cookies or TERALINK_COOKIES"
	case ErrShareNotFound:
		return "Verify the share link is still valid and the files haven't been removed"
	case ErrInvalidResponse:
		if code >= 500 {
			return "Server error occurred. Please try again later"
		}
		return "Invalid response from server. The API might have changed"
	default:
		return "Please check the error details and try again"
	}
}

func getDefaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrRateLimit, ErrNetworkTimeout, ErrPartialResolution:
		return SeverityWarning
	case ErrInvalidURL, ErrInvalidShare, ErrNoFilesFound:
		return SeverityInfo
	case ErrAuthRequired:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// redactSensitiveURL drops the query string, which carries tokens and log ids
func redactSensitiveURL(url string) string {
	if strings.Contains(url, "?") {
		parts := strings.Split(url, "?")
		return parts[0] + "?[REDACTED]"
	}
	return url
}

// NewInvalidURLError creates an error for URLs that fail validation
func NewInvalidURLError(url string, reason string) *TeraboxError {
	return NewTeraboxError(400, fmt.Sprintf("Invalid URL: %s", reason), ErrInvalidURL).
		WithURL(url)
}

// NewInvalidShareError creates an error for links without a derivable share identifier
func NewInvalidShareError(url string) *TeraboxError {
	return NewTeraboxError(400, "could not extract share identifier (surl)", ErrInvalidShare).
		WithURL(url)
}

// NewTokenExtractionError names the artifacts that were missing from the share page
func NewTokenExtractionError(missing ...string) *TeraboxError {
	return NewTeraboxError(0, "could not extract required tokens", ErrTokenExtractionFailed).
		WithContext("missing", strings.Join(missing, ","))
}

// NewUpstreamUnavailableError wraps the last error seen before retries ran out
func NewUpstreamUnavailableError(operation string, attempts int, last error) *TeraboxError {
	return NewTeraboxError(503, fmt.Sprintf("%s failed after %d attempts", operation, attempts), ErrUpstreamUnavailable).
		WithContext("operation", operation).
		WithCause(last)
}

// NewNoFilesFoundError creates an error for listings without leaf files
func NewNoFilesFoundError(surl string) *TeraboxError {
	return NewTeraboxError(404, "No files found in response", ErrNoFilesFound).
		WithContext("surl", surl)
}

// NewAuthRequiredError creates an error for rejected credentials
func NewAuthRequiredError(message string) *TeraboxError {
	return NewTeraboxError(401, message, ErrAuthRequired)
}

// NewRateLimitError creates an error for rate limiting
func NewRateLimitError(retryAfter int) *TeraboxError {
	return NewTeraboxError(429, "Rate limit exceeded", ErrRateLimit).
		WithRetryAfter(retryAfter)
}

// NewNetworkTimeoutError creates an error for network timeouts
func NewNetworkTimeoutError(operation string) *TeraboxError {
	return NewTeraboxError(408, fmt.Sprintf("Network timeout during %s", operation), ErrNetworkTimeout)
}

// NewShareNotFoundError creates an error for expired, removed or blocked shares
func NewShareNotFoundError(code int, message string) *TeraboxError {
	if message == "" {
		message = "File not found or share link is invalid"
	}
	return NewTeraboxError(code, message, ErrShareNotFound)
}

// NewStatusError classifies an unexpected upstream HTTP status
func NewStatusError(status int, transient bool) *TeraboxError {
	switch {
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(0)
	case transient && status == http.StatusForbidden:
		return NewTeraboxError(status, "Forbidden - rotating user agent", ErrRateLimit)
	case transient:
		return NewTeraboxError(status, fmt.Sprintf("upstream returned %d", status), ErrRateLimit).
			WithSuggestion("Server error occurred. Please try again later")
	case status == http.StatusNotFound:
		return NewShareNotFoundError(status, "upstream resource not found")
	case status == http.StatusUnauthorized:
		return NewAuthRequiredError("Authentication required")
	default:
		return NewTeraboxError(status, fmt.Sprintf("upstream rejected request with %d", status), ErrUpstreamRejected)
	}
}
