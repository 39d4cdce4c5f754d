package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies what went wrong talking to an LLM provider.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeResponse  ErrorType = "response"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int    // HTTP status code if known
	Model      string // Model name if known
	Endpoint   string // Endpoint URL if known; only the host is printed
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if host := endpointHost(e.Endpoint); host != "" {
		parts = append(parts, "endpoint="+host)
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// statusCodeOf extracts an HTTP status from provider SDK errors.
func statusCodeOf(err error) int {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return oaiAPI.HTTPStatusCode
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}
	var antReq *anthropic.RequestError
	if errors.As(err, &antReq) {
		return antReq.StatusCode
	}
	return 0
}

// ClassifyError categorizes a provider error into a structured Error.
// Typed SDK errors are inspected first; message patterns are the fallback.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	classified := classify(err)
	if classified.StatusCode == 0 {
		classified.StatusCode = statusCodeOf(err)
	}
	return classified
}

func classify(err error) *Error {
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeEndpoint, "request cancelled", false, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	}

	var antAPI *anthropic.APIError
	if errors.As(err, &antAPI) {
		switch {
		case antAPI.IsRateLimitErr():
			return NewError(ErrorTypeRateLimit, "rate limited", true, err)
		case antAPI.IsOverloadedErr(), antAPI.IsApiErr():
			return NewError(ErrorTypeEndpoint, "server error", true, err)
		case antAPI.IsAuthenticationErr(), antAPI.IsPermissionErr():
			return NewError(ErrorTypeAuth, "authentication failed", false, err)
		case antAPI.IsNotFoundErr():
			return NewError(ErrorTypeModel, "model not found", false, err)
		}
	}

	switch code := statusCodeOf(err); {
	case code == 401 || code == 403:
		e := NewError(ErrorTypeAuth, "authentication failed", false, err)
		e.StatusCode = code
		return e
	case code == 429:
		e := NewError(ErrorTypeRateLimit, "rate limited", true, err)
		e.StatusCode = code
		return e
	case code >= 500:
		e := NewError(ErrorTypeEndpoint, "server error", true, err)
		e.StatusCode = code
		return e
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	switch {
	case strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "incorrect api key"):
		return withStatus(NewError(ErrorTypeAuth, "authentication failed", false, err), 401)
	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")):
		return NewError(ErrorTypeModel, "model not found", false, err)
	case strings.Contains(errStr, "404"):
		return withStatus(NewError(ErrorTypeEndpoint, "endpoint not found", false, err), 404)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	case strings.Contains(lower, "timeout"):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	case strings.Contains(errStr, "429") || strings.Contains(lower, "rate limit"):
		return withStatus(NewError(ErrorTypeRateLimit, "rate limited", true, err), 429)
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504"):
		return NewError(ErrorTypeEndpoint, "server error", true, err)
	default:
		return NewError(ErrorTypeUnknown, "llm error", false, err)
	}
}

func withStatus(e *Error, code int) *Error {
	e.StatusCode = code
	return e
}

// IsRetryable returns true if the error is a retryable *Error.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
