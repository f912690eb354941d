package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard sentinel errors for common error cases
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request lacks valid authentication
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user doesn't have permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput indicates the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials indicates the provided credentials are invalid
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenNotFound indicates no active Basecamp token exists for a user
	ErrTokenNotFound = errors.New("basecamp token not found")

	// ErrExpiredNoRefresh indicates the token expired and there is no refresh token to renew it
	ErrExpiredNoRefresh = errors.New("basecamp token expired and no refresh token is available")

	// ErrRefreshFailed indicates the OAuth provider rejected a refresh attempt
	ErrRefreshFailed = errors.New("basecamp token refresh failed")

	// ErrTransport indicates a network, DNS or timeout failure reaching a remote service
	ErrTransport = errors.New("transport error")

	// ErrRemoteAPI indicates a remote service answered with a non-2xx status
	ErrRemoteAPI = errors.New("remote api error")

	// ErrConfigError indicates a configuration error
	ErrConfigError = errors.New("configuration error")

	// ErrDatabaseError indicates a database operation failed
	ErrDatabaseError = errors.New("database error")
)

// ErrorCode represents HTTP-like error codes
type ErrorCode int

const (
	CodeBadRequest          ErrorCode = http.StatusBadRequest
	CodeUnauthorized        ErrorCode = http.StatusUnauthorized
	CodeForbidden           ErrorCode = http.StatusForbidden
	CodeNotFound            ErrorCode = http.StatusNotFound
	CodeConflict            ErrorCode = http.StatusConflict
	CodeInternalServerError ErrorCode = http.StatusInternalServerError
	CodeBadGateway          ErrorCode = http.StatusBadGateway
	CodeServiceUnavailable  ErrorCode = http.StatusServiceUnavailable
	CodeGatewayTimeout      ErrorCode = http.StatusGatewayTimeout
)

// AppError represents an application-level error with additional context
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Err     error                  `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface for comparison
func (e *AppError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	return int(e.Code)
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new AppError with the given code, message, and underlying error
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound creates a new not found error
func NotFound(resource string, err error) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), err)
}

// Unauthorized creates a new unauthorized error
func Unauthorized(message string, err error) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(CodeUnauthorized, message, err)
}

// Forbidden creates a new forbidden error
func Forbidden(message string, err error) *AppError {
	if message == "" {
		message = "access denied"
	}
	return NewAppError(CodeForbidden, message, err)
}

// BadRequest creates a new bad request error
func BadRequest(message string, err error) *AppError {
	if message == "" {
		message = "invalid request"
	}
	return NewAppError(CodeBadRequest, message, err)
}

// InternalError creates a new internal server error
func InternalError(message string, err error) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalServerError, message, err)
}

// DatabaseError creates a new database error. This is the StorageError of the token store.
func DatabaseError(operation string, err error) *AppError {
	return NewAppError(CodeInternalServerError, fmt.Sprintf("database %s failed", operation), errors.Join(ErrDatabaseError, err))
}

// ConfigError creates a new configuration error
func ConfigError(message string) *AppError {
	return NewAppError(CodeInternalServerError, message, ErrConfigError)
}

// TokenNotFound reports that a user has no active Basecamp token
func TokenNotFound(userID string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("no active basecamp token for user %s", userID), ErrTokenNotFound)
}

// ExpiredNoRefresh reports an expired token that cannot be renewed
func ExpiredNoRefresh(userID string) *AppError {
	return NewAppError(CodeUnauthorized, fmt.Sprintf("basecamp token for user %s expired; re-authorization required", userID), ErrExpiredNoRefresh)
}

// RefreshFailed wraps the provider failure of a refresh attempt without hiding its cause
func RefreshFailed(err error) *AppError {
	appErr := NewAppError(CodeUnauthorized, "basecamp token refresh failed", errors.Join(ErrRefreshFailed, err))
	var cause *AppError
	if errors.As(err, &cause) && cause.Details != nil {
		appErr.Details = cause.Details
	}
	return appErr
}

// Transport creates an error for a failure reaching a remote service
func Transport(operation string, err error) *AppError {
	return NewAppError(CodeBadGateway, fmt.Sprintf("%s: request failed", operation), errors.Join(ErrTransport, err))
}

// RemoteAPI creates an error for a non-2xx answer from a remote service.
// The status, status text and body are kept so callers can tell 404 from 403 from 429.
func RemoteAPI(operation string, status int, statusText, body string) *AppError {
	if statusText == "" {
		statusText = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	message := fmt.Sprintf("%s: %s", operation, statusText)
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		message = fmt.Sprintf("%s: %s", message, truncate(trimmed, 512))
	}

	code := ErrorCode(status)
	if status < 400 || status > 599 {
		code = CodeBadGateway
	}

	return NewAppError(code, message, ErrRemoteAPI).WithDetails(map[string]interface{}{
		"status":      status,
		"status_text": statusText,
		"body":        body,
	})
}

// ValidationError creates a new validation error with field details
func ValidationError(field, message string) *AppError {
	return NewAppError(CodeBadRequest, message, ErrInvalidInput).WithDetails(map[string]interface{}{
		"field": field,
	})
}

// StatusOf returns the remote HTTP status carried by err, or 0 when there is none
func StatusOf(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return 0
	}
	status, _ := appErr.Details["status"].(int)
	return status
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeUnauthorized
	}
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if an error is a forbidden error
func IsForbidden(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeForbidden
	}
	return errors.Is(err, ErrForbidden)
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeBadRequest
	}
	return errors.Is(err, ErrInvalidInput)
}

// NeedsReauthorization reports whether the user has to connect Basecamp again
func NeedsReauthorization(err error) bool {
	return errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrExpiredNoRefresh) || errors.Is(err, ErrRefreshFailed)
}

// HTTPStatusOf maps any error to the status a handler should answer with
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
