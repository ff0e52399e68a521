// Package errors provides enhanced error types with helpful context and suggestions
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Resolution errors
	ErrCodeUnsafeSQL           ErrorCode = "UNSAFE_SQL"
	ErrCodeGenerationExhausted ErrorCode = "GENERATION_EXHAUSTED"
	ErrCodeSQLGeneration       ErrorCode = "SQL_GENERATION_FAILED"
	ErrCodeSQLExecution        ErrorCode = "SQL_EXECUTION_FAILED"

	// Database errors
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY_FAILED"

	// Authentication errors
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeNotAuthenticated   ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeInsufficientPerms  ErrorCode = "INSUFFICIENT_PERMISSIONS"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"

	// Input validation errors
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeEmptyQuestion ErrorCode = "EMPTY_QUESTION"
	ErrCodeInvalidRating ErrorCode = "INVALID_RATING"

	// Storage errors
	ErrCodeFeedbackWrite ErrorCode = "FEEDBACK_WRITE_FAILED"
)

// EnhancedError represents an error with additional context and helpful information
type EnhancedError struct {
	Code          ErrorCode              `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	Suggestion    string                 `json:"suggestion,omitempty"`
	Documentation string                 `json:"documentation,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Cause         error                  `json:"-"`
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.Details != "" {
		sb.WriteString(fmt.Sprintf(": %s", e.Details))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" (cause: %v)", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain unwrapping
func (e *EnhancedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly error message with suggestions
func (e *EnhancedError) UserMessage() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString(fmt.Sprintf("\n\nDetails: %s", e.Details))
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion))
	}

	if e.Documentation != "" {
		sb.WriteString(fmt.Sprintf("\n\nLearn more: %s", e.Documentation))
	}

	return sb.String()
}

// New creates a new EnhancedError
func New(code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with enhanced context
func Wrap(err error, code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Cause:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithDetails adds detailed information about the error
func (e *EnhancedError) WithDetails(details string) *EnhancedError {
	e.Details = details
	return e
}

// WithSuggestion adds a suggestion on how to fix the error
func (e *EnhancedError) WithSuggestion(suggestion string) *EnhancedError {
	e.Suggestion = suggestion
	return e
}

// WithMetadata adds additional metadata to the error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsEnhanced returns the first EnhancedError in err's chain
func AsEnhanced(err error) (*EnhancedError, bool) {
	var enhanced *EnhancedError
	if stderrors.As(err, &enhanced) {
		return enhanced, true
	}
	return nil, false
}

// CodeOf returns the code of the first EnhancedError in err's chain, or "" if there is none
func CodeOf(err error) ErrorCode {
	if enhanced, ok := AsEnhanced(err); ok {
		return enhanced.Code
	}
	return ""
}

// IsCode reports whether err's chain contains an EnhancedError with the given code
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Reason returns the innermost non-enhanced message in err's chain, which is
// what the underlying driver or client actually reported. An enhanced error
// without a cause yields its own message and details.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var enhanced *EnhancedError
	if !stderrors.As(err, &enhanced) {
		return err.Error()
	}
	if enhanced.Cause != nil {
		return Reason(enhanced.Cause)
	}
	if enhanced.Details != "" {
		return enhanced.Message + ": " + enhanced.Details
	}
	return enhanced.Message
}

// Common error constructors with pre-configured messages

// NewUnsafeSQLError is the validation error raised when generated SQL contains a
// forbidden (mutating) keyword. It is surfaced to the user and never retried.
func NewUnsafeSQLError(keyword string) *EnhancedError {
	return New(ErrCodeUnsafeSQL, "Security violation detected in generated query").
		WithDetails(fmt.Sprintf("The generated SQL contains the forbidden keyword %s", keyword)).
		WithSuggestion("Only read-only data questions are supported. Rephrase the question as a lookup rather than a change to the data.").
		WithMetadata("keyword", keyword)
}

// NewGenerationExhaustedError creates an error for a resolution whose every
// generation attempt failed. lastErr is the last observed underlying failure.
func NewGenerationExhaustedError(lastErr error, attempts int) *EnhancedError {
	msg := Reason(lastErr)
	return Wrap(lastErr, ErrCodeGenerationExhausted, "Failed to generate a working query").
		WithDetails(msg).
		WithSuggestion("Try rephrasing the question or naming the table or metric you are interested in.").
		WithMetadata("attempts", attempts).
		WithMetadata("last_error", msg)
}

// NewSQLGenerationError creates an error for generator (LLM) failures
func NewSQLGenerationError(err error) *EnhancedError {
	return Wrap(err, ErrCodeSQLGeneration, "Failed to generate SQL").
		WithDetails("The AI was unable to convert the question to SQL").
		WithMetadata("retryable", true)
}

// NewSQLExecutionError creates an error for SQL that failed against the dataset
func NewSQLExecutionError(err error, sql string) *EnhancedError {
	return Wrap(err, ErrCodeSQLExecution, "Failed to execute SQL").
		WithDetails(fmt.Sprintf("Query: %s", sql)).
		WithMetadata("sql", sql)
}

// NewEmptyQuestionError creates an error for a blank question
func NewEmptyQuestionError() *EnhancedError {
	return New(ErrCodeEmptyQuestion, "Please enter a question").
		WithSuggestion("For example: 'NPL ratio trend over the last 12 months'.")
}

// NewInvalidRatingError creates an error for feedback ratings other than up/down
func NewInvalidRatingError(rating string) *EnhancedError {
	return New(ErrCodeInvalidRating, "rating must be 'up' or 'down'").
		WithDetails(fmt.Sprintf("Received rating: %q", rating)).
		WithMetadata("rating", rating)
}

// NewFeedbackWriteError creates an error for feedback persistence failures
func NewFeedbackWriteError(err error) *EnhancedError {
	return Wrap(err, ErrCodeFeedbackWrite, "Failed to record feedback").
		WithSuggestion("This is an internal error. Please try again.").
		WithMetadata("retryable", true)
}

// NewInvalidCredentialsError creates an error for authentication failures
func NewInvalidCredentialsError() *EnhancedError {
	return New(ErrCodeInvalidCredentials, "Invalid credentials").
		WithDetails("The provided token or API key was rejected").
		WithSuggestion("Check the bearer token or X-API-Key header and try again.")
}

// NewNotAuthenticatedError creates an error for unauthenticated requests
func NewNotAuthenticatedError() *EnhancedError {
	return New(ErrCodeNotAuthenticated, "Authentication required").
		WithDetails("This endpoint requires authentication").
		WithSuggestion("Include a bearer token in the 'Authorization' header, or a valid API key in the 'X-API-Key' header.")
}

// NewInsufficientPermissionsError creates an error for authenticated users lacking a role
func NewInsufficientPermissionsError(roles ...string) *EnhancedError {
	return New(ErrCodeInsufficientPerms, "Insufficient permissions").
		WithDetails(fmt.Sprintf("This endpoint requires one of the roles: %s", strings.Join(roles, ", "))).
		WithMetadata("required_roles", roles)
}

// NewRateLimitedError creates an error for clients over their request budget
func NewRateLimitedError(limit int) *EnhancedError {
	return New(ErrCodeRateLimited, "Rate limit exceeded").
		WithDetails(fmt.Sprintf("The limit is %d requests per minute", limit)).
		WithSuggestion("Wait a moment before asking another question.").
		WithMetadata("limit_per_minute", limit)
}

// NewInvalidInputError creates an error for invalid input
func NewInvalidInputError(field string, reason string) *EnhancedError {
	return New(ErrCodeInvalidInput, "Invalid input").
		WithDetails(fmt.Sprintf("Field '%s' is invalid: %s", field, reason)).
		WithSuggestion("Please check the API documentation for the expected format and try again.")
}

// NewDatabaseConnectionError creates an error for database connection failures
func NewDatabaseConnectionError(err error) *EnhancedError {
	return Wrap(err, ErrCodeDatabaseConnection, "Database connection failed").
		WithDetails("Unable to connect to the database").
		WithSuggestion("This is an internal server error. The service may be experiencing issues. Please try again in a moment.").
		WithMetadata("retryable", true)
}

// NewDatabaseQueryError creates an error for database query failures
func NewDatabaseQueryError(err error, operation string) *EnhancedError {
	return Wrap(err, ErrCodeDatabaseQuery, "Database query failed").
		WithDetails(fmt.Sprintf("Failed to execute database operation: %s", operation)).
		WithSuggestion("This is an internal server error. If the problem persists, contact support.").
		WithMetadata("retryable", true)
}
