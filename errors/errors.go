package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// RetryAfter returns the retry-after hint attached to the error, if any.
func (e *AppError) RetryAfter() time.Duration {
	if e.Details == nil {
		return 0
	}
	if d, ok := e.Details[DetailRetryAfter].(time.Duration); ok {
		return d
	}
	return 0
}

// DetailRetryAfter is the detail key carrying a provider retry-after hint.
const DetailRetryAfter = "retry_after"

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in the chain, or ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeUnknown
}

// IsRetryable reports whether err carries a retryable AppError.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

// --- Taxonomy constructors ---

// NetworkTimeout creates an error for a backend that timed out or could not be reached.
func NetworkTimeout(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeNetworkTimeout, Message: fmt.Sprintf("The %s service did not respond in time.", service),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// AuthFailed creates an error for a credential rejected by a backend.
func AuthFailed(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeAuth, Message: fmt.Sprintf("The %s service rejected the credential.", service),
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// VoiceprintAuthFailed creates an error for a credential rejected by the identity-search backend.
func VoiceprintAuthFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeVoiceprintAuth, Message: "The voiceprint service rejected the credential.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false, Cause: cause,
	}
}

// SensitiveContent creates an error for transcription output that was masked.
func SensitiveContent(provider string) *AppError {
	return &AppError{
		Code: ErrCodeSensitiveContent, Message: "The recording contains content the transcription service refused to return.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"provider": provider},
	}
}

// AudioFormat creates an error for audio that could not be decoded or assembled.
func AudioFormat(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeAudioFormat, Message: fmt.Sprintf("The audio could not be processed: %s", reason),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false, Cause: cause,
	}
}

// QuotaExceeded creates an error for a provider whose credentials are out of quota.
func QuotaExceeded(provider string) *AppError {
	return &AppError{
		Code: ErrCodeQuotaExceeded, Message: fmt.Sprintf("All %s credentials have exhausted their quota.", provider),
		HTTPStatus: http.StatusPaymentRequired, Retryable: false,
		Details: map[string]any{"provider": provider},
	}
}

// RateLimited creates an error for a throttled request. A zero retryAfter leaves the hint unset.
func RateLimited(provider string, retryAfter time.Duration) *AppError {
	e := &AppError{
		Code: ErrCodeRateLimited, Message: fmt.Sprintf("The %s service is rate limiting requests.", provider),
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
		Details: map[string]any{"provider": provider},
	}
	if retryAfter > 0 {
		e.Details[DetailRetryAfter] = retryAfter
	}
	return e
}

// CircuitOpen creates an error for a provider whose credentials are all cooling down after failures.
func CircuitOpen(provider string) *AppError {
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("The %s service is failing; requests are paused.", provider),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"provider": provider},
	}
}

// LLMContentBlocked creates an error for generation refused by the model's content filter.
func LLMContentBlocked(provider, reason string) *AppError {
	return &AppError{
		Code: ErrCodeLLMContentBlocked, Message: "The language model refused to process the transcript.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"provider": provider, "reason": reason},
	}
}

// Unknown wraps an unclassified failure.
func Unknown(cause error) *AppError {
	return &AppError{
		Code: ErrCodeUnknown, Message: "An unexpected error occurred while processing the meeting.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// --- Service constructors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Conflict creates a new AppError for a conflict with the current state of the resource.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict, Retryable: false,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// DatabaseError creates a new AppError for a database error.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}
