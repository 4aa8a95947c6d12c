package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")

	// Authentication errors
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// Directory errors
var (
	ErrSchoolNotFound    = errors.New("school not found")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// Digest errors
var (
	// ErrConfiguration marks a school that cannot receive digests at all
	// (no displayable name, no primary domain). Fatal for that school's run.
	ErrConfiguration = errors.New("school configuration error")

	// ErrTransientDelivery is retried with backoff up to the retry budget.
	ErrTransientDelivery = errors.New("transient delivery failure")

	// ErrPermanentDelivery is recorded as failed and never retried.
	ErrPermanentDelivery = errors.New("permanent delivery failure")

	// ErrAlreadyDelivered is returned when the digest for this recipient and
	// date was already confirmed sent.
	ErrAlreadyDelivered = errors.New("digest already delivered")
)

// NewConfigurationError creates a configuration error with a message
func NewConfigurationError(message string) error {
	return &CustomError{
		Err:     ErrConfiguration,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// Is returns whether err matches target or any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}
