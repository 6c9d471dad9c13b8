package sysmgmt

import "fmt"

// APIError represents a failed interaction with the Systems Management
// service.
type APIError struct {
	Endpoint   string // Endpoint path that was called
	StatusCode int    // HTTP status code, 0 when the request never completed
	Message    string // Error message
	Cause      error  // Underlying error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("systems management %s: %s (status %d)", e.Endpoint, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("systems management %s: %s", e.Endpoint, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// NewAPIError creates a new APIError.
func NewAPIError(endpoint string, statusCode int, message string, cause error) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
