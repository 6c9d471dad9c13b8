package resolver

import "fmt"

// ErrorCode classifies a resolution failure.
type ErrorCode string

const (
	// CodeUnknownProperty means a token referenced a property name the
	// store does not know.
	CodeUnknownProperty ErrorCode = "UNKNOWN_PROPERTY"
	// CodeUnterminatedToken means a token delimiter was left unmatched.
	CodeUnterminatedToken ErrorCode = "UNTERMINATED_TOKEN"
)

// ResolutionError reports a failed parameter resolution. Resolution errors are
// configuration errors: they are raised before any dispatch happens.
type ResolutionError struct {
	Code      ErrorCode
	Reference string // the token name or offending string
	Message   string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("[%s] %s: %q", e.Code, e.Message, e.Reference)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewUnknownPropertyError creates an error for a token naming an unknown
// property.
func NewUnknownPropertyError(name string) *ResolutionError {
	return &ResolutionError{
		Code:      CodeUnknownProperty,
		Reference: name,
		Message:   "unknown property referenced by parameter token",
	}
}

// NewUnterminatedTokenError creates an error for an unmatched token delimiter.
func NewUnterminatedTokenError(s, message string) *ResolutionError {
	return &ResolutionError{
		Code:      CodeUnterminatedToken,
		Reference: s,
		Message:   message,
	}
}

// IsUnknownPropertyError checks if the error is an unknown property error.
func IsUnknownPropertyError(err error) bool {
	if resErr, ok := err.(*ResolutionError); ok {
		return resErr.Code == CodeUnknownProperty
	}
	return false
}

// IsUnterminatedTokenError checks if the error is an unterminated token error.
func IsUnterminatedTokenError(err error) bool {
	if resErr, ok := err.(*ResolutionError); ok {
		return resErr.Code == CodeUnterminatedToken
	}
	return false
}
