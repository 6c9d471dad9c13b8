package request

import "fmt"

// ErrorCode classifies a malformed-arguments failure.
type ErrorCode string

const (
	// CodeLengthMismatch means a job's functions and arguments lists do not
	// line up.
	CodeLengthMismatch ErrorCode = "LENGTH_MISMATCH"
	// CodeMisplacedKeywordMarker means a keyword argument marker appeared
	// somewhere other than the dedicated last element of a positional
	// array, or in a context that does not support markers at all.
	CodeMisplacedKeywordMarker ErrorCode = "MISPLACED_KEYWORD_MARKER"
)

// MalformedArgumentsError reports an action whose argument shape is invalid.
// Like resolution errors, these are configuration errors raised before any
// dispatch.
type MalformedArgumentsError struct {
	Code     ErrorCode
	Function string // offending function name, when known
	Message  string
}

// Error implements the error interface.
func (e *MalformedArgumentsError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("[%s] %s (function %s)", e.Code, e.Message, e.Function)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewLengthMismatchError creates an error for misaligned functions/arguments.
func NewLengthMismatchError(functions, arguments int) *MalformedArgumentsError {
	return &MalformedArgumentsError{
		Code:    CodeLengthMismatch,
		Message: fmt.Sprintf("job declares %d functions but %d argument lists", functions, arguments),
	}
}

// NewMisplacedMarkerError creates an error for a keyword marker outside the
// last positional slot.
func NewMisplacedMarkerError(function, message string) *MalformedArgumentsError {
	return &MalformedArgumentsError{
		Code:     CodeMisplacedKeywordMarker,
		Function: function,
		Message:  message,
	}
}

// IsLengthMismatchError checks if the error is a length mismatch error.
func IsLengthMismatchError(err error) bool {
	if malErr, ok := err.(*MalformedArgumentsError); ok {
		return malErr.Code == CodeLengthMismatch
	}
	return false
}

// IsMisplacedMarkerError checks if the error is a misplaced marker error.
func IsMisplacedMarkerError(err error) bool {
	if malErr, ok := err.(*MalformedArgumentsError); ok {
		return malErr.Code == CodeMisplacedKeywordMarker
	}
	return false
}
