package lifecycle

import "fmt"

// ErrorCode classifies a rejected transition request.
type ErrorCode string

const (
	// CodeUnknownTransition means the transition name is not one of the
	// five lifecycle transitions, or its action is malformed.
	CodeUnknownTransition ErrorCode = "UNKNOWN_TRANSITION"
	// CodeIllegalTransition means the transition cannot fire from the
	// plan's current phase.
	CodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
	// CodeTransitionInFlight means another transition's action is still
	// executing.
	CodeTransitionInFlight ErrorCode = "TRANSITION_IN_FLIGHT"
)

// TransitionError reports a transition request the controller refused.
type TransitionError struct {
	Code       ErrorCode
	Transition string
	Message    string
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewUnknownTransitionError creates an error for an unrecognized transition.
func NewUnknownTransitionError(name string) *TransitionError {
	return &TransitionError{
		Code:       CodeUnknownTransition,
		Transition: name,
		Message:    fmt.Sprintf("unknown lifecycle transition %q", name),
	}
}

// NewIllegalTransitionError creates an error for a transition fired from the
// wrong phase.
func NewIllegalTransitionError(t Transition, phase Phase) *TransitionError {
	return &TransitionError{
		Code:       CodeIllegalTransition,
		Transition: string(t),
		Message:    fmt.Sprintf("transition %s cannot fire while the plan is %s", t, phase),
	}
}

// NewInFlightError creates an error for a transition requested while another
// is executing.
func NewInFlightError(t, blocking Transition) *TransitionError {
	return &TransitionError{
		Code:       CodeTransitionInFlight,
		Transition: string(t),
		Message:    fmt.Sprintf("transition %s rejected: %s is still in flight", t, blocking),
	}
}

// IsIllegalTransition checks if the error is an illegal transition error.
func IsIllegalTransition(err error) bool {
	if tErr, ok := err.(*TransitionError); ok {
		return tErr.Code == CodeIllegalTransition
	}
	return false
}

// IsInFlight checks if the error is a transition-in-flight error.
func IsInFlight(err error) bool {
	if tErr, ok := err.(*TransitionError); ok {
		return tErr.Code == CodeTransitionInFlight
	}
	return false
}

// IsUnknownTransition checks if the error is an unknown transition error.
func IsUnknownTransition(err error) bool {
	if tErr, ok := err.(*TransitionError); ok {
		return tErr.Code == CodeUnknownTransition
	}
	return false
}
