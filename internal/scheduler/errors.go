package scheduler

import "fmt"

// FailureCode classifies a runtime action failure.
type FailureCode string

const (
	// CodeJobFailed means a job in the sequence failed; later jobs were
	// not dispatched.
	CodeJobFailed FailureCode = "JOB_FAILED"
	// CodeNotebookFailed means the notebook run failed.
	CodeNotebookFailed FailureCode = "NOTEBOOK_FAILED"
	// CodeCancelled means the action was cancelled while in flight.
	CodeCancelled FailureCode = "CANCELLED"
)

// ActionFailure reports a runtime dispatch failure. Unlike resolution and
// argument-shape errors it happens after dispatch began; it is surfaced as the
// transition's outcome and never retried here.
type ActionFailure struct {
	Code    FailureCode
	JobID   string // failed or cancelled job, when applicable
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ActionFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ActionFailure) Unwrap() error {
	return e.Cause
}

// NewJobFailure creates a failure for a job that the engine reported failed.
func NewJobFailure(jobID string, cause error) *ActionFailure {
	return &ActionFailure{
		Code:    CodeJobFailed,
		JobID:   jobID,
		Message: fmt.Sprintf("job %s failed, remaining jobs halted", jobID),
		Cause:   cause,
	}
}

// NewNotebookFailure creates a failure for a notebook run.
func NewNotebookFailure(notebookID string, cause error) *ActionFailure {
	return &ActionFailure{
		Code:    CodeNotebookFailed,
		Message: fmt.Sprintf("notebook %s failed", notebookID),
		Cause:   cause,
	}
}

// NewCancelledFailure creates a failure for a cancelled action.
func NewCancelledFailure(jobID string, cause error) *ActionFailure {
	return &ActionFailure{
		Code:    CodeCancelled,
		JobID:   jobID,
		Message: "action cancelled",
		Cause:   cause,
	}
}

// IsJobFailure checks if the error is a job failure.
func IsJobFailure(err error) bool {
	if f, ok := err.(*ActionFailure); ok {
		return f.Code == CodeJobFailed
	}
	return false
}

// IsNotebookFailure checks if the error is a notebook failure.
func IsNotebookFailure(err error) bool {
	if f, ok := err.(*ActionFailure); ok {
		return f.Code == CodeNotebookFailed
	}
	return false
}

// IsCancelled checks if the error is a cancellation.
func IsCancelled(err error) bool {
	if f, ok := err.(*ActionFailure); ok {
		return f.Code == CodeCancelled
	}
	return false
}
