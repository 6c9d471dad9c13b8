// Package scheduler dispatches resolved execution requests to the external
// engines, one job at a time.
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"testops/testplan-engine/internal/metrics"
	"testops/testplan-engine/internal/request"
	"testops/testplan-engine/pkg/logger"
	"testops/testplan-engine/pkg/types"
)

// JobEngine is the external Systems Management execution engine. Submit
// blocks until the job completes or fails on the remote side; ctx cancellation
// interrupts the wait. Cancel signals cancellation of an outstanding job and
// returns once the engine acknowledges.
type JobEngine interface {
	Submit(ctx context.Context, systemID string, job request.JobExecution) error
	Cancel(ctx context.Context, jobID string) error
}

// NotebookEngine is the external notebook execution engine. The client is
// responsible for appending the implicit testPlanId/systemId parameters.
type NotebookEngine interface {
	Run(ctx context.Context, nb request.NotebookExecution, testPlanID, systemID string) error
}

// JobStatus is the outcome of one dispatched job.
type JobStatus string

const (
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusHalted    JobStatus = "halted" // never dispatched: an earlier job failed
)

// JobResult records the outcome of one job in the sequence.
type JobResult struct {
	JobID    string        `json:"jobId"`
	Status   JobStatus     `json:"status"`
	Duration time.Duration `json:"-"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// MarshalJSON reports the duration in milliseconds, the same unit the
// metrics snapshots use.
func (r JobResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		JobID      string    `json:"jobId"`
		Status     JobStatus `json:"status"`
		DurationMS int64     `json:"duration_ms"`
		Error      string    `json:"error,omitempty"`
	}
	return json.Marshal(wire{
		JobID:      r.JobID,
		Status:     r.Status,
		DurationMS: r.Duration.Milliseconds(),
		Error:      r.Error,
	})
}

// Outcome is the result of running one execution request.
type Outcome struct {
	Jobs []JobResult
}

// Scheduler runs the jobs of an execution request strictly sequentially, in
// declaration order. Order is the only sequencing mechanism for dependent
// operations: a function that restarts the target system terminates its job,
// so followup functions live in a later job and are only submitted once the
// restart job has completed.
type Scheduler struct {
	jobs      JobEngine
	notebooks NotebookEngine
	recorder  *metrics.Recorder
}

// New creates a Scheduler dispatching to the given engines.
func New(jobs JobEngine, notebooks NotebookEngine, recorder *metrics.Recorder) *Scheduler {
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	return &Scheduler{jobs: jobs, notebooks: notebooks, recorder: recorder}
}

// Recorder exposes the latency recorder for reporting surfaces.
func (s *Scheduler) Recorder() *metrics.Recorder {
	return s.recorder
}

// Run dispatches the request. For JOB requests each job is submitted as an
// independent unit and the scheduler waits for its completion signal before
// submitting the next; the first failure halts the remainder. Cancellation of
// ctx signals Cancel for the outstanding job and terminates the action.
// MANUAL requests complete immediately with no dispatch.
func (s *Scheduler) Run(ctx context.Context, testPlanID string, req *request.ExecutionRequest) (*Outcome, error) {
	switch req.Type {
	case types.ActionTypeManual:
		return &Outcome{}, nil
	case types.ActionTypeNotebook:
		return s.runNotebook(ctx, testPlanID, req)
	default:
		return s.runJobs(ctx, req)
	}
}

func (s *Scheduler) runJobs(ctx context.Context, req *request.ExecutionRequest) (*Outcome, error) {
	outcome := &Outcome{Jobs: make([]JobResult, 0, len(req.Jobs))}

	for i, job := range req.Jobs {
		start := time.Now()
		logger.Debug("submitting job %s (%d/%d) to system %s", job.ID, i+1, len(req.Jobs), req.SystemID)

		err := s.jobs.Submit(ctx, req.SystemID, job)
		elapsed := time.Since(start)
		s.recorder.Record(string(types.ActionTypeJob), elapsed)

		if err == nil {
			outcome.Jobs = append(outcome.Jobs, JobResult{
				JobID:    job.ID,
				Status:   JobStatusSucceeded,
				Duration: elapsed,
			})
			continue
		}

		if ctx.Err() != nil {
			// The wait was interrupted: tell the engine to cancel the
			// outstanding job, then treat the action as terminated.
			// Acknowledgement happens on a fresh context since ctx is
			// already done.
			failure := NewCancelledFailure(job.ID, ctx.Err())
			cancelCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if cerr := s.jobs.Cancel(cancelCtx, job.ID); cerr != nil {
				logger.Warn("cancel signal for job %s failed: %v", job.ID, cerr)
			}
			outcome.Jobs = append(outcome.Jobs, JobResult{
				JobID:    job.ID,
				Status:   JobStatusCancelled,
				Duration: elapsed,
				Err:      failure,
				Error:    failure.Error(),
			})
			s.haltRemaining(outcome, req.Jobs[i+1:])
			return outcome, failure
		}

		failure := NewJobFailure(job.ID, err)
		logger.Error("job %s failed: %v", job.ID, err)
		outcome.Jobs = append(outcome.Jobs, JobResult{
			JobID:    job.ID,
			Status:   JobStatusFailed,
			Duration: elapsed,
			Err:      failure,
			Error:    failure.Error(),
		})
		s.haltRemaining(outcome, req.Jobs[i+1:])
		return outcome, failure
	}

	return outcome, nil
}

func (s *Scheduler) haltRemaining(outcome *Outcome, remaining []request.JobExecution) {
	for _, job := range remaining {
		outcome.Jobs = append(outcome.Jobs, JobResult{JobID: job.ID, Status: JobStatusHalted})
	}
}

func (s *Scheduler) runNotebook(ctx context.Context, testPlanID string, req *request.ExecutionRequest) (*Outcome, error) {
	start := time.Now()
	nb := *req.Notebook
	logger.Debug("running notebook %s for test plan %s", nb.NotebookID, testPlanID)

	err := s.notebooks.Run(ctx, nb, testPlanID, req.SystemID)
	s.recorder.Record(string(types.ActionTypeNotebook), time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return &Outcome{}, NewCancelledFailure("", ctx.Err())
		}
		return &Outcome{}, NewNotebookFailure(nb.NotebookID, err)
	}
	return &Outcome{}, nil
}
