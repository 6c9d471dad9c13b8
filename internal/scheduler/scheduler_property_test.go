// Property-based tests for job dispatch ordering.
//
// For any JOB action, jobs are dispatched in declaration order, and a failure
// at index k dispatches exactly the jobs up to and including k.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"testops/testplan-engine/internal/request"
	"testops/testplan-engine/pkg/types"
)

func orderedRequest(jobCount int) *request.ExecutionRequest {
	req := &request.ExecutionRequest{Type: types.ActionTypeJob, SystemID: "sys-1"}
	for i := 0; i < jobCount; i++ {
		req.Jobs = append(req.Jobs, request.JobExecution{ID: fmt.Sprintf("job-%03d", i)})
	}
	return req
}

func TestDispatchOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("jobs dispatch in declaration order", prop.ForAll(
		func(jobCount int) bool {
			engine := newFakeJobEngine()
			s := New(engine, nil, nil)

			req := orderedRequest(jobCount)
			_, err := s.Run(context.Background(), "tp-1", req)
			if err != nil {
				return false
			}

			if len(engine.submitted) != jobCount {
				return false
			}
			for i, id := range engine.submitted {
				if id != req.Jobs[i].ID {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 25),
	))

	properties.Property("failure at index k dispatches exactly k+1 jobs", prop.ForAll(
		func(jobCount, failIdx int) bool {
			if jobCount < 1 {
				return true
			}
			failIdx = failIdx % jobCount

			engine := newFakeJobEngine()
			engine.failAt[failIdx] = errors.New("simulated failure")
			s := New(engine, nil, nil)

			outcome, err := s.Run(context.Background(), "tp-1", orderedRequest(jobCount))
			if !IsJobFailure(err) {
				return false
			}
			if len(engine.submitted) != failIdx+1 {
				return false
			}

			// Every job after the failed one is halted, never dispatched.
			for i, jr := range outcome.Jobs {
				switch {
				case i < failIdx:
					if jr.Status != JobStatusSucceeded {
						return false
					}
				case i == failIdx:
					if jr.Status != JobStatusFailed {
						return false
					}
				default:
					if jr.Status != JobStatusHalted {
						return false
					}
				}
			}
			return len(outcome.Jobs) == jobCount
		},
		gen.IntRange(1, 25),
		gen.IntRange(0, 24),
	))

	properties.TestingRun(t)
}
