// Package request builds dispatchable execution requests from actions.
//
// Build resolves an action's parameter tokens and reshapes its arguments into
// the positional/keyword call form the remote engines expect. The keyword
// marker convention (an object whose __kwarg__ key is true) is decided once
// here; downstream code only ever sees the FunctionCall sum of positional
// arguments plus an optional keyword map.
package request

import (
	"fmt"

	"github.com/google/uuid"

	"testops/testplan-engine/internal/property"
	"testops/testplan-engine/internal/resolver"
	"testops/testplan-engine/pkg/types"
)

// KeywordMarkerKey tags an argument object as a keyword argument dictionary.
const KeywordMarkerKey = "__kwarg__"

// FunctionCall is one remote function invocation: positional arguments plus an
// optional keyword dictionary.
type FunctionCall struct {
	Function   string
	Positional []types.Value
	Keywords   map[string]types.Value // nil when the call has no keyword bag
}

// JobExecution is one job submitted to the Systems Management engine as an
// independent unit.
type JobExecution struct {
	ID    string
	Calls []FunctionCall
}

// NotebookExecution is one notebook run. The implicit testPlanId/systemId
// parameters are appended by the notebook engine client, never here.
type NotebookExecution struct {
	ID         string
	NotebookID string
	Arguments  []types.Value
}

// ExecutionRequest is a fully resolved action, ready for dispatch.
type ExecutionRequest struct {
	Type     types.ActionType
	SystemID string

	// Jobs, in declaration order, for JOB actions.
	Jobs []JobExecution

	// Notebook for NOTEBOOK actions.
	Notebook *NotebookExecution
}

// Build resolves every argument of the action against the store and assembles
// the execution request. All resolution and shape errors surface here, before
// anything is dispatched.
func Build(action *types.ExecutionAction, systemID string, store property.Store) (*ExecutionRequest, error) {
	req := &ExecutionRequest{
		Type:     action.Type,
		SystemID: systemID,
	}

	switch action.Type {
	case types.ActionTypeManual:
		return req, nil

	case types.ActionTypeNotebook:
		args, err := resolver.ResolveAll(action.Arguments, store)
		if err != nil {
			return nil, err
		}
		for i, arg := range args {
			if isKeywordMarker(arg) {
				return nil, NewMisplacedMarkerError(action.NotebookID,
					keywordMarkerMessage("notebook arguments do not support keyword markers", i))
			}
		}
		req.Notebook = &NotebookExecution{
			ID:         uuid.NewString(),
			NotebookID: action.NotebookID,
			Arguments:  args,
		}
		return req, nil

	case types.ActionTypeJob:
		req.Jobs = make([]JobExecution, 0, len(action.Jobs))
		for _, job := range action.Jobs {
			exec, err := buildJob(job, store)
			if err != nil {
				return nil, err
			}
			req.Jobs = append(req.Jobs, *exec)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("unknown action type %q", action.Type)
	}
}

// buildJob resolves one job's per-function argument arrays and extracts
// keyword bags.
func buildJob(job types.Job, store property.Store) (*JobExecution, error) {
	if len(job.Functions) != len(job.Arguments) {
		return nil, NewLengthMismatchError(len(job.Functions), len(job.Arguments))
	}

	exec := &JobExecution{
		ID:    uuid.NewString(),
		Calls: make([]FunctionCall, 0, len(job.Functions)),
	}

	for i, fn := range job.Functions {
		args, err := resolver.ResolveAll(job.Arguments[i], store)
		if err != nil {
			return nil, err
		}

		call := FunctionCall{Function: fn, Positional: args}
		for j, arg := range args {
			if !isKeywordMarker(arg) {
				continue
			}
			// A marker is only honored as the dedicated last element.
			if j != len(args)-1 {
				return nil, NewMisplacedMarkerError(fn,
					keywordMarkerMessage("keyword marker must be the last element of the argument array", j))
			}
			call.Positional = args[:j]
			call.Keywords = stripMarker(arg)
		}
		exec.Calls = append(exec.Calls, call)
	}
	return exec, nil
}

// isKeywordMarker reports whether a resolved value is a keyword argument
// marker object: an object whose __kwarg__ field is boolean true.
func isKeywordMarker(v types.Value) bool {
	if v.Kind() != types.KindObject {
		return false
	}
	marker, ok := v.Field(KeywordMarkerKey)
	return ok && marker.Kind() == types.KindBool && marker.Boolean()
}

// stripMarker copies the marker object's fields minus the marker key itself.
func stripMarker(v types.Value) map[string]types.Value {
	fields := v.Fields()
	out := make(map[string]types.Value, len(fields)-1)
	for k, f := range fields {
		if k == KeywordMarkerKey {
			continue
		}
		out[k] = f
	}
	return out
}

func keywordMarkerMessage(message string, index int) string {
	return fmt.Sprintf("%s (found at index %d)", message, index)
}
