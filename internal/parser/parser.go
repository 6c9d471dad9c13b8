// Package parser reads test-plan template documents and instantiates test
// plans from them. Templates are YAML (or JSON, which YAML subsumes) with an
// executionActions collection keyed by transition name.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"testops/testplan-engine/internal/lifecycle"
	"testops/testplan-engine/pkg/types"
)

// Template is a parsed test-plan template. Instantiating it copies the
// execution actions into a new TestPlanInstance; the template itself is never
// mutated afterwards.
type Template struct {
	Name        string
	Description string
	SystemID    string

	PartNumber   string
	TestProgram  string
	SerialNumber string
	Operator     string
	DUTID        string
	Workspace    string

	Properties       map[string]types.Value
	ExecutionActions map[string]*types.ExecutionAction
}

// rawTemplate mirrors the document shape before argument values are converted
// into typed Values.
type rawTemplate struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	SystemID    string `yaml:"systemId,omitempty"`

	PartNumber   string `yaml:"partNumber,omitempty"`
	TestProgram  string `yaml:"testProgram,omitempty"`
	SerialNumber string `yaml:"serialNumber,omitempty"`
	Operator     string `yaml:"operator,omitempty"`
	DUTID        string `yaml:"dutId,omitempty"`
	Workspace    string `yaml:"workspace,omitempty"`

	Properties       map[string]any        `yaml:"properties,omitempty"`
	ExecutionActions map[string]*rawAction `yaml:"executionActions,omitempty"`
}

type rawAction struct {
	Type       string   `yaml:"type"`
	SystemID   string   `yaml:"systemId,omitempty"`
	Jobs       []rawJob `yaml:"jobs,omitempty"`
	NotebookID string   `yaml:"notebookId,omitempty"`
	Arguments  []any    `yaml:"arguments,omitempty"`
}

type rawJob struct {
	Functions []string `yaml:"functions"`
	Arguments [][]any  `yaml:"arguments"`
}

// Parse parses a template document.
func Parse(data []byte) (*Template, error) {
	var raw rawTemplate

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode: error on unknown fields

	if err := decoder.Decode(&raw); err != nil {
		return nil, wrapYAMLError(err)
	}

	tmpl, err := convert(&raw)
	if err != nil {
		return nil, err
	}
	if err := validate(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// ParseFile parses a template document from a file.
func ParseFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewParseError(0, 0, fmt.Sprintf("failed to read file: %s", path), err)
	}
	return Parse(data)
}

// convert turns the raw decoded document into a typed Template.
func convert(raw *rawTemplate) (*Template, error) {
	tmpl := &Template{
		Name:         raw.Name,
		Description:  raw.Description,
		SystemID:     raw.SystemID,
		PartNumber:   raw.PartNumber,
		TestProgram:  raw.TestProgram,
		SerialNumber: raw.SerialNumber,
		Operator:     raw.Operator,
		DUTID:        raw.DUTID,
		Workspace:    raw.Workspace,
	}

	if raw.Properties != nil {
		tmpl.Properties = make(map[string]types.Value, len(raw.Properties))
		for k, v := range raw.Properties {
			value, err := types.FromAny(v)
			if err != nil {
				return nil, NewValidationError("properties."+k, err.Error())
			}
			tmpl.Properties[k] = value
		}
	}

	if raw.ExecutionActions != nil {
		tmpl.ExecutionActions = make(map[string]*types.ExecutionAction, len(raw.ExecutionActions))
		for name, ra := range raw.ExecutionActions {
			action, err := convertAction(name, ra)
			if err != nil {
				return nil, err
			}
			tmpl.ExecutionActions[name] = action
		}
	}
	return tmpl, nil
}

func convertAction(name string, raw *rawAction) (*types.ExecutionAction, error) {
	field := "executionActions." + name
	if raw == nil {
		return nil, NewValidationError(field, "action must not be empty")
	}

	action := &types.ExecutionAction{
		Type:       types.ActionType(raw.Type),
		SystemID:   raw.SystemID,
		NotebookID: raw.NotebookID,
	}

	for i, rj := range raw.Jobs {
		job := types.Job{Functions: rj.Functions}
		for _, rawArgs := range rj.Arguments {
			args, err := types.FromAnySlice(rawArgs)
			if err != nil {
				return nil, NewValidationError(fmt.Sprintf("%s.jobs[%d].arguments", field, i), err.Error())
			}
			job.Arguments = append(job.Arguments, args)
		}
		action.Jobs = append(action.Jobs, job)
	}

	if raw.Arguments != nil {
		args, err := types.FromAnySlice(raw.Arguments)
		if err != nil {
			return nil, NewValidationError(field+".arguments", err.Error())
		}
		action.Arguments = args
	}
	return action, nil
}

// validate checks the template's structure. Argument-shape problems that
// depend on resolution (keyword marker placement) stay with the builder; the
// parser catches what is visibly wrong in the document.
func validate(tmpl *Template) error {
	if tmpl.Name == "" {
		return NewValidationError("name", "template name is required")
	}

	for name, action := range tmpl.ExecutionActions {
		field := "executionActions." + name

		if !lifecycle.Transition(name).Valid() {
			return NewValidationError(field, fmt.Sprintf("unknown lifecycle transition %q", name))
		}
		if !action.Type.Valid() {
			return NewValidationError(field+".type", fmt.Sprintf("unknown action type %q", action.Type))
		}

		switch action.Type {
		case types.ActionTypeJob:
			if len(action.Jobs) == 0 {
				return NewValidationError(field+".jobs", "JOB action requires at least one job")
			}
			for i, job := range action.Jobs {
				jobField := fmt.Sprintf("%s.jobs[%d]", field, i)
				if len(job.Functions) == 0 {
					return NewValidationError(jobField+".functions", "job requires at least one function")
				}
				if len(job.Functions) != len(job.Arguments) {
					return NewValidationError(jobField,
						fmt.Sprintf("functions and arguments must align: %d functions, %d argument lists",
							len(job.Functions), len(job.Arguments)))
				}
			}
			if action.NotebookID != "" {
				return NewValidationError(field+".notebookId", "JOB action must not declare a notebook")
			}
		case types.ActionTypeNotebook:
			if action.NotebookID == "" {
				return NewValidationError(field+".notebookId", "NOTEBOOK action requires a notebookId")
			}
			if len(action.Jobs) > 0 {
				return NewValidationError(field+".jobs", "NOTEBOOK action must not declare jobs")
			}
		case types.ActionTypeManual:
			if len(action.Jobs) > 0 || action.NotebookID != "" || len(action.Arguments) > 0 {
				return NewValidationError(field, "MANUAL action must not declare jobs, notebook or arguments")
			}
		}
	}
	return nil
}

// Instantiate creates a TestPlanInstance from the template. The template's
// actions are deep-copied so that later template edits never reach a live
// instance. Empty id generates one; customProps override template property
// defaults key by key.
func Instantiate(tmpl *Template, id, systemID string, customProps map[string]types.Value) *types.TestPlanInstance {
	if id == "" {
		id = uuid.NewString()
	}
	if systemID == "" {
		systemID = tmpl.SystemID
	}

	plan := &types.TestPlanInstance{
		ID:           id,
		Name:         tmpl.Name,
		SystemID:     systemID,
		PartNumber:   tmpl.PartNumber,
		TestProgram:  tmpl.TestProgram,
		SerialNumber: tmpl.SerialNumber,
		Operator:     tmpl.Operator,
		DUTID:        tmpl.DUTID,
		Workspace:    tmpl.Workspace,
		Properties:   make(map[string]types.Value, len(tmpl.Properties)+len(customProps)),
	}

	for k, v := range tmpl.Properties {
		plan.Properties[k] = v
	}
	for k, v := range customProps {
		plan.Properties[k] = v
	}

	if tmpl.ExecutionActions != nil {
		plan.ExecutionActions = make(map[string]*types.ExecutionAction, len(tmpl.ExecutionActions))
		for name, action := range tmpl.ExecutionActions {
			plan.ExecutionActions[name] = copyAction(action)
		}
	}
	return plan
}

func copyAction(action *types.ExecutionAction) *types.ExecutionAction {
	out := &types.ExecutionAction{
		Type:       action.Type,
		SystemID:   action.SystemID,
		NotebookID: action.NotebookID,
	}
	for _, job := range action.Jobs {
		cj := types.Job{
			Functions: append([]string(nil), job.Functions...),
			Arguments: make([][]types.Value, len(job.Arguments)),
		}
		for i, args := range job.Arguments {
			cj.Arguments[i] = append([]types.Value(nil), args...)
		}
		out.Jobs = append(out.Jobs, cj)
	}
	out.Arguments = append([]types.Value(nil), action.Arguments...)
	return out
}

// wrapYAMLError converts a yaml error to a ParseError with line information.
func wrapYAMLError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	line, column := extractLineColumn(errStr)
	message := cleanYAMLErrorMessage(errStr)

	return NewParseError(line, column, message, err)
}

// extractLineColumn attempts to extract line and column from a yaml error
// message.
func extractLineColumn(errStr string) (int, int) {
	var line, column int

	if idx := strings.Index(errStr, "line "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "line %d", &line)
	}
	if idx := strings.Index(errStr, "column "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "column %d", &column)
	}
	return line, column
}

// cleanYAMLErrorMessage creates a cleaner error message.
func cleanYAMLErrorMessage(errStr string) string {
	errStr = strings.TrimPrefix(errStr, "yaml: ")
	if len(errStr) > 0 {
		errStr = strings.ToUpper(errStr[:1]) + errStr[1:]
	}
	return errStr
}
