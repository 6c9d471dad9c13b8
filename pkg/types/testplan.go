package types

// ActionType identifies the behavior bound to a lifecycle transition.
type ActionType string

const (
	// ActionTypeJob runs one or more jobs on the Systems Management engine.
	ActionTypeJob ActionType = "JOB"
	// ActionTypeNotebook runs a notebook on the notebook execution engine.
	ActionTypeNotebook ActionType = "NOTEBOOK"
	// ActionTypeManual completes immediately with no remote dispatch.
	ActionTypeManual ActionType = "MANUAL"
)

// Valid reports whether the action type is one of the known kinds.
func (t ActionType) Valid() bool {
	switch t {
	case ActionTypeJob, ActionTypeNotebook, ActionTypeManual:
		return true
	}
	return false
}

// Job is an ordered batch of remote function calls executed as one unit by the
// Systems Management engine. Functions and Arguments are index-aligned:
// Functions[i] is invoked with Arguments[i].
type Job struct {
	Functions []string  `yaml:"functions" json:"functions"`
	Arguments [][]Value `yaml:"-" json:"-"`
}

// ExecutionAction describes what happens when a lifecycle transition fires.
// Actions are copied from a template into an instance at creation time and are
// re-resolved on every firing, never cached.
type ExecutionAction struct {
	Type ActionType `yaml:"type" json:"type"`

	// SystemID overrides the instance's target system when set.
	SystemID string `yaml:"systemId,omitempty" json:"systemId,omitempty"`

	// Jobs is the ordered job list for JOB actions. Order is the dispatch
	// order: a function that restarts the system must end its job, with
	// later functions in a separate job.
	Jobs []Job `yaml:"jobs,omitempty" json:"jobs,omitempty"`

	// NotebookID and Arguments describe a NOTEBOOK action.
	NotebookID string  `yaml:"notebookId,omitempty" json:"notebookId,omitempty"`
	Arguments  []Value `yaml:"-" json:"-"`
}

// TestPlanInstance is a test plan created from a template. The execution core
// treats it as read-only: its properties feed the resolver and its actions are
// dispatched as transitions fire.
type TestPlanInstance struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	SystemID string `yaml:"systemId" json:"systemId"`

	PartNumber   string `yaml:"partNumber,omitempty" json:"partNumber,omitempty"`
	TestProgram  string `yaml:"testProgram,omitempty" json:"testProgram,omitempty"`
	SerialNumber string `yaml:"serialNumber,omitempty" json:"serialNumber,omitempty"`
	Operator     string `yaml:"operator,omitempty" json:"operator,omitempty"`
	DUTID        string `yaml:"dutId,omitempty" json:"dutId,omitempty"`
	Workspace    string `yaml:"workspace,omitempty" json:"workspace,omitempty"`

	// Properties holds the custom properties, addressable from parameter
	// tokens as properties.<key>.
	Properties map[string]Value `yaml:"-" json:"-"`

	// ExecutionActions maps transition names (start, pause, resume, abort,
	// end) to the action fired on that transition.
	ExecutionActions map[string]*ExecutionAction `yaml:"-" json:"-"`
}

// TargetSystem returns the system a given action runs against: the action's
// override when present, the instance's system otherwise.
func (p *TestPlanInstance) TargetSystem(action *ExecutionAction) string {
	if action != nil && action.SystemID != "" {
		return action.SystemID
	}
	return p.SystemID
}
