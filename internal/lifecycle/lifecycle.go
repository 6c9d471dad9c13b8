// Package lifecycle drives which execution action fires on which test-plan
// transition.
//
// A Controller serializes the five lifecycle transitions of one test-plan
// instance. Each firing re-resolves the bound action against the instance's
// current properties and dispatches it through the scheduler; only one
// transition is in flight at a time, and an abort request cancels whatever is
// in flight before running its own action.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"testops/testplan-engine/internal/property"
	"testops/testplan-engine/internal/request"
	"testops/testplan-engine/internal/scheduler"
	"testops/testplan-engine/pkg/logger"
	"testops/testplan-engine/pkg/types"
)

// Transition is one of the five test-plan lifecycle transitions.
type Transition string

const (
	TransitionStart  Transition = "start"
	TransitionPause  Transition = "pause"
	TransitionResume Transition = "resume"
	TransitionAbort  Transition = "abort"
	TransitionEnd    Transition = "end"
)

// Transitions lists all transitions in a stable order.
var Transitions = []Transition{
	TransitionStart, TransitionPause, TransitionResume, TransitionAbort, TransitionEnd,
}

// Valid reports whether the transition name is known.
func (t Transition) Valid() bool {
	switch t {
	case TransitionStart, TransitionPause, TransitionResume, TransitionAbort, TransitionEnd:
		return true
	}
	return false
}

// Phase is the test plan's position in its lifecycle, derived from the last
// transition that fired.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
	PhaseAborted Phase = "aborted"
	PhaseEnded   Phase = "ended"
)

// allowed maps each phase to the transitions that may fire from it.
var allowed = map[Phase]map[Transition]bool{
	PhasePending: {TransitionStart: true, TransitionAbort: true},
	PhaseRunning: {TransitionPause: true, TransitionEnd: true, TransitionAbort: true},
	PhasePaused:  {TransitionResume: true, TransitionEnd: true, TransitionAbort: true},
	PhaseAborted: {},
	PhaseEnded:   {},
}

// next maps a fired transition to the resulting phase.
var next = map[Transition]Phase{
	TransitionStart:  PhaseRunning,
	TransitionPause:  PhasePaused,
	TransitionResume: PhaseRunning,
	TransitionAbort:  PhaseAborted,
	TransitionEnd:    PhaseEnded,
}

// Config is the per-instance transition/action binding, normalized once at
// construction: START and END always carry an action, defaulting to MANUAL
// when the template declares none; PAUSE/RESUME/ABORT may have no action, in
// which case the transition proceeds with no dispatch.
type Config struct {
	actions map[Transition]*types.ExecutionAction
}

// NewConfig builds a Config from a transition-name keyed action set.
func NewConfig(actions map[string]*types.ExecutionAction) (*Config, error) {
	cfg := &Config{actions: make(map[Transition]*types.ExecutionAction, len(actions))}

	for name, action := range actions {
		t := Transition(name)
		if !t.Valid() {
			return nil, NewUnknownTransitionError(name)
		}
		if action != nil && !action.Type.Valid() {
			return nil, NewUnknownTransitionError(name)
		}
		cfg.actions[t] = action
	}

	// Mandatory transitions behave as MANUAL when undeclared.
	for _, t := range []Transition{TransitionStart, TransitionEnd} {
		if cfg.actions[t] == nil {
			cfg.actions[t] = &types.ExecutionAction{Type: types.ActionTypeManual}
		}
	}
	return cfg, nil
}

// Action returns the action bound to a transition, nil when none fires.
func (c *Config) Action(t Transition) *types.ExecutionAction {
	return c.actions[t]
}

// Record is one entry in a controller's transition history.
type Record struct {
	Transition Transition            `json:"transition"`
	Phase      Phase                 `json:"phase"`
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
	Outcome    *scheduler.Outcome    `json:"-"`
	Err        error                 `json:"-"`
	JobResults []scheduler.JobResult `json:"jobs,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Controller owns the lifecycle of one test-plan instance.
type Controller struct {
	plan   *types.TestPlanInstance
	config *Config
	store  property.Store
	sched  *scheduler.Scheduler

	mu       sync.Mutex
	phase    Phase
	inFlight Transition // empty when idle
	cancel   context.CancelFunc
	done     chan struct{}
	history  []Record
}

// NewController creates a Controller for the instance, normalizing its action
// set. The scheduler carries the engine bindings.
func NewController(plan *types.TestPlanInstance, sched *scheduler.Scheduler) (*Controller, error) {
	cfg, err := NewConfig(plan.ExecutionActions)
	if err != nil {
		return nil, err
	}
	return &Controller{
		plan:   plan,
		config: cfg,
		store:  property.NewInstanceStore(plan),
		sched:  sched,
		phase:  PhasePending,
	}, nil
}

// Plan returns the controlled instance.
func (c *Controller) Plan() *types.TestPlanInstance {
	return c.plan
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// InFlight returns the transition currently executing, or "" when idle.
func (c *Controller) InFlight() Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Available lists the transitions that may fire from the current phase, in
// stable order.
func (c *Controller) Available() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transition, 0, len(Transitions))
	for _, t := range Transitions {
		if allowed[c.phase][t] {
			out = append(out, t)
		}
	}
	return out
}

// History returns a copy of the transition history.
func (c *Controller) History() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.history))
	copy(out, c.history)
	return out
}

// Fire fires a lifecycle transition.
//
// The action bound to the transition is re-resolved on every firing, since
// property values may change between transitions. Resolution and
// argument-shape errors reject the firing before any dispatch and leave the
// phase untouched. A runtime ActionFailure is recorded as the transition's
// outcome; the transition itself still completes.
//
// While a transition is in flight every other request is rejected, except
// abort: firing abort cancels the in-flight action, waits for it to
// terminate, then runs abort's own action.
func (c *Controller) Fire(ctx context.Context, t Transition) (*Record, error) {
	if !t.Valid() {
		return nil, NewUnknownTransitionError(string(t))
	}

	c.mu.Lock()
	// Another Fire may win the lock between the in-flight transition
	// finishing and this one re-acquiring it, so abort re-checks after
	// every wait instead of assuming the slot stayed free.
	for c.inFlight != "" {
		if t != TransitionAbort {
			blocking := c.inFlight
			c.mu.Unlock()
			return nil, NewInFlightError(t, blocking)
		}
		blocking := c.inFlight
		cancel, done := c.cancel, c.done
		c.mu.Unlock()
		logger.Info("abort requested for plan %s: cancelling in-flight %s", c.plan.ID, blocking)
		cancel()
		<-done
		c.mu.Lock()
	}

	if !allowed[c.phase][t] {
		phase := c.phase
		c.mu.Unlock()
		return nil, NewIllegalTransitionError(t, phase)
	}

	action := c.config.Action(t)
	if action == nil {
		// Optional transition with no bound action: proceeds immediately.
		rec := c.completeLocked(t, time.Now(), nil, nil)
		c.mu.Unlock()
		return rec, nil
	}

	started := time.Now()

	// Resolution runs on every firing, never cached.
	req, err := request.Build(action, c.plan.TargetSystem(action), c.store)
	if err != nil {
		c.mu.Unlock()
		logger.Error("plan %s transition %s rejected: %v", c.plan.ID, t, err)
		return nil, err
	}

	if req.Type == types.ActionTypeManual {
		rec := c.completeLocked(t, started, nil, nil)
		c.mu.Unlock()
		return rec, nil
	}

	// Dispatch outside the lock, marked in flight.
	dispatchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.inFlight = t
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	outcome, runErr := c.sched.Run(dispatchCtx, c.plan.ID, req)
	cancel()

	c.mu.Lock()
	c.inFlight = ""
	c.cancel = nil
	c.done = nil
	rec := c.completeLocked(t, started, outcome, runErr)
	c.mu.Unlock()
	close(done)

	if runErr != nil {
		return rec, runErr
	}
	return rec, nil
}

// completeLocked advances the phase and appends the history record. Callers
// hold c.mu.
func (c *Controller) completeLocked(t Transition, started time.Time, outcome *scheduler.Outcome, err error) *Record {
	c.phase = next[t]
	rec := Record{
		Transition: t,
		Phase:      c.phase,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    outcome,
		Err:        err,
	}
	if outcome != nil {
		rec.JobResults = outcome.Jobs
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.history = append(c.history, rec)
	logger.Debug("plan %s transition %s completed, phase now %s", c.plan.ID, t, c.phase)
	return &rec
}
