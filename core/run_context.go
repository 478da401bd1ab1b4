package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/finmesh/logging"
)

// AgentInfo identifies the agent executing the current task.
type AgentInfo struct {
	Name string
	Type string
}

// trace is the append-only event log shared by all task scopes of one run.
type trace struct {
	mu     sync.Mutex
	events []Event
}

// RunContext is the per-invocation execution scope handed to agents. It
// aggregates:
//   - the ambient cancellation Context
//   - the run id and, once scoped to a task, the task name and agent
//   - the read-only input bindings of the run
//   - the turn budget of the current task
//   - a shared trace of recorded events
//
// Nothing in a RunContext is shared between runs.
type RunContext struct {
	Context  context.Context
	RunID    string
	TaskName string
	Agent    AgentInfo
	Budget   *TurnBudget

	bindings map[string]any
	trace    *trace

	*loggerAdapter
}

// NewRunContext constructs a RunContext for a new run. The bindings map is
// copied.
func NewRunContext(ctx context.Context, runID string, bindings map[string]any, logger logging.Logger) *RunContext {
	b := make(map[string]any, len(bindings))
	maps.Copy(b, bindings)

	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		Budget:        NewTurnBudget(0),
		bindings:      b,
		trace:         &trace{},
		loggerAdapter: newLoggerAdapter(logger, "run_id", runID),
	}
}

// ForTask derives a scope for one task with a fresh turn budget. The trace
// and bindings stay shared with the parent.
func (rc *RunContext) ForTask(taskName string, agent AgentInfo, maxTurns int) *RunContext {
	return &RunContext{
		Context:       rc.Context,
		RunID:         rc.RunID,
		TaskName:      taskName,
		Agent:         agent,
		Budget:        NewTurnBudget(maxTurns),
		bindings:      rc.bindings,
		trace:         rc.trace,
		loggerAdapter: rc.loggerAdapter.with("task", taskName, "agent", agent.Name),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Binding returns the input binding stored under key.
func (rc *RunContext) Binding(key string) (any, bool) {
	v, ok := rc.bindings[key]
	return v, ok
}

// Bindings returns a copy of all input bindings.
func (rc *RunContext) Bindings() map[string]any {
	return maps.Clone(rc.bindings)
}

// Record appends ev to the run trace, stamping run id and task.
func (rc *RunContext) Record(ev Event) {
	ev.RunID = rc.RunID
	if ev.Task == "" {
		ev.Task = rc.TaskName
	}

	rc.trace.mu.Lock()
	defer rc.trace.mu.Unlock()

	rc.trace.events = append(rc.trace.events, ev)
}

// Events returns a snapshot of the run trace.
func (rc *RunContext) Events() []Event {
	rc.trace.mu.Lock()
	defer rc.trace.mu.Unlock()

	out := make([]Event, len(rc.trace.events))
	copy(out, rc.trace.events)

	return out
}
