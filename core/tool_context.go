package core

import "context"

// ToolContext is the scope a tool executes in: the run it belongs to and the
// function call that triggered it. Tools use it for cancellation, logging and
// read access to the run bindings.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string

	*loggerAdapter
}

// NewToolContext creates a ToolContext for the function call identified by
// functionCallID within runCtx.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		loggerAdapter:  runCtx.loggerAdapter.with("fc_id", functionCallID),
	}
}

// Context returns the cancellation context of the run.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// RunID returns the id of the owning run.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// TaskName returns the task being executed.
func (tc *ToolContext) TaskName() string { return tc.runCtx.TaskName }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent.Name }

// FunctionCallID returns the id of the triggering function call.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Binding returns a run input binding.
func (tc *ToolContext) Binding(key string) (any, bool) { return tc.runCtx.Binding(key) }
