// Package flow provides the execution loop agents run a task through.
//
// A flow turns one rendered task instruction into final text: it builds a
// model request through pluggable request processors, executes requested
// tool calls, folds the tool results back into the conversation and repeats
// until the model answers without tool calls or the task's turn budget is
// spent.
package flow

import (
	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/model"
	"github.com/hupe1980/finmesh/tool"
)

// Flow defines the interface for agent execution flows.
type Flow interface {
	// Run executes instruction within the task scope of runCtx and returns
	// the final text produced by the model.
	Run(runCtx *core.RunContext, instruction string) (string, error)
}

// FlowAgent defines the interface that agents must implement to work with flows.
//
// This interface provides flows with access to agent capabilities without
// exposing the full agent implementation details.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions returns the system prompt for the current task.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the tools the agent may call, in declaration order.
	GetTools() []tool.Tool

	// ExecuteTool runs a named tool and returns its JSON encoded result.
	// Failures are encoded in the result; ExecuteTool never fails.
	ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) string
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the model request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse inspects or rewrites the final model response of a turn.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
