package testutil

import (
	"context"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/logging"
)

// RunBuilder provides a fluent helper for constructing run scopes in tests.
// Example:
//
//	rc := NewRunBuilder().Binding("query", "nifty?").Task("research", "Researcher").Build()
//
// Defaults: background context, run id "run-1", no-op logger, no task scope.
type RunBuilder struct {
	ctx      context.Context
	runID    string
	bindings map[string]any
	logger   logging.Logger
	task     string
	agent    string
	maxTurns int
}

// NewRunBuilder creates a builder with defaults applied.
func NewRunBuilder() *RunBuilder {
	return &RunBuilder{
		ctx:      context.Background(),
		runID:    "run-1",
		bindings: map[string]any{},
		logger:   logging.NoOpLogger{},
	}
}

// Context sets the cancellation context (chainable).
func (b *RunBuilder) Context(ctx context.Context) *RunBuilder { b.ctx = ctx; return b }

// RunID overrides the run id (chainable).
func (b *RunBuilder) RunID(id string) *RunBuilder { b.runID = id; return b }

// Binding adds one input binding (chainable).
func (b *RunBuilder) Binding(key string, value any) *RunBuilder {
	b.bindings[key] = value
	return b
}

// Logger sets the logger (chainable).
func (b *RunBuilder) Logger(l logging.Logger) *RunBuilder { b.logger = l; return b }

// Task scopes the built context to a task executed by agent (chainable).
func (b *RunBuilder) Task(name, agent string) *RunBuilder {
	b.task = name
	b.agent = agent
	return b
}

// MaxTurns sets the task turn budget; zero is unlimited (chainable).
func (b *RunBuilder) MaxTurns(n int) *RunBuilder { b.maxTurns = n; return b }

// Build constructs the RunContext.
func (b *RunBuilder) Build() *core.RunContext {
	rc := core.NewRunContext(b.ctx, b.runID, b.bindings, b.logger)
	if b.task == "" && b.maxTurns == 0 {
		return rc
	}
	return rc.ForTask(b.task, core.AgentInfo{Name: b.agent, Type: "llm"}, b.maxTurns)
}

// ToolContext builds a ToolContext for a function call with id fcID.
func (b *RunBuilder) ToolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(b.Build(), fcID)
}
