package flow

import (
	"fmt"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/model"
)

// InstructionsProcessor handles system prompt processing.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the agent's system prompt on the request.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor assembles the conversation of the current task from the
// run trace.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets the request contents: the system prompt followed by
// every recorded content of the current task in order. Other tasks of the run
// are not visible; their outputs reach later tasks through the rendered
// instruction.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, _ FlowAgent) error {
	contents := make([]core.Content, 0, 8)

	if req.Instructions != "" {
		contents = append(contents, core.NewTextContent(core.RoleSystem, req.Instructions))
	}

	for _, ev := range runCtx.Events() {
		if ev.Task != runCtx.TaskName || ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}
		contents = append(contents, *ev.Content)
	}

	req.Contents = contents

	return nil
}

// ToolsProcessor declares the agent's tools on the request.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest adds one function definition per agent tool.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	tools := agent.GetTools()
	if len(tools) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	req.Tools = defs

	return nil
}
