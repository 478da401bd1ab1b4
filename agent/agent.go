package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/flow"
	"github.com/hupe1980/finmesh/internal/util"
	"github.com/hupe1980/finmesh/model"
	"github.com/hupe1980/finmesh/tool"
)

// DefaultMaxIterations bounds the model turns of a single task.
const DefaultMaxIterations = 8

const personaTemplate = `You are {{.role}}.{{if .backstory}} {{.backstory}}{{end}}
{{- if .goal}}

Your personal goal is: {{.goal}}{{end}}`

// Options configures an Agent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	Goal          string
	Backstory     string
	Tools         []tool.Tool
	MaxIterations int
	// Instruction replaces the persona system prompt when set.
	Instruction  Instruction
	ToolObserver tool.Observer
}

// Agent is a (role, goal, backstory, tools, model) persona.
type Agent struct {
	role          string
	goal          string
	backstory     string
	llm           model.Model
	invoker       *tool.Invoker
	maxIterations int
	instruction   Instruction
	flow          flow.Flow
}

// New creates an agent with the given role backed by llm.
//
// Defaults:
//   - the system prompt is rendered from role, backstory and goal
//   - no tools
//   - DefaultMaxIterations model turns per task
func New(role string, llm model.Model, optFns ...func(o *Options)) (*Agent, error) {
	if strings.TrimSpace(role) == "" {
		return nil, errors.New("agent role is required")
	}
	if llm == nil {
		return nil, fmt.Errorf("agent %q: model is required", role)
	}

	opts := Options{MaxIterations: DefaultMaxIterations}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	invoker, err := tool.NewInvoker(opts.Tools, func(o *tool.InvokerOptions) {
		o.Observer = opts.ToolObserver
	})
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", role, err)
	}

	instruction := opts.Instruction
	if instruction.IsZero() {
		persona, err := util.RenderTemplate(personaTemplate, map[string]any{
			"role":      role,
			"goal":      opts.Goal,
			"backstory": opts.Backstory,
		})
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", role, err)
		}
		instruction = NewInstructionFromText(persona)
	}

	a := &Agent{
		role:          role,
		goal:          opts.Goal,
		backstory:     opts.Backstory,
		llm:           llm,
		invoker:       invoker,
		maxIterations: opts.MaxIterations,
		instruction:   instruction,
	}
	a.flow = flow.NewSingleAgentFlow(a)

	return a, nil
}

// Role returns the agent role.
func (a *Agent) Role() string { return a.role }

// Goal returns the agent goal.
func (a *Agent) Goal() string { return a.goal }

// Backstory returns the agent backstory.
func (a *Agent) Backstory() string { return a.backstory }

// MaxIterations returns the model turn budget per task.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// Execute runs one task instruction and returns the final model text.
// runCtx must be scoped to the task (see core.RunContext.ForTask).
func (a *Agent) Execute(runCtx *core.RunContext, instruction string) (string, error) {
	runCtx.LogInfo("agent.execute.start", "tools", len(a.invoker.Tools()), "max_iterations", a.maxIterations)

	out, err := a.flow.Run(runCtx, instruction)
	if err != nil {
		runCtx.LogError("agent.execute.failed", "error", err.Error())
		return "", err
	}

	runCtx.LogInfo("agent.execute.complete", "turns", runCtx.Budget.Spent(), "output_length", len(out))

	return out, nil
}

// GetName implements flow.FlowAgent.
func (a *Agent) GetName() string { return a.role }

// GetLLM implements flow.FlowAgent.
func (a *Agent) GetLLM() model.Model { return a.llm }

// GetTools implements flow.FlowAgent.
func (a *Agent) GetTools() []tool.Tool { return a.invoker.Tools() }

// ResolveInstructions implements flow.FlowAgent.
func (a *Agent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// ExecuteTool implements flow.FlowAgent.
func (a *Agent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) string {
	return a.invoker.Invoke(toolCtx, toolName, args)
}
