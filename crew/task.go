package crew

import (
	"fmt"
	"strings"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/internal/util"
)

// TaskStatus is the lifecycle state of a task within one run.
type TaskStatus string

// Task lifecycle: PENDING -> RUNNING -> COMPLETE | FAILED.
const (
	StatusPending  TaskStatus = "PENDING"
	StatusRunning  TaskStatus = "RUNNING"
	StatusComplete TaskStatus = "COMPLETE"
	StatusFailed   TaskStatus = "FAILED"
)

// Executor is the agent side of a task.
type Executor interface {
	Role() string
	MaxIterations() int
	Execute(runCtx *core.RunContext, instruction string) (string, error)
}

// Task is a unit of work owned by an agent.
type Task struct {
	// Name identifies the task within a crew.
	Name string
	// Description is a text/template rendered against the run inputs.
	Description string
	// ExpectedOutput describes the final answer the agent should produce.
	ExpectedOutput string
	// Agent executes the task.
	Agent Executor
	// Context lists earlier tasks whose outputs are appended to the
	// instruction, in the listed order.
	Context []*Task
}

const (
	expectedOutputHeader = "This is the expected criteria for your final answer: "
	completeOutputNote   = "You MUST return the actual complete content as the final answer, not a summary."
	contextHeader        = "This is the context you're working with:"
	contextSeparator     = "\n\n----------\n\n"
)

// Render builds the instruction handed to the agent. outputs maps the names
// of completed tasks to their raw output.
func (t *Task) Render(inputs map[string]any, outputs map[string]string) (string, error) {
	desc, err := util.RenderTemplate(t.Description, inputs)
	if err != nil {
		return "", fmt.Errorf("render description: %w", err)
	}

	var b strings.Builder

	b.WriteString(desc)

	if t.ExpectedOutput != "" {
		b.WriteString("\n\n")
		b.WriteString(expectedOutputHeader)
		b.WriteString(t.ExpectedOutput)
		b.WriteString("\n")
		b.WriteString(completeOutputNote)
	}

	if len(t.Context) > 0 {
		parts := make([]string, 0, len(t.Context))
		for _, c := range t.Context {
			out, ok := outputs[c.Name]
			if !ok {
				return "", fmt.Errorf("%w: output of %q is not available", ErrInvalidContext, c.Name)
			}
			parts = append(parts, out)
		}

		b.WriteString("\n\n")
		b.WriteString(contextHeader)
		b.WriteString("\n")
		b.WriteString(strings.Join(parts, contextSeparator))
	}

	return b.String(), nil
}

// TaskOutput is the result of one completed task.
type TaskOutput struct {
	Task   string `json:"task"`
	Agent  string `json:"agent"`
	Raw    string `json:"raw"`
	Turns  int    `json:"turns"`
	Millis int64  `json:"duration_ms"`
}
