package crew

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/internal/util"
	"github.com/hupe1980/finmesh/logging"
)

var (
	// ErrNoTasks is returned when a crew is created without tasks.
	ErrNoTasks = errors.New("crew has no tasks")
	// ErrInvalidContext is returned when a task lists a context task that
	// does not run before it.
	ErrInvalidContext = errors.New("invalid task context")
)

// TaskError reports the task that ended a run.
type TaskError struct {
	Task  string
	Agent string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (agent %s) failed: %v", e.Task, e.Agent, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error { return e.Err }

// Observer is notified when a task reaches a terminal state.
type Observer interface {
	ObserveTask(task string, status TaskStatus, duration time.Duration)
}

// Options configures a Crew.
type Options struct {
	Logger   logging.Logger
	Observer Observer
	// NewRunID generates run ids; defaults to core.NewID.
	NewRunID func() string
}

// Crew runs a fixed, ordered list of tasks. A Crew is immutable after New
// and safe for concurrent Kickoff calls.
type Crew struct {
	tasks    []*Task
	logger   logging.Logger
	observer Observer
	newRunID func() string
}

// New validates tasks and creates a Crew.
//
// Validation rules:
//   - at least one task; names unique and non-empty; every task has an agent
//   - descriptions parse as templates
//   - context tasks belong to the crew and come earlier in the list
func New(tasks []*Task, optFns ...func(o *Options)) (*Crew, error) {
	opts := Options{
		Logger:   logging.NoOpLogger{},
		NewRunID: core.NewID,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	position := make(map[*Task]int, len(tasks))
	names := make(map[string]struct{}, len(tasks))

	for i, t := range tasks {
		if t == nil {
			return nil, fmt.Errorf("task %d is nil", i)
		}
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("task %d has no name", i)
		}
		if _, dup := names[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task name %q", t.Name)
		}
		if t.Agent == nil {
			return nil, fmt.Errorf("task %q has no agent", t.Name)
		}
		if err := util.ParseTemplate(t.Description); err != nil {
			return nil, fmt.Errorf("task %q: invalid description: %w", t.Name, err)
		}

		for _, c := range t.Context {
			p, ok := position[c]
			if !ok || p >= i {
				name := "<nil>"
				if c != nil {
					name = c.Name
				}
				return nil, fmt.Errorf("%w: task %q depends on %q which does not run before it", ErrInvalidContext, t.Name, name)
			}
		}

		position[t] = i
		names[t.Name] = struct{}{}
	}

	return &Crew{
		tasks:    append([]*Task(nil), tasks...),
		logger:   opts.Logger,
		observer: opts.Observer,
		newRunID: opts.NewRunID,
	}, nil
}

// Tasks returns the tasks in execution order.
func (c *Crew) Tasks() []*Task {
	return append([]*Task(nil), c.tasks...)
}

// Kickoff executes all tasks in order against inputs and returns the run.
// On failure the partial run is returned together with a *TaskError; tasks
// after the failing one stay PENDING.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]any) (*Run, error) {
	run := &Run{
		ID:       c.newRunID(),
		Inputs:   maps.Clone(inputs),
		Statuses: make(map[string]TaskStatus, len(c.tasks)),
	}
	if run.Inputs == nil {
		run.Inputs = map[string]any{}
	}

	for _, t := range c.tasks {
		run.Statuses[t.Name] = StatusPending
	}

	rc := core.NewRunContext(ctx, run.ID, run.Inputs, c.logger)
	defer func() { run.Events = rc.Events() }()

	rc.LogInfo("crew.kickoff.start", "tasks", len(c.tasks))

	start := time.Now()
	outputs := make(map[string]string, len(c.tasks))

	for _, t := range c.tasks {
		out, err := c.runTask(rc, run, t, outputs)
		if err != nil {
			rc.LogError("crew.kickoff.failed", "task", t.Name, "error", err.Error())
			return run, err
		}

		outputs[t.Name] = out.Raw
		run.Outputs = append(run.Outputs, out)
		run.Final = out.Raw
	}

	rc.LogInfo("crew.kickoff.complete", "duration_ms", time.Since(start).Milliseconds())

	return run, nil
}

func (c *Crew) runTask(rc *core.RunContext, run *Run, t *Task, outputs map[string]string) (TaskOutput, error) {
	role := t.Agent.Role()
	taskCtx := rc.ForTask(t.Name, core.AgentInfo{Name: role, Type: "persona"}, t.Agent.MaxIterations())

	run.Statuses[t.Name] = StatusRunning
	taskCtx.LogInfo("crew.task.start")

	start := time.Now()

	fail := func(err error) (TaskOutput, error) {
		run.Statuses[t.Name] = StatusFailed
		dur := time.Since(start)

		taskCtx.LogError("crew.task.failed", "duration_ms", dur.Milliseconds(), "error", err.Error())

		if c.observer != nil {
			c.observer.ObserveTask(t.Name, StatusFailed, dur)
		}

		return TaskOutput{}, &TaskError{Task: t.Name, Agent: role, Err: err}
	}

	if err := rc.Err(); err != nil {
		return fail(err)
	}

	instruction, err := t.Render(run.Inputs, outputs)
	if err != nil {
		return fail(err)
	}

	raw, err := t.Agent.Execute(taskCtx, instruction)
	if err != nil {
		return fail(err)
	}

	dur := time.Since(start)
	run.Statuses[t.Name] = StatusComplete

	taskCtx.LogInfo("crew.task.complete", "duration_ms", dur.Milliseconds(), "output_length", len(raw))

	if c.observer != nil {
		c.observer.ObserveTask(t.Name, StatusComplete, dur)
	}

	return TaskOutput{
		Task:   t.Name,
		Agent:  role,
		Raw:    raw,
		Turns:  taskCtx.Budget.Spent(),
		Millis: dur.Milliseconds(),
	}, nil
}
