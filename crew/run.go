package crew

import "github.com/hupe1980/finmesh/core"

// Run is the record of one Kickoff. It is owned by the caller and never
// shared between invocations.
type Run struct {
	ID       string                `json:"id"`
	Inputs   map[string]any        `json:"inputs"`
	Outputs  []TaskOutput          `json:"outputs"`
	Statuses map[string]TaskStatus `json:"statuses"`
	Final    string                `json:"final"`
	Events   []core.Event          `json:"events,omitempty"`
}

// Output returns the output of the named task if it completed.
func (r *Run) Output(task string) (TaskOutput, bool) {
	for _, o := range r.Outputs {
		if o.Task == task {
			return o, true
		}
	}
	return TaskOutput{}, false
}

// Status returns the status of the named task.
func (r *Run) Status(task string) TaskStatus {
	return r.Statuses[task]
}
