// Package agent contains the persona agent executed by crews.
//
// An Agent binds a role, goal and backstory to a language model and an
// explicit, closed set of tools. Executing a task runs the rendered task
// instruction through a flow.SingleAgentFlow: the persona becomes the system
// prompt, requested tool calls are dispatched through a tool.Invoker and the
// final model text is the task output.
//
// Agents hold no per-run state and may execute tasks of concurrent runs.
package agent
