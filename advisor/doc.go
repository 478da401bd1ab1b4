// Package advisor is the public entry point of the advice pipeline.
//
// An Orchestrator binds the user query and, when a user id is given, the
// user's portfolio context into the crew inputs, runs the research and
// advice tasks and resolves the advisor's raw output into an answer.Answer.
// GetAdvice is total: every failure is absorbed into one of the fixed
// degraded answers and reported only through logs, metrics and the error
// tracker.
package advisor
