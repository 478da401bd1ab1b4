// Package crew executes an ordered list of tasks against shared input
// bindings.
//
// Tasks run strictly one after another. Each task's description is rendered
// as a text/template against the run inputs, extended with the expected
// output criteria and the verbatim outputs of the earlier tasks it lists as
// context, and handed to its agent. The output of the last task is the
// result of the run. The first failing task ends the run; nothing is
// retried.
package crew
