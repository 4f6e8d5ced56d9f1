// Package progress derives the display state of a workflow request from its
// definition and recorded stage responses.
//
// Everything here is a pure function of its inputs: the workflow definition,
// the append-only response history and the current-stage pointer reported
// by the backend. Nothing is mutated and no global state is consulted, so
// the same inputs always produce the same View.
//
// # Stage status
//
// A top-level stage is Current when it is the stage the backend reports as
// pending, otherwise it carries the status of its recorded response, or
// Not Started when none exists.
//
// # Sub-stages
//
// Sub-stages form internal loops under a parent stage and may be attempted
// several times. Only the latest attempt per sub-stage name is shown.
//
// # Completion
//
// Completion is the number of recorded responses over the number of
// top-level stages. A workflow without top-level stages has no completion
// percentage.
package progress
