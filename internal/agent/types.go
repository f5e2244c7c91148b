// Package agent drives a run: the iteration loop that talks to the
// model, the dispatcher that executes tool calls in parallel, the
// repeat guard that stops runaway loops, and the resolver that settles
// background shell sessions.
package agent

import "github.com/mark3labs/dispatchr/internal/tools"

// Task is what a run works on. Immutable for the lifetime of the loop.
type Task struct {
	Requirement string
	ProjectPath string
}

// Step is one completed tool execution. The loop appends steps in
// order and never mutates them afterwards.
type Step struct {
	Iteration int
	Tool      string
	Params    tools.Params
	Result    string
	Success   bool
}

// EditOp distinguishes file creation from modification.
type EditOp string

const (
	OpCreate EditOp = "CREATE"
	OpUpdate EditOp = "UPDATE"
)

// Edit records one successful file write.
type Edit struct {
	Path       string
	Op         EditOp
	Content    string
	OldContent string
}

// Result is the final outcome of a run, built once when the loop
// terminates. Success is true iff at least one step succeeded,
// whatever ended the loop.
type Result struct {
	Success bool
	Message string
	Steps   []Step
	Edits   []Edit
}
