package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/dispatchr/internal/errors"
	"github.com/mark3labs/dispatchr/internal/logger"
)

// Built-in tool names.
const (
	NameReadFile  = "read_file"
	NameWriteFile = "write_file"
	NameShell     = "shell"
	NameGlob      = "glob"
	NamePlan      = "plan"
	NameDelegate  = "delegate"
)

// IsWriteTool reports whether a tool mutates files, which makes its
// successful results eligible for edit tracking.
func IsWriteTool(name string) bool {
	return name == NameWriteFile
}

// Tool executes one call under the batch's shared context and returns
// an outcome. Implementations must treat env as read-only.
type Tool interface {
	Name() string
	Run(ctx context.Context, call Call, env ExecContext) Outcome
}

// Registry maps tool names to implementations and runs calls with
// panic recovery, so a misbehaving tool fails its own result instead
// of taking down the batch.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute runs a single call and always returns a usable result: unknown
// tools and panics become Failure outcomes.
func (r *Registry) Execute(ctx context.Context, call Call, env ExecContext) ExecutionResult {
	startedAt := time.Now()

	t, ok := r.Lookup(call.Name)
	if !ok {
		return NewResult(call.Name, Failure{
			Message:   fmt.Sprintf("unknown tool: %s", call.Name),
			ErrorType: "unknown_tool",
		}, startedAt)
	}

	var outcome Outcome
	err := errors.Recover(func() error {
		outcome = t.Run(ctx, call, env)
		return nil
	})
	if err != nil {
		logger.Error("tool %s panicked: %v", call.Name, err)
		outcome = Failure{Message: err.Error(), ErrorType: "panic"}
	}
	if outcome == nil {
		outcome = Failure{Message: "tool returned no outcome", ErrorType: "internal"}
	}

	result := NewResult(call.Name, outcome, startedAt)
	if ctx.Err() != nil {
		result.SetMeta(MetaCancelled, "true")
	}
	return result
}
