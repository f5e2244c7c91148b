package tools

import (
	"time"

	"github.com/rs/xid"
)

// Metadata keys shared between the executor, the pending-result resolver,
// and the renderer. Values are free-form strings; boolean flags use "true".
const (
	MetaSessionID     = "sessionId"
	MetaStatus        = "status"
	MetaIsAsync       = "isAsync"
	MetaStillRunning  = "stillRunning"
	MetaIsLiveSession = "isLiveSession"
	MetaCancelled     = "cancelled"
	MetaPartialOutput = "partialOutput"
	MetaOldContent    = "oldContent"
	MetaFileExisted   = "fileExisted"
	MetaAgentName     = "agent"

	StatusStillRunning = "still_running"
)

// Outcome is the closed set of results a tool execution can produce.
// Switch over the concrete types; the marker method keeps the set closed
// to this package.
type Outcome interface {
	isOutcome()
}

// Success carries the tool's output content.
type Success struct {
	Content  string
	Metadata map[string]string
}

// Failure carries an error message, a coarse error type, and any captured
// process output.
type Failure struct {
	Message   string
	ErrorType string
	Stdout    string
	Stderr    string
}

// Pending means the tool escalated to a background session whose result
// must be awaited separately.
type Pending struct {
	SessionID string
	Command   string
}

// AgentResult is the payload returned by a tool that delegated work to a
// nested agent. Content may embed fenced sketch blocks.
type AgentResult struct {
	OK       bool
	Content  string
	Metadata map[string]string
}

func (Success) isOutcome()     {}
func (Failure) isOutcome()     {}
func (Pending) isOutcome()     {}
func (AgentResult) isOutcome() {}

// ExecutionState tracks a result's coarse lifecycle for observability,
// parallel to the Outcome itself.
type ExecutionState int

const (
	StateExecuting ExecutionState = iota
	StateSuccess
	StateFailed
)

// String returns the state name.
func (s ExecutionState) String() string {
	switch s {
	case StateExecuting:
		return "executing"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExecutionResult is the full record of one tool execution.
type ExecutionResult struct {
	ID        string
	Tool      string
	Outcome   Outcome
	State     ExecutionState
	StartedAt time.Time
	EndedAt   time.Time
	Metadata  map[string]string
}

// NewResult builds an ExecutionResult around an outcome, deriving the
// state, stamping start/end times, and lifting outcome metadata up so
// consumers read one map.
func NewResult(tool string, outcome Outcome, startedAt time.Time) ExecutionResult {
	r := ExecutionResult{
		ID:        xid.New().String(),
		Tool:      tool,
		Outcome:   outcome,
		State:     stateFor(outcome),
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		Metadata:  make(map[string]string),
	}
	switch o := outcome.(type) {
	case Success:
		for k, v := range o.Metadata {
			r.Metadata[k] = v
		}
	case AgentResult:
		for k, v := range o.Metadata {
			r.Metadata[k] = v
		}
	case Pending:
		r.Metadata[MetaSessionID] = o.SessionID
	}
	return r
}

func stateFor(outcome Outcome) ExecutionState {
	switch o := outcome.(type) {
	case Success:
		return StateSuccess
	case Failure:
		return StateFailed
	case Pending:
		return StateExecuting
	case AgentResult:
		if o.OK {
			return StateSuccess
		}
		return StateFailed
	default:
		return StateFailed
	}
}

// IsPending reports whether the result is an unresolved background session.
func (r ExecutionResult) IsPending() bool {
	_, ok := r.Outcome.(Pending)
	return ok
}

// Succeeded reports whether the result counts as a success.
func (r ExecutionResult) Succeeded() bool {
	return r.State == StateSuccess
}

// Meta returns the metadata value for key, or "" when unset.
func (r ExecutionResult) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}

// MetaFlag reports whether a boolean metadata flag is set.
func (r ExecutionResult) MetaFlag(key string) bool {
	return r.Meta(key) == "true"
}

// SetMeta sets a metadata entry, allocating the map if needed.
func (r *ExecutionResult) SetMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// ExecContext is the shared, read-only context every call in a dispatch
// batch executes under. It must not be mutated by tools.
type ExecContext struct {
	WorkingDir string
	Env        []string
	Timeout    time.Duration
}
