// Package protocol normalizes the agent-control event stream emitted by
// external coding agents into renderer calls. The raw stream is chatty:
// one tool call can produce thousands of in-progress updates, each
// restating the call with an incrementally refined title. The normalizer
// collapses every call to exactly two renders, one when it starts and one
// when it finishes.
package protocol

import (
	"encoding/json"
	"strings"
)

// Event types carried on the wire.
const (
	TypeMessageChunk   = "message_chunk"
	TypeThoughtChunk   = "thought_chunk"
	TypeToolCall       = "tool_call"
	TypeToolCallUpdate = "tool_call_update"
	TypePlanUpdate     = "plan_update"
	TypeResponse       = "response"
)

// Tool call statuses. Running statuses may repeat any number of times for
// one call; a terminal status arrives once and ends it.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusError      = "error"
)

// Event is one line of the agent-control stream. Fields are populated
// according to Type. Events with types or statuses we do not recognize
// must still decode; the agent's vocabulary grows faster than ours.
type Event struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Title      string          `json:"title,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Status     string          `json:"status,omitempty"`
	RawInput   json.RawMessage `json:"rawInput,omitempty"`
	RawOutput  string          `json:"rawOutput,omitempty"`
	Text       string          `json:"text,omitempty"`
	Entries    []PlanEntry     `json:"entries,omitempty"`
	StopReason string          `json:"stopReason,omitempty"`
}

// PlanEntry is one item of a plan_update event.
type PlanEntry struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

func runningStatus(status string) bool {
	switch strings.ToLower(status) {
	case StatusPending, StatusInProgress:
		return true
	}
	return false
}

// terminalStatus reports whether status ends a tool call and, if so,
// whether the call succeeded.
func terminalStatus(status string) (success, terminal bool) {
	switch strings.ToLower(status) {
	case StatusCompleted:
		return true, true
	case StatusFailed, StatusError:
		return false, true
	}
	return false, false
}
