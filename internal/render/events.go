// Package render defines the run's display contract: a Renderer
// interface, a NATS-backed bus that serializes render events, a console
// sink that draws them, and a recorder for tests. Execution code never
// writes to the terminal directly; it talks to a Renderer.
package render

import (
	"encoding/json"

	"github.com/mark3labs/dispatchr/internal/tools"
)

// Kind discriminates render events on the wire.
type Kind string

const (
	KindIteration     Kind = "iteration"
	KindToolCall      Kind = "tool_call"
	KindToolResult    Kind = "tool_result"
	KindEdit          Kind = "edit"
	KindSketch        Kind = "sketch"
	KindPlan          Kind = "plan"
	KindTaskComplete  Kind = "task_complete"
	KindRepeatWarning Kind = "repeat_warning"
	KindToolStarted   Kind = "tool_started"
	KindToolFinished  Kind = "tool_finished"
	KindThoughtChunk  Kind = "thought_chunk"
	KindMessageChunk  Kind = "message_chunk"
	KindThoughtEnd    Kind = "thought_end"
	KindMessageEnd    Kind = "message_end"
	KindInfo          Kind = "info"
	KindWarn          Kind = "warn"
	KindError         Kind = "error"

	// kindSync is a barrier: the bus requests, the listener replies once
	// every earlier event has been drawn.
	kindSync Kind = "sync"
)

// Event is the serialized form of one Renderer call. A single flat
// struct keeps the wire format trivial; unused fields are omitted.
type Event struct {
	Kind      Kind             `json:"kind"`
	Text      string           `json:"text,omitempty"`
	Tool      string           `json:"tool,omitempty"`
	Params    string           `json:"params,omitempty"`
	Title     string           `json:"title,omitempty"`
	Lang      string           `json:"lang,omitempty"`
	Path      string           `json:"path,omitempty"`
	Before    string           `json:"before,omitempty"`
	After     string           `json:"after,omitempty"`
	Number    int              `json:"number,omitempty"`
	Max       int              `json:"max,omitempty"`
	Position  int              `json:"position,omitempty"`
	Total     int              `json:"total,omitempty"`
	Count     int              `json:"count,omitempty"`
	Success   bool             `json:"success,omitempty"`
	ElapsedMs int64            `json:"elapsed_ms,omitempty"`
	Items     []tools.PlanItem `json:"items,omitempty"`
}

// Marshal encodes the event for the bus.
func (e Event) Marshal() []byte {
	data, _ := json.Marshal(e)
	return data
}

// Dispatch replays a decoded event onto a Renderer. Unknown kinds are
// dropped so newer publishers don't break older sinks.
func Dispatch(e Event, r Renderer) {
	switch e.Kind {
	case KindIteration:
		r.IterationStart(e.Number, e.Max)
	case KindToolCall:
		r.ToolCall(e.Tool, e.Params, e.Position, e.Total)
	case KindToolResult:
		r.ToolResult(ResultView{
			Tool:      e.Tool,
			Params:    e.Params,
			Content:   e.Text,
			Success:   e.Success,
			ElapsedMs: e.ElapsedMs,
		})
	case KindEdit:
		r.Edit(e.Path, e.Before, e.After)
	case KindSketch:
		r.Sketch(e.Lang, e.Text)
	case KindPlan:
		r.PlanSummary(e.Items)
	case KindTaskComplete:
		r.TaskComplete(e.Text)
	case KindRepeatWarning:
		r.RepeatWarning(e.Text, e.Count)
	case KindToolStarted:
		r.ToolStarted(e.Title)
	case KindToolFinished:
		r.ToolFinished(e.Title, e.Text, e.Success)
	case KindThoughtChunk:
		r.ThoughtChunk(e.Text)
	case KindMessageChunk:
		r.MessageChunk(e.Text)
	case KindThoughtEnd:
		r.CloseThought()
	case KindMessageEnd:
		r.CloseMessage()
	case KindInfo:
		r.Info(e.Text)
	case KindWarn:
		r.Warn(e.Text)
	case KindError:
		r.Error(e.Text)
	}
}
