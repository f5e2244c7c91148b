package protocol

import (
	"strings"

	"github.com/mark3labs/dispatchr/internal/render"
	"github.com/mark3labs/dispatchr/internal/tools"
)

// callState tracks what has already been shown for one tool call id.
type callState struct {
	title    string
	started  bool
	rendered bool
}

// Normalizer folds the raw event stream into Renderer calls. It keeps one
// callState per live tool call id and purges it when the terminal event is
// processed. It is driven by a single ordered stream and is not safe for
// concurrent use.
type Normalizer struct {
	out      render.Renderer
	calls    map[string]*callState
	thinking bool
	chunks   int
}

func NewNormalizer(out render.Renderer) *Normalizer {
	return &Normalizer{
		out:   out,
		calls: make(map[string]*callState),
	}
}

// Handle processes one event. Unrecognized event types surface as
// informational lines; nothing in the stream may abort it.
func (n *Normalizer) Handle(e Event) {
	switch e.Type {
	case TypeMessageChunk:
		n.closeThought()
		n.chunks++
		n.out.MessageChunk(e.Text)
	case TypeThoughtChunk:
		n.thinking = true
		n.out.ThoughtChunk(e.Text)
	case TypeToolCall, TypeToolCallUpdate:
		n.toolCall(e)
	case TypePlanUpdate:
		n.out.PlanSummary(planItems(e.Entries))
	case TypeResponse:
		n.finish(e)
	default:
		name := e.Type
		if name == "" {
			name = "unknown"
		}
		n.out.Info("event: " + name)
	}
}

// toolCall runs the per-id state machine. tool_call and tool_call_update
// carry the same fields and are treated identically. Incoming titles
// replace the known one rather than appending: agents restate the call
// with a longer title on every heartbeat, and the terminal event always
// arrives with a blank one.
func (n *Normalizer) toolCall(e Event) {
	success, terminal := terminalStatus(e.Status)
	if !terminal && !runningStatus(e.Status) {
		// Unrecognized statuses leave no trace: no render, no state.
		return
	}

	st := n.calls[e.ID]
	if st == nil {
		st = &callState{}
		n.calls[e.ID] = st
	}
	if t := strings.TrimSpace(e.Title); t != "" {
		st.title = t
	}

	if terminal {
		if st.rendered {
			return
		}
		st.rendered = true
		output := e.RawOutput
		if output == "" {
			if success {
				output = "Done"
			} else {
				output = "Failed"
			}
		}
		n.out.ToolFinished(st.displayTitle(), output, success)
		delete(n.calls, e.ID)
		return
	}

	if !st.started {
		st.started = true
		n.out.ToolStarted(st.displayTitle())
	}
}

func (s *callState) displayTitle() string {
	if s.title == "" {
		return "tool"
	}
	return s.title
}

// finish handles the response event framing the whole turn.
func (n *Normalizer) finish(e Event) {
	n.closeThought()
	if n.chunks > 0 {
		n.out.CloseMessage()
	}
	reason := e.StopReason
	if reason == "" {
		reason = "end_turn"
	}
	n.out.Info("turn complete: " + reason)
	if n.chunks == 0 {
		n.out.Warn("turn produced no message output")
	}
	n.chunks = 0
}

func (n *Normalizer) closeThought() {
	if n.thinking {
		n.out.CloseThought()
		n.thinking = false
	}
}

func planItems(entries []PlanEntry) []tools.PlanItem {
	items := make([]tools.PlanItem, len(entries))
	for i, entry := range entries {
		status := tools.PlanPending
		switch strings.ToLower(entry.Status) {
		case StatusCompleted:
			status = tools.PlanDone
		case StatusInProgress:
			status = tools.PlanInProgress
		}
		items[i] = tools.PlanItem{Text: entry.Content, Status: status}
	}
	return items
}
