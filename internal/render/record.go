package render

import (
	"sync"

	"github.com/mark3labs/dispatchr/internal/tools"
)

// Recorder is a Renderer that captures calls as events for assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded, in call order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of one kind, in call order.
func (r *Recorder) OfKind(kind Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	return len(r.OfKind(kind))
}

func (r *Recorder) IterationStart(number, max int) {
	r.record(Event{Kind: KindIteration, Number: number, Max: max})
}

func (r *Recorder) ToolCall(tool, params string, position, total int) {
	r.record(Event{Kind: KindToolCall, Tool: tool, Params: params, Position: position, Total: total})
}

func (r *Recorder) ToolResult(v ResultView) {
	r.record(Event{Kind: KindToolResult, Tool: v.Tool, Params: v.Params, Text: v.Content, Success: v.Success, ElapsedMs: v.ElapsedMs})
}

func (r *Recorder) Edit(path, before, after string) {
	r.record(Event{Kind: KindEdit, Path: path, Before: before, After: after})
}

func (r *Recorder) Sketch(lang, source string) {
	r.record(Event{Kind: KindSketch, Lang: lang, Text: source})
}

func (r *Recorder) PlanSummary(items []tools.PlanItem) {
	r.record(Event{Kind: KindPlan, Items: items})
}

func (r *Recorder) TaskComplete(summary string) {
	r.record(Event{Kind: KindTaskComplete, Text: summary})
}

func (r *Recorder) RepeatWarning(tool string, count int) {
	r.record(Event{Kind: KindRepeatWarning, Text: tool, Count: count})
}

func (r *Recorder) ToolStarted(title string) {
	r.record(Event{Kind: KindToolStarted, Title: title})
}

func (r *Recorder) ToolFinished(title, output string, success bool) {
	r.record(Event{Kind: KindToolFinished, Title: title, Text: output, Success: success})
}

func (r *Recorder) ThoughtChunk(text string) {
	r.record(Event{Kind: KindThoughtChunk, Text: text})
}

func (r *Recorder) MessageChunk(text string) {
	r.record(Event{Kind: KindMessageChunk, Text: text})
}

func (r *Recorder) CloseThought() {
	r.record(Event{Kind: KindThoughtEnd})
}

func (r *Recorder) CloseMessage() {
	r.record(Event{Kind: KindMessageEnd})
}

func (r *Recorder) Info(text string) {
	r.record(Event{Kind: KindInfo, Text: text})
}

func (r *Recorder) Warn(text string) {
	r.record(Event{Kind: KindWarn, Text: text})
}

func (r *Recorder) Error(text string) {
	r.record(Event{Kind: KindError, Text: text})
}

func (r *Recorder) Flush() error { return nil }
