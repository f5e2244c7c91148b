package render

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/mark3labs/dispatchr/internal/tools"
)

// Every event kind must survive marshal, unmarshal, and dispatch onto a
// recorder unchanged. The recorder re-encodes calls as events, so a
// mismatch means Dispatch and the Bus disagree about a field.
func TestDispatch_RoundTrip(t *testing.T) {
	events := []Event{
		{Kind: KindIteration, Number: 3, Max: 25},
		{Kind: KindToolCall, Tool: "glob", Params: `pattern="*.go"`, Position: 1, Total: 2},
		{Kind: KindToolResult, Tool: "shell", Params: `command="ls"`, Text: "out", Success: true, ElapsedMs: 120},
		{Kind: KindEdit, Path: "main.go", Before: "a", After: "b"},
		{Kind: KindSketch, Lang: "mermaid", Text: "graph TD"},
		{Kind: KindPlan, Items: []tools.PlanItem{{Text: "x", Status: tools.PlanDone}}},
		{Kind: KindTaskComplete, Text: "all done"},
		{Kind: KindRepeatWarning, Text: "shell", Count: 2},
		{Kind: KindToolStarted, Title: "Reading file"},
		{Kind: KindToolFinished, Title: "Reading file", Text: "Done", Success: true},
		{Kind: KindThoughtChunk, Text: "hmm"},
		{Kind: KindMessageChunk, Text: "hello"},
		{Kind: KindThoughtEnd},
		{Kind: KindMessageEnd},
		{Kind: KindInfo, Text: "fyi"},
		{Kind: KindWarn, Text: "careful"},
		{Kind: KindError, Text: "broke"},
	}

	rec := NewRecorder()
	for _, e := range events {
		var decoded Event
		if err := json.Unmarshal(e.Marshal(), &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", e.Kind, err)
		}
		Dispatch(decoded, rec)
	}

	got := rec.Events()
	if len(got) != len(events) {
		t.Fatalf("recorded %d events, want %d", len(got), len(events))
	}
	for i, want := range events {
		if !reflect.DeepEqual(got[i], want) {
			t.Errorf("event %d (%s):\ngot  %+v\nwant %+v", i, want.Kind, got[i], want)
		}
	}
}

func TestDispatch_UnknownKindDropped(t *testing.T) {
	rec := NewRecorder()
	Dispatch(Event{Kind: "hologram", Text: "future"}, rec)
	if n := len(rec.Events()); n != 0 {
		t.Errorf("recorded %d events for unknown kind, want 0", n)
	}
}

func TestRecorder_Filters(t *testing.T) {
	rec := NewRecorder()
	rec.Info("one")
	rec.Warn("two")
	rec.Info("three")

	if rec.Count(KindInfo) != 2 {
		t.Errorf("Count(info) = %d, want 2", rec.Count(KindInfo))
	}
	infos := rec.OfKind(KindInfo)
	if infos[0].Text != "one" || infos[1].Text != "three" {
		t.Errorf("OfKind(info) = %+v", infos)
	}
}
