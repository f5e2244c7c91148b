package agent

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/dispatchr/internal/render"
	"github.com/mark3labs/dispatchr/internal/tools"
)

// fakeExecutor runs calls with scripted outcomes and latencies.
type fakeExecutor struct {
	mu       sync.Mutex
	executed []string
	outcome  func(call tools.Call) tools.Outcome
	latency  func(call tools.Call) time.Duration
}

func (f *fakeExecutor) Execute(_ context.Context, call tools.Call, _ tools.ExecContext) tools.ExecutionResult {
	if f.latency != nil {
		time.Sleep(f.latency(call))
	}
	f.mu.Lock()
	f.executed = append(f.executed, call.String())
	f.mu.Unlock()

	var out tools.Outcome = tools.Success{Content: "ok:" + call.Name}
	if f.outcome != nil {
		out = f.outcome(call)
	}
	return tools.NewResult(call.Name, out, time.Now())
}

func (f *fakeExecutor) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

func newTestDispatcher(exec Executor, rec render.Renderer) *Dispatcher {
	resolver := NewResolver(fakeAwaiter{}, time.Millisecond)
	return NewDispatcher(exec, resolver, rec, tools.ExecContext{WorkingDir: "/tmp"})
}

func TestDispatcher_PreservesInputOrder(t *testing.T) {
	calls := make([]tools.Call, 8)
	for i := range calls {
		calls[i] = call("shell", "command", fmt.Sprintf("cmd-%d", i))
	}

	for seed := int64(0); seed < 5; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			delays := make(map[string]time.Duration, len(calls))
			for _, c := range calls {
				delays[c.String()] = time.Duration(rng.Intn(30)) * time.Millisecond
			}

			exec := &fakeExecutor{latency: func(c tools.Call) time.Duration { return delays[c.String()] }}
			d := newTestDispatcher(exec, render.NewRecorder())

			dispatched, steps, _ := d.Execute(context.Background(), calls, 1)

			require.Len(t, dispatched, len(calls))
			for i, dis := range dispatched {
				assert.Equal(t, calls[i].String(), dis.Call.String(), "result %d out of order", i)
				assert.Equal(t, calls[i].Params.String(), steps[i].Params.String())
			}
		})
	}
}

func TestDispatcher_RepeatRejectionHaltsBatch(t *testing.T) {
	exec := &fakeExecutor{}
	rec := render.NewRecorder()
	d := newTestDispatcher(exec, rec)

	// First occurrence runs fine.
	d.Execute(context.Background(), []tools.Call{call("shell", "command", "ls")}, 1)

	// Second occurrence within the window trips the guard; the call
	// before it still runs, the call after it never does.
	batch := []tools.Call{
		call("read_file", "path", "a.go"),
		call("shell", "command", "ls"),
		call("glob", "pattern", "*.go"),
	}
	dispatched, steps, _ := d.Execute(context.Background(), batch, 2)

	require.Len(t, dispatched, 2)
	assert.Equal(t, "read_file", dispatched[0].Call.Name)
	assert.True(t, dispatched[0].Result.Succeeded())

	synthetic := dispatched[1]
	assert.Equal(t, "shell", synthetic.Call.Name)
	assert.False(t, synthetic.Result.Succeeded())
	assert.True(t, strings.HasPrefix(synthetic.Result.ID, "repeat-error-"), "ID = %q", synthetic.Result.ID)

	ran := exec.ran()
	require.Len(t, ran, 2) // ls from batch 1 plus read_file
	assert.NotContains(t, ran, batch[2].String(), "call after the rejection must not execute")

	warnings := rec.OfKind(render.KindRepeatWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, 2, warnings[0].Count)
	assert.Equal(t, "shell", warnings[0].Text, "warning carries the tool name, not the full signature")

	require.Len(t, steps, 2)
	assert.False(t, steps[1].Success)
}

func TestDispatcher_AnnouncesAllBeforeAnyResult(t *testing.T) {
	exec := &fakeExecutor{}
	rec := render.NewRecorder()
	d := newTestDispatcher(exec, rec)

	calls := []tools.Call{
		call("shell", "command", "a"),
		call("shell", "command", "b"),
		call("shell", "command", "c"),
	}
	d.Execute(context.Background(), calls, 1)

	events := rec.Events()
	firstResult := -1
	lastAnnounce := -1
	for i, e := range events {
		switch e.Kind {
		case render.KindToolCall:
			lastAnnounce = i
		case render.KindToolResult:
			if firstResult < 0 {
				firstResult = i
			}
		}
	}
	require.GreaterOrEqual(t, firstResult, 0)
	assert.Less(t, lastAnnounce, firstResult, "every announce must precede the first result")

	announces := rec.OfKind(render.KindToolCall)
	require.Len(t, announces, 3)
	for i, a := range announces {
		assert.Equal(t, i+1, a.Position)
		assert.Equal(t, 3, a.Total)
	}
}

func TestDispatcher_RecordsEdits(t *testing.T) {
	tests := []struct {
		name   string
		meta   map[string]string
		wantOp EditOp
	}{
		{"new file", nil, OpCreate},
		{"existing file", map[string]string{tools.MetaOldContent: "old text", tools.MetaFileExisted: "true"}, OpUpdate},
		{"existing empty file", map[string]string{tools.MetaOldContent: "", tools.MetaFileExisted: "true"}, OpUpdate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{outcome: func(tools.Call) tools.Outcome {
				return tools.Success{Content: "wrote it", Metadata: tt.meta}
			}}
			rec := render.NewRecorder()
			d := newTestDispatcher(exec, rec)

			_, _, edits := d.Execute(context.Background(),
				[]tools.Call{call("write_file", "path", "a.go", "content", "new text")}, 1)

			require.Len(t, edits, 1)
			assert.Equal(t, tt.wantOp, edits[0].Op)
			assert.Equal(t, "a.go", edits[0].Path)
			assert.Equal(t, "new text", edits[0].Content)
			assert.Len(t, rec.OfKind(render.KindEdit), 1)
		})
	}
}

func TestDispatcher_ForwardsSketchBlocks(t *testing.T) {
	content := "Here is the flow:\n```mermaid\ngraph TD; A-->B\n```\nand a chart\n```chart\nbar 1 2 3\n```"
	exec := &fakeExecutor{outcome: func(tools.Call) tools.Outcome {
		return tools.AgentResult{OK: true, Content: content}
	}}
	rec := render.NewRecorder()
	d := newTestDispatcher(exec, rec)

	d.Execute(context.Background(), []tools.Call{call("delegate", "prompt", "draw")}, 1)

	sketches := rec.OfKind(render.KindSketch)
	require.Len(t, sketches, 2)
	assert.Equal(t, "mermaid", sketches[0].Lang)
	assert.Equal(t, "graph TD; A-->B", sketches[0].Text)
	assert.Equal(t, "chart", sketches[1].Lang)
}

type fakePlan struct{ items []tools.PlanItem }

func (p fakePlan) PlanItems(context.Context) ([]tools.PlanItem, error) { return p.items, nil }

func TestDispatcher_PlanSummaryAfterPlanCall(t *testing.T) {
	exec := &fakeExecutor{}
	rec := render.NewRecorder()
	d := newTestDispatcher(exec, rec).WithPlan(fakePlan{items: []tools.PlanItem{
		{Text: "first", Status: tools.PlanDone},
	}})

	d.Execute(context.Background(), []tools.Call{call("plan", "item", "first")}, 1)

	plans := rec.OfKind(render.KindPlan)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Items, 1)
	assert.Equal(t, "first", plans[0].Items[0].Text)
}

type fakeGate struct{ summary string }

func (g fakeGate) Check(content, _, _ string, _ map[string]string) (string, bool) {
	if g.summary == "" {
		return "", false
	}
	return g.summary, true
}

func TestDispatcher_GateAffectsDisplayOnly(t *testing.T) {
	exec := &fakeExecutor{outcome: func(tools.Call) tools.Outcome {
		return tools.Success{Content: "the full long output"}
	}}
	rec := render.NewRecorder()
	d := newTestDispatcher(exec, rec).WithGate(fakeGate{summary: "(summary)"})

	dispatched, steps, _ := d.Execute(context.Background(), []tools.Call{call("shell", "command", "ls")}, 1)

	assert.Equal(t, "(summary)", dispatched[0].Display)
	assert.Equal(t, "the full long output", steps[0].Result, "stored step result must keep the full text")

	results := rec.OfKind(render.KindToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, "(summary)", results[0].Text)
}

func TestDispatcher_GateSkippedForLiveSessions(t *testing.T) {
	exec := &fakeExecutor{outcome: func(tools.Call) tools.Outcome {
		return tools.Success{
			Content:  "still going",
			Metadata: map[string]string{tools.MetaIsLiveSession: "true"},
		}
	}}
	d := newTestDispatcher(exec, render.NewRecorder()).WithGate(fakeGate{summary: "(summary)"})

	dispatched, _, _ := d.Execute(context.Background(), []tools.Call{call("shell", "command", "tail -f log")}, 1)
	assert.Equal(t, "still going", dispatched[0].Display)
}

// resultExecutor returns pre-built results, metadata included.
type resultExecutor struct {
	result tools.ExecutionResult
}

func (e resultExecutor) Execute(_ context.Context, call tools.Call, _ tools.ExecContext) tools.ExecutionResult {
	r := e.result
	r.Tool = call.Name
	return r
}

func TestDispatcher_ErrorRendering(t *testing.T) {
	failure := tools.Failure{Message: "boom", ErrorType: "shell_exit"}

	tests := []struct {
		name       string
		meta       map[string]string
		wantErrors int
	}{
		{"plain failure renders an error", nil, 1},
		{"cancelled failure stays quiet", map[string]string{tools.MetaCancelled: "true"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tools.NewResult("shell", failure, time.Now())
			for k, v := range tt.meta {
				result.SetMeta(k, v)
			}
			rec := render.NewRecorder()
			d := newTestDispatcher(resultExecutor{result: result}, rec)

			d.Execute(context.Background(), []tools.Call{call("shell", "command", "x")}, 1)
			assert.Len(t, rec.OfKind(render.KindError), tt.wantErrors)
		})
	}
}

func TestDispatcher_PendingResolvedBeforeApply(t *testing.T) {
	exec := &fakeExecutor{outcome: func(tools.Call) tools.Outcome {
		return tools.Pending{SessionID: "bg-1", Command: "make slow"}
	}}
	rec := render.NewRecorder()
	resolver := NewResolver(fakeAwaiter{outcome: tools.Success{Content: "finished"}, found: true}, time.Millisecond)
	d := NewDispatcher(exec, resolver, rec, tools.ExecContext{})

	dispatched, steps, _ := d.Execute(context.Background(), []tools.Call{call("shell", "command", "make slow")}, 1)

	require.Len(t, dispatched, 1)
	assert.True(t, dispatched[0].Result.Succeeded())
	assert.Equal(t, "bg-1", dispatched[0].Result.Meta(tools.MetaSessionID))
	assert.Equal(t, "finished", steps[0].Result)
}
