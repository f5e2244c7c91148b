package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/dispatchr/internal/llm"
	"github.com/mark3labs/dispatchr/internal/render"
	"github.com/mark3labs/dispatchr/internal/tools"
)

// scriptClient replies from a fixed script, one entry per call.
type scriptClient struct {
	replies []string
	calls   int
	err     error
}

func (c *scriptClient) Complete(_ context.Context, _ []llm.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if c.calls >= len(c.replies) {
		return "", nil
	}
	reply := c.replies[c.calls]
	c.calls++
	return reply, nil
}

func newTestLoop(cfg LoopConfig, client llm.Client, exec Executor, rec render.Renderer) *Loop {
	if exec == nil {
		exec = &fakeExecutor{}
	}
	return NewLoop(cfg, client, llm.Directives{}, newTestDispatcher(exec, rec), rec)
}

func TestLoop_EndToEnd(t *testing.T) {
	client := &scriptClient{replies: []string{
		"Listing Kotlin files now.\nglob(pattern=\"*.kt\")",
		"That is everything in the project.",
	}}
	rec := render.NewRecorder()
	loop := newTestLoop(LoopConfig{
		Task:          Task{Requirement: "list files", ProjectPath: "/tmp/p"},
		MaxIterations: 10,
	}, client, nil, rec)

	result, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "glob", result.Steps[0].Tool)
	assert.Equal(t, "*.kt", result.Steps[0].Params.Value("pattern"))
	assert.True(t, result.Steps[0].Success)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, 1, rec.Count(render.KindTaskComplete))
}

func TestLoop_CompletionKeywordStops(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"lowercase", "ok, task complete."},
		{"uppercase", "TASK COMPLETE"},
		{"embedded", "I believe all tasks complete now."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptClient{replies: []string{tt.reply}}
			rec := render.NewRecorder()
			loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 10}, client, nil, rec)

			_, err := loop.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, client.calls, "loop must stop after the completion reply")
			assert.Equal(t, 1, rec.Count(render.KindTaskComplete))
		})
	}
}

func TestLoop_KeywordWithToolCallsDispatchesFirst(t *testing.T) {
	client := &scriptClient{replies: []string{
		"task complete after this:\nshell(command=\"echo bye\")",
	}}
	rec := render.NewRecorder()
	exec := &fakeExecutor{}
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 10}, client, exec, rec)

	result, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Steps, 1, "the call must still run before the keyword stops the loop")
	assert.Equal(t, 1, rec.Count(render.KindTaskComplete))
}

func TestLoop_ModelErrorIsFatal(t *testing.T) {
	wantErr := errors.New("connection refused")
	client := &scriptClient{err: wantErr}
	rec := render.NewRecorder()
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 10}, client, nil, rec)

	result, err := loop.Run(context.Background())
	require.ErrorIs(t, err, wantErr)
	assert.False(t, result.Success)
	assert.Empty(t, result.Steps)
	assert.Equal(t, 1, rec.Count(render.KindError))
	assert.Zero(t, rec.Count(render.KindTaskComplete))
}

func TestLoop_SingleToolPolicy(t *testing.T) {
	client := &scriptClient{replies: []string{
		"shell(command=\"first\")\nshell(command=\"second\")",
		"task complete",
	}}
	rec := render.NewRecorder()
	exec := &fakeExecutor{}
	loop := newTestLoop(LoopConfig{
		Task:          Task{Requirement: "t"},
		MaxIterations: 10,
		SingleTool:    true,
	}, client, exec, rec)

	result, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Steps, 1)
	assert.Equal(t, "first", result.Steps[0].Params.Value("command"))
	assert.Equal(t, 1, rec.Count(render.KindWarn))
}

func TestLoop_StuckDetection(t *testing.T) {
	// Every iteration issues one fresh failing call, so the repeat
	// guard stays quiet and only the stuck check can stop the run.
	var replies []string
	for i := 0; i < 12; i++ {
		replies = append(replies, fmt.Sprintf("shell(command=\"attempt-%d\")", i))
	}
	client := &scriptClient{replies: replies}
	exec := &fakeExecutor{outcome: func(tools.Call) tools.Outcome {
		return tools.Failure{Message: "mkdir: cannot create directory: already exists", ErrorType: "shell_exit"}
	}}
	rec := render.NewRecorder()
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 12}, client, exec, rec)

	result, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "stopped: no progress detected", result.Message)
	// One step per iteration; the check can first trip on iteration 6.
	assert.Len(t, result.Steps, stuckWindow+1)
	assert.Zero(t, rec.Count(render.KindTaskComplete))
}

func TestLoop_IterationLimit(t *testing.T) {
	var replies []string
	for i := 0; i < 20; i++ {
		replies = append(replies, fmt.Sprintf("shell(command=\"work-%d\")", i))
	}
	client := &scriptClient{replies: replies}
	rec := render.NewRecorder()
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 3}, client, &fakeExecutor{}, rec)

	result, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, result.Steps, 3)
	assert.Contains(t, result.Message, "iteration limit")
	assert.Zero(t, rec.Count(render.KindTaskComplete))
}

func TestLoop_CancelledBeforeIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptClient{replies: []string{"shell(command=\"x\")"}}
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 5}, client, nil, render.NewRecorder())

	result, err := loop.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run cancelled", result.Message)
	assert.Zero(t, client.calls)
}

// countingRecorder tallies journal writes.
type countingRecorder struct {
	starts, completes, steps, runs int
}

func (r *countingRecorder) IterationStart(context.Context, int) error    { r.starts++; return nil }
func (r *countingRecorder) IterationComplete(context.Context, int) error { r.completes++; return nil }
func (r *countingRecorder) StepAdd(context.Context, Step) error          { r.steps++; return nil }
func (r *countingRecorder) RunComplete(context.Context) error            { r.runs++; return nil }

func TestLoop_RecorderReceivesRun(t *testing.T) {
	client := &scriptClient{replies: []string{
		"glob(pattern=\"*.go\")",
		"task complete",
	}}
	recorder := &countingRecorder{}
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 10},
		client, nil, render.NewRecorder()).WithRecorder(recorder)

	_, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, recorder.starts)
	assert.Equal(t, 1, recorder.steps)
	assert.Equal(t, 1, recorder.runs)
}

func TestLoop_HookOutputRendered(t *testing.T) {
	client := &scriptClient{replies: []string{"task complete"}}
	rec := render.NewRecorder()
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}, MaxIterations: 2}, client, nil, rec).
		WithHook(func(_ context.Context, iteration int) (string, error) {
			return fmt.Sprintf("hook ran for %d", iteration), nil
		})

	_, err := loop.Run(context.Background())
	require.NoError(t, err)

	infos := rec.OfKind(render.KindInfo)
	require.NotEmpty(t, infos)
	assert.Equal(t, "hook ran for 1", infos[0].Text)
}

func TestStuck(t *testing.T) {
	failed := func(n int) []Step {
		steps := make([]Step, n)
		for i := range steps {
			steps[i] = Step{Result: "nope", Success: false}
		}
		return steps
	}

	tests := []struct {
		name  string
		steps []Step
		want  bool
	}{
		{"too few steps", failed(4), false},
		{"five failures", failed(5), true},
		{"success breaks the streak", append(failed(4), Step{Result: "made it", Success: true}), false},
		{"already-exists success still counts", append(failed(4), Step{Result: "dir already exists", Success: true}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stuck(tt.steps))
		})
	}
}

func TestLoop_DefaultMaxIterations(t *testing.T) {
	loop := newTestLoop(LoopConfig{Task: Task{Requirement: "t"}}, &scriptClient{}, nil, render.NewRecorder())
	assert.Equal(t, DefaultMaxIterations, loop.cfg.MaxIterations)
}
