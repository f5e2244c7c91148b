package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/dispatchr/internal/llm"
	"github.com/mark3labs/dispatchr/internal/logger"
	"github.com/mark3labs/dispatchr/internal/prompt"
	"github.com/mark3labs/dispatchr/internal/render"
)

// DefaultMaxIterations bounds a run when the config does not.
const DefaultMaxIterations = 25

// completionKeywords end the run when the model's reply contains one,
// matched case-insensitively.
var completionKeywords = []string{
	"task complete",
	"task completed",
	"all tasks complete",
	"all done",
	"nothing left to do",
}

// stuckWindow is how many trailing steps the stuck check inspects, and
// also the iteration count a run must exceed before the check applies.
const stuckWindow = 5

// Recorder persists what the loop did. All methods are best-effort
// from the loop's point of view: a recorder error is logged, never
// fatal.
type Recorder interface {
	IterationStart(ctx context.Context, number int) error
	IterationComplete(ctx context.Context, number int) error
	StepAdd(ctx context.Context, step Step) error
	RunComplete(ctx context.Context) error
}

// Hook runs before each iteration and returns text to surface, e.g.
// from a project hook command.
type Hook func(ctx context.Context, iteration int) (string, error)

// LoopConfig parameterizes a run.
type LoopConfig struct {
	Task          Task
	MaxIterations int
	SingleTool    bool
	TemplatePath  string
	Extra         string
}

// Loop is the top-level turn driver: one model round trip per
// iteration, tool dispatch in between, no overlap between iterations.
type Loop struct {
	cfg        LoopConfig
	client     llm.Client
	parser     llm.Parser
	dispatcher *Dispatcher
	renderer   render.Renderer
	recorder   Recorder
	hook       Hook
}

// NewLoop wires a loop from its collaborators.
func NewLoop(cfg LoopConfig, client llm.Client, parser llm.Parser, dispatcher *Dispatcher, renderer render.Renderer) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Loop{
		cfg:        cfg,
		client:     client,
		parser:     parser,
		dispatcher: dispatcher,
		renderer:   renderer,
	}
}

// WithRecorder sets an optional journal recorder.
func (l *Loop) WithRecorder(r Recorder) *Loop {
	l.recorder = r
	return l
}

// WithHook sets an optional pre-iteration hook.
func (l *Loop) WithHook(h Hook) *Loop {
	l.hook = h
	return l
}

// Run drives iterations until the model signals completion, the guard
// or stuck check trips, the iteration budget runs out, or ctx is
// cancelled. A model-call error is fatal: the loop exits immediately
// with whatever it recorded so far. The returned Result is always
// non-nil.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	initial, err := prompt.Initial(l.cfg.TemplatePath, prompt.Variables{
		Task:    l.cfg.Task.Requirement,
		Project: l.cfg.Task.ProjectPath,
		Extra:   l.cfg.Extra,
	})
	if err != nil {
		return &Result{Message: "failed to build prompt"}, err
	}

	var (
		messages  []llm.Message
		steps     []Step
		edits     []Edit
		completed bool
		message   = fmt.Sprintf("reached iteration limit of %d", l.cfg.MaxIterations)
	)

	for iteration := 1; iteration <= l.cfg.MaxIterations; iteration++ {
		// Sole cancellation checkpoint: between iterations, never inside
		// one.
		if ctx.Err() != nil {
			message = "run cancelled"
			break
		}

		l.renderer.IterationStart(iteration, l.cfg.MaxIterations)
		l.record(func(r Recorder) error { return r.IterationStart(ctx, iteration) })

		if l.hook != nil {
			output, hookErr := l.hook(ctx, iteration)
			if hookErr != nil {
				message = "run cancelled"
				break
			}
			if strings.TrimSpace(output) != "" {
				l.renderer.Info(output)
			}
		}

		outbound := prompt.Continue
		if iteration == 1 {
			outbound = initial
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: outbound})

		reply, err := l.client.Complete(ctx, messages)
		if err != nil {
			logger.Error("model call failed on iteration %d: %v", iteration, err)
			l.renderer.Error(fmt.Sprintf("model call failed: %v", err))
			return l.result(steps, edits, "model call failed"), err
		}
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: reply})

		calls := l.parser.Parse(reply)
		if len(calls) == 0 {
			completed = true
			message = "model finished with no further tool calls"
			break
		}

		if l.cfg.SingleTool && len(calls) > 1 {
			l.renderer.Warn(fmt.Sprintf("single-tool policy: running only the first of %d calls", len(calls)))
			calls = calls[:1]
		}

		dispatched, newSteps, newEdits := l.dispatcher.Execute(ctx, calls, iteration)
		steps = append(steps, newSteps...)
		edits = append(edits, newEdits...)
		for _, step := range newSteps {
			step := step
			l.record(func(r Recorder) error { return r.StepAdd(ctx, step) })
		}

		feedback := make([]prompt.ToolResult, 0, len(dispatched))
		for _, dis := range dispatched {
			feedback = append(feedback, prompt.ToolResult{
				Call:    dis.Call.String(),
				Output:  dis.Display,
				Success: dis.Result.Succeeded(),
			})
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt.FormatResults(feedback)})

		if containsCompletionKeyword(reply) {
			completed = true
			message = "model declared the task complete"
			break
		}

		if iteration > stuckWindow && stuck(steps) {
			l.renderer.Warn(fmt.Sprintf("no progress in the last %d steps; stopping", stuckWindow))
			message = "stopped: no progress detected"
			break
		}

		l.record(func(r Recorder) error { return r.IterationComplete(ctx, iteration) })
	}

	if completed {
		l.renderer.TaskComplete(fmt.Sprintf(
			"Done in %s, %d step(s)", time.Since(started).Round(time.Millisecond), len(steps),
		))
		l.record(func(r Recorder) error { return r.RunComplete(ctx) })
	}

	return l.result(steps, edits, message), nil
}

func (l *Loop) result(steps []Step, edits []Edit, message string) *Result {
	success := false
	for _, step := range steps {
		if step.Success {
			success = true
			break
		}
	}
	return &Result{Success: success, Message: message, Steps: steps, Edits: edits}
}

func (l *Loop) record(fn func(Recorder) error) {
	if l.recorder == nil {
		return
	}
	if err := fn(l.recorder); err != nil {
		logger.Warn("journal write failed: %v", err)
	}
}

func containsCompletionKeyword(reply string) bool {
	lower := strings.ToLower(reply)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// stuck reports whether the last stuckWindow steps all failed or all
// ran into "already exists" answers, which is the classic shape of a
// model thrashing against work it has already done.
func stuck(steps []Step) bool {
	if len(steps) < stuckWindow {
		return false
	}
	for _, step := range steps[len(steps)-stuckWindow:] {
		if step.Success && !strings.Contains(step.Result, "already exists") {
			return false
		}
	}
	return true
}
