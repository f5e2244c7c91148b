package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/dispatchr/internal/logger"
	"github.com/mark3labs/dispatchr/internal/render"
	"github.com/mark3labs/dispatchr/internal/tools"
)

// Executor runs one tool call. tools.Registry satisfies it.
type Executor interface {
	Execute(ctx context.Context, call tools.Call, env tools.ExecContext) tools.ExecutionResult
}

// Gate optionally summarizes oversized tool output for display. The
// second return reports whether a summary was produced.
type Gate interface {
	Check(content, contentType, source string, metadata map[string]string) (string, bool)
}

// PlanReader exposes the current plan so a successful plan tool call
// can be followed by a checklist render.
type PlanReader interface {
	PlanItems(ctx context.Context) ([]tools.PlanItem, error)
}

// Dispatched pairs a call with its final result and the text that was
// shown for it. Display may be a summary; Result keeps the full output.
type Dispatched struct {
	Call    tools.Call
	Result  tools.ExecutionResult
	Display string
}

// Dispatcher executes one iteration's tool calls: repeat-guard
// pre-check, announce, parallel fan-out with an ordered fan-in, then a
// sequential apply pass that records steps and edits and renders
// results. Gate and plan are optional.
type Dispatcher struct {
	executor Executor
	guard    *RepeatGuard
	resolver *Resolver
	renderer render.Renderer
	gate     Gate
	plan     PlanReader
	env      tools.ExecContext
}

// NewDispatcher wires a dispatcher. The env is shared read-only by
// every call in a batch.
func NewDispatcher(executor Executor, resolver *Resolver, renderer render.Renderer, env tools.ExecContext) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		guard:    NewRepeatGuard(),
		resolver: resolver,
		renderer: renderer,
		env:      env,
	}
}

// WithGate sets the long-output gate.
func (d *Dispatcher) WithGate(gate Gate) *Dispatcher {
	d.gate = gate
	return d
}

// WithPlan sets the plan reader used for post-plan-call summaries.
func (d *Dispatcher) WithPlan(plan PlanReader) *Dispatcher {
	d.plan = plan
	return d
}

// indexed tags a result with its input position so the fan-in can
// restore submission order after unordered completion.
type indexed struct {
	idx    int
	result tools.ExecutionResult
}

// Execute runs a batch of calls and returns the dispatched results in
// input order, plus the steps and edits the apply pass produced. When
// the repeat guard rejects a call, that call gets a synthetic failed
// result and the rest of the batch is dropped unexecuted.
func (d *Dispatcher) Execute(ctx context.Context, calls []tools.Call, iteration int) ([]Dispatched, []Step, []Edit) {
	// Phase 1: pre-check. Sequential; the guard history is not safe for
	// concurrent use.
	accepted := make([]tools.Call, 0, len(calls))
	var rejected *tools.Call
	var verdict Verdict
	for i := range calls {
		v := d.guard.Check(calls[i])
		if !v.Allowed {
			rejected = &calls[i]
			verdict = v
			break
		}
		accepted = append(accepted, calls[i])
	}

	// Phase 2: announce every accepted call before any of them runs.
	for i, call := range accepted {
		d.renderer.ToolCall(call.Name, call.Params.String(), i+1, len(accepted))
	}

	// Phase 3: fan-out, join, restore input order. After the join the
	// apply pass is the only writer, so steps and edits need no lock.
	results := d.fanOut(ctx, accepted)

	var (
		dispatched []Dispatched
		steps      []Step
		edits      []Edit
	)
	for i, result := range results {
		if result.IsPending() {
			result = d.resolver.Resolve(ctx, result)
		}
		dis, step, edit := d.apply(ctx, accepted[i], result, iteration)
		dispatched = append(dispatched, dis)
		steps = append(steps, step)
		if edit != nil {
			edits = append(edits, *edit)
		}
	}

	if rejected != nil {
		dis, step := d.rejectRepeat(*rejected, verdict, iteration)
		dispatched = append(dispatched, dis)
		steps = append(steps, step)
	}
	return dispatched, steps, edits
}

// fanOut launches one goroutine per call, joins them all, and returns
// the results sorted back to input order.
func (d *Dispatcher) fanOut(ctx context.Context, calls []tools.Call) []tools.ExecutionResult {
	if len(calls) == 0 {
		return nil
	}

	completions := make(chan indexed, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call tools.Call) {
			defer wg.Done()
			completions <- indexed{idx: i, result: d.executor.Execute(ctx, call, d.env)}
		}(i, call)
	}
	wg.Wait()
	close(completions)

	gathered := make([]indexed, 0, len(calls))
	for c := range completions {
		gathered = append(gathered, c)
	}
	sort.SliceStable(gathered, func(a, b int) bool { return gathered[a].idx < gathered[b].idx })

	results := make([]tools.ExecutionResult, len(gathered))
	for i, c := range gathered {
		results[i] = c.result
	}
	return results
}

// apply records and renders one finished call.
func (d *Dispatcher) apply(ctx context.Context, call tools.Call, result tools.ExecutionResult, iteration int) (Dispatched, Step, *Edit) {
	full := resultText(result)

	display := full
	if d.gate != nil && !result.MetaFlag(tools.MetaIsLiveSession) && !result.MetaFlag(tools.MetaCancelled) {
		if summary, ok := d.gate.Check(full, "tool_output", call.Name, result.Metadata); ok {
			display = summary
		}
	}

	step := Step{
		Iteration: iteration,
		Tool:      call.Name,
		Params:    call.Params,
		Result:    full,
		Success:   result.Succeeded(),
	}

	d.renderer.ToolResult(render.ResultView{
		Tool:      call.Name,
		Params:    call.Params.String(),
		Content:   display,
		Success:   result.Succeeded(),
		ElapsedMs: result.EndedAt.Sub(result.StartedAt).Milliseconds(),
	})

	var edit *Edit
	if tools.IsWriteTool(call.Name) && result.Succeeded() {
		edit = &Edit{
			Path:       call.Params.Value("path"),
			Op:         OpCreate,
			Content:    call.Params.Value("content"),
			OldContent: result.Meta(tools.MetaOldContent),
		}
		if result.MetaFlag(tools.MetaFileExisted) {
			edit.Op = OpUpdate
		}
		d.renderer.Edit(edit.Path, edit.OldContent, edit.Content)
	}

	if payload, ok := result.Outcome.(tools.AgentResult); ok {
		for _, block := range sketchBlocks(payload.Content) {
			d.renderer.Sketch(block.lang, block.source)
		}
	}

	if call.Name == tools.NamePlan && result.Succeeded() && d.plan != nil {
		if items, err := d.plan.PlanItems(ctx); err == nil {
			d.renderer.PlanSummary(items)
		} else {
			logger.Warn("loading plan for summary: %v", err)
		}
	}

	if !result.Succeeded() && !result.IsPending() && !result.MetaFlag(tools.MetaCancelled) {
		d.renderer.Error(fmt.Sprintf("%s failed: %s", call.Name, firstLine(full)))
	}

	return Dispatched{Call: call, Result: result, Display: display}, step, edit
}

// rejectRepeat synthesizes the failed result for a guarded call.
func (d *Dispatcher) rejectRepeat(call tools.Call, v Verdict, iteration int) (Dispatched, Step) {
	d.renderer.RepeatWarning(call.Name, v.Count)
	logger.Warn("repeat guard tripped: %s (count %d)", Signature(call), v.Count)

	message := fmt.Sprintf(
		"Tool call %s repeated %d times in the recent window; aborting this batch to break the loop",
		call.Name, v.Count,
	)
	result := tools.NewResult(call.Name, tools.Failure{
		Message:   message,
		ErrorType: "repeat_loop",
	}, time.Now())
	result.ID = fmt.Sprintf("repeat-error-%d", time.Now().UnixMilli())

	step := Step{
		Iteration: iteration,
		Tool:      call.Name,
		Params:    call.Params,
		Result:    message,
		Success:   false,
	}
	return Dispatched{Call: call, Result: result, Display: message}, step
}

// resultText builds the canonical text for a result. This is what the
// step log stores and what feeds back to the model, before any display
// summarization.
func resultText(result tools.ExecutionResult) string {
	switch o := result.Outcome.(type) {
	case tools.Success:
		return o.Content
	case tools.Pending:
		return fmt.Sprintf("Command running in background session %s", o.SessionID)
	case tools.AgentResult:
		return o.Content
	case tools.Failure:
		var b strings.Builder
		b.WriteString(o.Message)
		if o.ErrorType != "" {
			fmt.Fprintf(&b, " (%s)", o.ErrorType)
		}
		if o.Stdout != "" {
			b.WriteString("\nstdout:\n" + o.Stdout)
		}
		if o.Stderr != "" {
			b.WriteString("\nstderr:\n" + o.Stderr)
		}
		return b.String()
	default:
		return ""
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// sketchFence matches fenced blocks whose language tag marks an
// embeddable visualization.
var sketchFence = regexp.MustCompile("(?s)```(chart|graph|nanodsl|nano|mermaid|mmd)[ \t]*\n(.*?)```")

type sketch struct {
	lang   string
	source string
}

// sketchBlocks extracts every sketch fence from agent output, in order.
func sketchBlocks(content string) []sketch {
	var blocks []sketch
	for _, m := range sketchFence.FindAllStringSubmatch(content, -1) {
		blocks = append(blocks, sketch{lang: m[1], source: strings.TrimRight(m[2], "\n")})
	}
	return blocks
}
