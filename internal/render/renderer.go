package render

import "github.com/mark3labs/dispatchr/internal/tools"

// ResultView is the displayable form of one completed tool execution.
// Content arrives already summarized where the long-output gate applies;
// the stored journal record keeps the full text.
type ResultView struct {
	Tool      string
	Params    string
	Content   string
	Success   bool
	ElapsedMs int64
}

// Renderer receives everything a run wants shown. Implementations must
// tolerate any call order; execution code treats them as fire-and-forget.
type Renderer interface {
	// Loop and dispatch surface.
	IterationStart(number, max int)
	ToolCall(tool, params string, position, total int)
	ToolResult(view ResultView)
	Edit(path, before, after string)
	Sketch(lang, source string)
	PlanSummary(items []tools.PlanItem)
	TaskComplete(summary string)
	RepeatWarning(tool string, count int)

	// Protocol stream surface.
	ToolStarted(title string)
	ToolFinished(title, output string, success bool)
	ThoughtChunk(text string)
	MessageChunk(text string)
	CloseThought()
	CloseMessage()

	// Free-form lines.
	Info(text string)
	Warn(text string)
	Error(text string)

	// Flush blocks until everything rendered so far is visible.
	Flush() error
}
