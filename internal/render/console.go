package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/glamour/v2"
	"charm.land/lipgloss/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/aymanbagabas/go-udiff"
	"github.com/charmbracelet/colorprofile"

	"github.com/mark3labs/dispatchr/internal/tools"
)

// Catppuccin Mocha accents.
var (
	colorPrimary   = lipgloss.Color("#cba6f7") // mauve
	colorSecondary = lipgloss.Color("#89b4fa") // blue
	colorSuccess   = lipgloss.Color("#a6e3a1") // green
	colorWarning   = lipgloss.Color("#f9e2af") // yellow
	colorError     = lipgloss.Color("#f38ba8") // red
	colorInfo      = lipgloss.Color("#89dceb") // sky
	colorDim       = lipgloss.Color("#6c7086") // overlay
)

var (
	styleHeading  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleToolCall = lipgloss.NewStyle().Foreground(colorSecondary)
	stylePosition = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess  = lipgloss.NewStyle().Foreground(colorSuccess)
	styleFailure  = lipgloss.NewStyle().Foreground(colorError)
	styleWarn     = lipgloss.NewStyle().Foreground(colorWarning)
	styleInfo     = lipgloss.NewStyle().Foreground(colorInfo)
	styleDim      = lipgloss.NewStyle().Foreground(colorDim)
	styleThought  = lipgloss.NewStyle().Foreground(colorDim).Italic(true)
	styleBanner   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
)

// Console renders events as styled lines. Thought chunks stream
// immediately in a dim style; message chunks buffer until the message
// closes and are then rendered as markdown in one piece.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	width   int
	message strings.Builder
	thought bool
}

// NewConsole returns a console writing to w through a color-profile
// aware writer. env drives profile detection; nil env on a non-terminal
// writer strips styling entirely, which tests rely on.
func NewConsole(w io.Writer, env []string) *Console {
	return &Console{w: colorprofile.NewWriter(w, env), width: 100}
}

func (c *Console) IterationStart(number, max int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	fmt.Fprintf(c.w, "\n%s\n", styleHeading.Render(fmt.Sprintf("=== Iteration %d/%d ===", number, max)))
}

func (c *Console) ToolCall(tool, params string, position, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	line := styleToolCall.Render(fmt.Sprintf("> %s(%s)", tool, params))
	if total > 1 {
		line += " " + stylePosition.Render(fmt.Sprintf("[%d/%d]", position, total))
	}
	fmt.Fprintln(c.w, line)
}

func (c *Console) ToolResult(v ResultView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()

	mark := styleSuccess.Render("ok")
	if !v.Success {
		mark = styleFailure.Render("failed")
	}
	line := fmt.Sprintf("%s %s", v.Tool, mark)
	if v.ElapsedMs > 0 {
		d := (time.Duration(v.ElapsedMs) * time.Millisecond).Round(time.Millisecond)
		line += " " + styleDim.Render(d.String())
	}
	fmt.Fprintln(c.w, line)
	if strings.TrimSpace(v.Content) != "" {
		fmt.Fprintln(c.w, styleDim.Render(indent(v.Content, "  ")))
	}
}

func (c *Console) Edit(path, before, after string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()

	fmt.Fprintln(c.w, styleHeading.Render("edit "+path))
	diff := udiff.Unified("a/"+path, "b/"+path, before, after)
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(c.w, styleSuccess.Render(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(c.w, styleFailure.Render(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintln(c.w, styleInfo.Render(line))
		default:
			fmt.Fprintln(c.w, line)
		}
	}
}

func (c *Console) Sketch(lang, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	fmt.Fprintln(c.w, styleHeading.Render("sketch ("+lang+")"))
	fmt.Fprintln(c.w, indent(highlight(source, lang), "  "))
}

func (c *Console) PlanSummary(items []tools.PlanItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()

	fmt.Fprintln(c.w, styleHeading.Render("Plan"))
	if len(items) == 0 {
		fmt.Fprintln(c.w, styleDim.Render("  (no plan items)"))
		return
	}
	for i, item := range items {
		mark, style := "[ ]", styleDim
		switch item.Status {
		case tools.PlanDone:
			mark, style = "[x]", styleSuccess
		case tools.PlanInProgress:
			mark, style = "[*]", styleWarn
		}
		fmt.Fprintln(c.w, style.Render(fmt.Sprintf("  %d. %s %s", i+1, mark, item.Text)))
	}
}

func (c *Console) TaskComplete(summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	c.flushMessageLocked()

	banner := "Task complete"
	if summary != "" {
		banner += ": " + summary
	}
	fmt.Fprintf(c.w, "\n%s\n", styleBanner.Render(banner))
}

func (c *Console) RepeatWarning(tool string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	fmt.Fprintln(c.w, styleWarn.Render(fmt.Sprintf("! repeated call rejected: %s (seen %d times)", tool, count)))
}

func (c *Console) ToolStarted(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	fmt.Fprintln(c.w, styleDim.Render("> "+title+" ..."))
}

func (c *Console) ToolFinished(title, output string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()

	mark := styleSuccess.Render("ok")
	if !success {
		mark = styleFailure.Render("failed")
	}
	fmt.Fprintf(c.w, "%s %s\n", title, mark)
	if strings.TrimSpace(output) != "" {
		fmt.Fprintln(c.w, styleDim.Render(indent(output, "  ")))
	}
}

func (c *Console) ThoughtChunk(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.thought {
		fmt.Fprintln(c.w, styleDim.Render("thinking:"))
		c.thought = true
	}
	fmt.Fprint(c.w, styleThought.Render(text))
}

func (c *Console) MessageChunk(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message.WriteString(text)
}

func (c *Console) CloseThought() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
}

func (c *Console) CloseMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	c.flushMessageLocked()
}

func (c *Console) Info(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	fmt.Fprintln(c.w, styleInfo.Render("i "+text))
}

func (c *Console) Warn(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	fmt.Fprintln(c.w, styleWarn.Render("! "+text))
}

func (c *Console) Error(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	fmt.Fprintln(c.w, styleFailure.Render("x "+text))
}

// Flush closes any open thought and renders a message left unterminated
// by a dying stream.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeThoughtLocked()
	c.flushMessageLocked()
	return nil
}

func (c *Console) closeThoughtLocked() {
	if c.thought {
		fmt.Fprintln(c.w)
		c.thought = false
	}
}

func (c *Console) flushMessageLocked() {
	if c.message.Len() == 0 {
		return
	}
	md := c.message.String()
	c.message.Reset()
	fmt.Fprintln(c.w, renderMarkdown(md, c.width))
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// renderMarkdown renders markdown for the terminal, returning the raw
// text when glamour fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// highlight applies syntax highlighting to a sketch block. The language
// tag is tried first, then content analysis, then plain text.
func highlight(source, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Get("terminal256")
	}
	if formatter == nil {
		return source
	}

	style := chromastyles.Get("monokai")
	if style == nil {
		style = chromastyles.Fallback
	}

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, it); err != nil {
		return source
	}
	return strings.TrimRight(buf.String(), "\n")
}
