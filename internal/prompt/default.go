package prompt

// DefaultTemplate is the embedded default prompt template.
// It uses {{variable}} placeholders for dynamic content injection.
const DefaultTemplate = `# dispatchr Task
Project: {{project}}

## Task
{{task}}

## Tool directives
Call tools by writing each directive on its own line, with all values
double-quoted:

read_file(path="src/main.go")
write_file(path="notes.md", content="...")
shell(command="go test ./...")
glob(pattern="**/*.go")
plan(action="add", item="first thing to do")
delegate(prompt="summarize the build failure")

Every directive runs and the results come back in the next message.
Directives inside a fenced block only run when the fence is tagged` + " `tool`" + `.

## Rules
- Work in small steps; issue only the tool calls you need right now
- Keep the plan current as you make progress
- Do not repeat a failing call unchanged; change approach instead
- When the task is done, reply with a short summary containing the words
  "task complete" and no tool calls
{{extra}}`
