// Package prompt builds the messages the loop sends to the model: the
// task-prefixed opening prompt, the fixed continuation, and the
// formatted tool results fed back after each dispatch.
package prompt

import (
	"fmt"
	"os"
	"strings"
)

// Continue is the outbound message for every iteration after the first.
const Continue = "continue"

// Variables holds the values injected into template placeholders.
type Variables struct {
	Task    string // Requirement text
	Project string // Project path
	Extra   string // Extra instructions (empty if none)
}

// Render replaces {{task}}, {{project}}, and {{extra}} placeholders.
func Render(template string, vars Variables) string {
	replacements := map[string]string{
		"{{task}}":    vars.Task,
		"{{project}}": vars.Project,
		"{{extra}}":   vars.Extra,
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// Load returns the template content: the file at customPath when given,
// otherwise the embedded default.
func Load(customPath string) (string, error) {
	if customPath == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(customPath)
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", customPath, err)
	}
	return string(data), nil
}

// Initial renders the opening prompt for iteration 1.
func Initial(customPath string, vars Variables) (string, error) {
	tmpl, err := Load(customPath)
	if err != nil {
		return "", err
	}
	return Render(tmpl, vars), nil
}

// ToolResult is one dispatched call's outcome, ready for formatting.
type ToolResult struct {
	Call    string
	Output  string
	Success bool
}

// FormatResults renders dispatch results as the message fed back into
// the conversation.
func FormatResults(results []ToolResult) string {
	var b strings.Builder
	b.WriteString("Tool results:\n")
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "\n[%s] %s\n%s\n", status, r.Call, r.Output)
	}
	return strings.TrimRight(b.String(), "\n")
}
