package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mark3labs/dispatchr/internal/tools"
)

// Handlers return user-facing problems as text results, never as Go
// errors; an error return would surface as a protocol failure instead
// of guidance the calling agent can act on.

func (s *Server) handlePlanAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	itemsRaw, ok := args["items"]
	if !ok {
		return mcp.NewToolResultText("error: missing 'items' parameter"), nil
	}
	itemsArray, ok := itemsRaw.([]any)
	if !ok {
		return mcp.NewToolResultText("error: 'items' is not an array"), nil
	}
	if len(itemsArray) == 0 {
		return mcp.NewToolResultText("error: at least one item is required"), nil
	}

	items := make([]string, 0, len(itemsArray))
	for i, raw := range itemsArray {
		text, ok := raw.(string)
		if !ok || strings.TrimSpace(text) == "" {
			return mcp.NewToolResultText(fmt.Sprintf("error: item %d is not a non-empty string", i)), nil
		}
		items = append(items, text)
	}

	entries, err := s.store.PlanAdd(ctx, s.session, items, s.iteration())
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %d plan item(s)", len(entries))), nil
}

func (s *Server) handlePlanUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	// JSON numbers arrive as float64.
	indexRaw, ok := args["index"].(float64)
	if !ok || indexRaw < 1 {
		return mcp.NewToolResultText("error: 'index' must be a 1-based number"), nil
	}
	status, ok := args["status"].(string)
	if !ok || status == "" {
		return mcp.NewToolResultText("error: missing 'status' parameter"), nil
	}

	if err := s.store.PlanSetStatus(ctx, s.session, int(indexRaw)-1, status, s.iteration()); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Marked plan item %d as %s", int(indexRaw), status)), nil
}

func (s *Server) handlePlanList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.store.PlanEntries(ctx, s.session)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}

	items := make([]tools.PlanItem, len(entries))
	for i, entry := range entries {
		items[i] = tools.PlanItem{Text: entry.Text, Status: entry.Status}
	}
	return mcp.NewToolResultText(tools.FormatPlan(items)), nil
}

func (s *Server) handleStepsList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	steps, err := s.store.Steps(ctx, s.session)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}
	if len(steps) == 0 {
		return mcp.NewToolResultText("No steps recorded yet"), nil
	}

	var b strings.Builder
	for i, step := range steps {
		status := "ok"
		if !step.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "%d. [%s] %s(%s) @ iteration %d\n", i+1, status, step.Tool, step.Params, step.Iteration)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}
