package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Plan item statuses.
const (
	PlanPending    = "pending"
	PlanInProgress = "in_progress"
	PlanDone       = "done"
)

// PlanItem is one checklist entry in the session plan.
type PlanItem struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

// PlanStore persists the session plan across iterations.
type PlanStore interface {
	PlanAdd(ctx context.Context, items []string) error
	PlanSetStatus(ctx context.Context, index int, status string) error
	PlanItems(ctx context.Context) ([]PlanItem, error)
}

// PlanTool lets the model keep a working checklist: add items, mark
// them off, and list the current state.
type PlanTool struct {
	store PlanStore
}

// NewPlanTool returns a plan tool over the given store.
func NewPlanTool(store PlanStore) *PlanTool {
	return &PlanTool{store: store}
}

func (t *PlanTool) Name() string { return NamePlan }

func (t *PlanTool) Run(ctx context.Context, call Call, _ ExecContext) Outcome {
	action := call.Params.Value("action")
	if action == "" {
		switch {
		case len(planItems(call.Params)) > 0:
			action = "add"
		case call.Params.Value("index") != "":
			action = "update"
		default:
			action = "list"
		}
	}

	switch action {
	case "add":
		return t.add(ctx, call.Params)
	case "update":
		return t.update(ctx, call.Params)
	case "list":
		return t.list(ctx)
	default:
		return Failure{
			Message:   fmt.Sprintf("unknown plan action %q (want add, update, or list)", action),
			ErrorType: "invalid_args",
		}
	}
}

func (t *PlanTool) add(ctx context.Context, params Params) Outcome {
	items := planItems(params)
	if len(items) == 0 {
		return Failure{Message: "plan add requires at least one item", ErrorType: "invalid_args"}
	}
	if err := t.store.PlanAdd(ctx, items); err != nil {
		return Failure{Message: err.Error(), ErrorType: "plan_error"}
	}
	return Success{Content: fmt.Sprintf("Added %d plan item(s)", len(items))}
}

func (t *PlanTool) update(ctx context.Context, params Params) Outcome {
	idx, err := strconv.Atoi(params.Value("index"))
	if err != nil || idx < 1 {
		return Failure{Message: "plan update requires a 1-based index", ErrorType: "invalid_args"}
	}
	status, ok := normalizePlanStatus(params.Value("status"))
	if !ok {
		return Failure{
			Message:   fmt.Sprintf("unknown plan status %q (want pending, in_progress, or done)", params.Value("status")),
			ErrorType: "invalid_args",
		}
	}
	if err := t.store.PlanSetStatus(ctx, idx-1, status); err != nil {
		return Failure{Message: err.Error(), ErrorType: "plan_error"}
	}
	return Success{Content: fmt.Sprintf("Marked plan item %d as %s", idx, status)}
}

func (t *PlanTool) list(ctx context.Context) Outcome {
	items, err := t.store.PlanItems(ctx)
	if err != nil {
		return Failure{Message: err.Error(), ErrorType: "plan_error"}
	}
	return Success{Content: FormatPlan(items)}
}

// planItems collects item values from the params. Repeated item params
// and newline-separated values both work.
func planItems(params Params) []string {
	var items []string
	for _, p := range params {
		if p.Key != "item" && p.Key != "items" {
			continue
		}
		for _, line := range strings.Split(p.Value, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				items = append(items, line)
			}
		}
	}
	return items
}

func normalizePlanStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "done", "complete", "completed":
		return PlanDone, true
	case "in_progress", "in-progress", "active", "started":
		return PlanInProgress, true
	case "pending", "todo", "":
		return PlanPending, true
	default:
		return "", false
	}
}

// FormatPlan renders items as a numbered checklist: [x] done,
// [*] in progress, [ ] pending.
func FormatPlan(items []PlanItem) string {
	if len(items) == 0 {
		return "No plan items yet"
	}
	var b strings.Builder
	for i, item := range items {
		mark := " "
		switch item.Status {
		case PlanDone:
			mark = "x"
		case PlanInProgress:
			mark = "*"
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, mark, item.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
