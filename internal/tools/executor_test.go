package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

// stubTool returns a fixed outcome or runs fn.
type stubTool struct {
	name string
	fn   func(ctx context.Context, call Call, env ExecContext) Outcome
}

func (s stubTool) Name() string { return s.name }

func (s stubTool) Run(ctx context.Context, call Call, env ExecContext) Outcome {
	return s.fn(ctx, call, env)
}

func fixedOutcome(name string, out Outcome) stubTool {
	return stubTool{name: name, fn: func(context.Context, Call, ExecContext) Outcome { return out }}
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Execute(context.Background(), Call{Name: "nope"}, ExecContext{})

	f, ok := res.Outcome.(Failure)
	if !ok {
		t.Fatalf("Outcome = %T, want Failure", res.Outcome)
	}
	if f.ErrorType != "unknown_tool" {
		t.Errorf("ErrorType = %q, want unknown_tool", f.ErrorType)
	}
	if res.State != StateFailed {
		t.Errorf("State = %v, want failed", res.State)
	}
}

func TestRegistry_PanicBecomesFailure(t *testing.T) {
	r := NewRegistry(stubTool{name: "boom", fn: func(context.Context, Call, ExecContext) Outcome {
		panic("tool exploded")
	}})

	res := r.Execute(context.Background(), Call{Name: "boom"}, ExecContext{})
	f, ok := res.Outcome.(Failure)
	if !ok {
		t.Fatalf("Outcome = %T, want Failure", res.Outcome)
	}
	if f.ErrorType != "panic" {
		t.Errorf("ErrorType = %q, want panic", f.ErrorType)
	}
	if !strings.Contains(f.Message, "tool exploded") {
		t.Errorf("Message = %q, want panic value preserved", f.Message)
	}
}

func TestRegistry_LiftsOutcomeMetadata(t *testing.T) {
	r := NewRegistry(
		fixedOutcome("bg", Pending{SessionID: "sess-1", Command: "sleep 99"}),
		fixedOutcome("writer", Success{Content: "ok", Metadata: map[string]string{MetaOldContent: "old"}}),
	)

	res := r.Execute(context.Background(), Call{Name: "bg"}, ExecContext{})
	if !res.IsPending() {
		t.Error("expected pending result")
	}
	if res.Meta(MetaSessionID) != "sess-1" {
		t.Errorf("sessionId meta = %q, want sess-1", res.Meta(MetaSessionID))
	}
	if res.State != StateExecuting {
		t.Errorf("State = %v, want executing", res.State)
	}

	res = r.Execute(context.Background(), Call{Name: "writer"}, ExecContext{})
	if res.Meta(MetaOldContent) != "old" {
		t.Errorf("oldContent meta = %q, want old", res.Meta(MetaOldContent))
	}
}

func TestRegistry_StampsCancelled(t *testing.T) {
	r := NewRegistry(fixedOutcome("slow", Failure{Message: "command cancelled", ErrorType: "cancelled"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Execute(ctx, Call{Name: "slow"}, ExecContext{})
	if !res.MetaFlag(MetaCancelled) {
		t.Error("expected cancelled metadata flag under a cancelled context")
	}
}

func TestRegistry_NilOutcome(t *testing.T) {
	r := NewRegistry(stubTool{name: "empty", fn: func(context.Context, Call, ExecContext) Outcome {
		return nil
	}})

	res := r.Execute(context.Background(), Call{Name: "empty"}, ExecContext{})
	if f, ok := res.Outcome.(Failure); !ok || f.ErrorType != "internal" {
		t.Errorf("Outcome = %#v, want internal Failure", res.Outcome)
	}
}

func TestNewResult_States(t *testing.T) {
	started := time.Now().Add(-time.Second)
	tests := []struct {
		name    string
		outcome Outcome
		want    ExecutionState
	}{
		{"success", Success{Content: "ok"}, StateSuccess},
		{"failure", Failure{Message: "no"}, StateFailed},
		{"pending", Pending{SessionID: "s"}, StateExecuting},
		{"agent ok", AgentResult{OK: true, Content: "done"}, StateSuccess},
		{"agent failed", AgentResult{OK: false, Content: "sad"}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResult("x", tt.outcome, started)
			if res.State != tt.want {
				t.Errorf("State = %v, want %v", res.State, tt.want)
			}
			if res.ID == "" {
				t.Error("ID not assigned")
			}
			if !res.StartedAt.Equal(started) {
				t.Errorf("StartedAt = %v, want %v", res.StartedAt, started)
			}
			if res.EndedAt.Before(res.StartedAt) {
				t.Error("EndedAt before StartedAt")
			}
		})
	}
}

func TestIsWriteTool(t *testing.T) {
	if !IsWriteTool(NameWriteFile) {
		t.Error("write_file should be a write tool")
	}
	for _, name := range []string{NameReadFile, NameShell, NameGlob, NamePlan, NameDelegate} {
		if IsWriteTool(name) {
			t.Errorf("%s should not be a write tool", name)
		}
	}
}
