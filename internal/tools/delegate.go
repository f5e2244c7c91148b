package tools

import (
	"context"
	"fmt"
	"strings"
)

// Completer produces one reply for a prompt. The delegate tool uses it
// to hand a subtask to a secondary agent without entering the main loop.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DelegateTool sends a one-shot prompt to a secondary agent and returns
// the reply as an agent payload. Replies may carry fenced sketch blocks,
// which the dispatcher forwards to the renderer.
type DelegateTool struct {
	agent     string
	completer Completer
}

// NewDelegateTool returns a delegate tool that reports results under the
// given agent name.
func NewDelegateTool(agent string, completer Completer) *DelegateTool {
	if agent == "" {
		agent = "subagent"
	}
	return &DelegateTool{agent: agent, completer: completer}
}

func (t *DelegateTool) Name() string { return NameDelegate }

func (t *DelegateTool) Run(ctx context.Context, call Call, _ ExecContext) Outcome {
	prompt := call.Params.Value("prompt")
	if prompt == "" {
		prompt = call.Params.Value("task")
	}
	if strings.TrimSpace(prompt) == "" {
		return Failure{Message: "delegate requires a prompt parameter", ErrorType: "invalid_args"}
	}

	agent := t.agent
	if name := call.Params.Value("agent"); name != "" {
		agent = name
	}
	meta := map[string]string{MetaAgentName: agent}

	reply, err := t.completer.Complete(ctx, prompt)
	if err != nil {
		return AgentResult{
			OK:       false,
			Content:  fmt.Sprintf("delegate failed: %v", err),
			Metadata: meta,
		}
	}
	return AgentResult{OK: true, Content: reply, Metadata: meta}
}
